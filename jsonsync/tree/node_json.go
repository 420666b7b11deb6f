package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"jsonstore/jsonsync/common"
)

// MarshalJSON writes the canonical form of n: compact, object keys sorted.
// Two equal trees always serialize to the same bytes.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces n with the parsed document.
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	n.Replace(parsed)
	return nil
}

// String returns the canonical serialization of n.
func (n *Node) String() string {
	data, err := n.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid node: %v>", err)
	}
	return string(data)
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.boolean))
	case KindNumber:
		if n.number == "" {
			buf.WriteString("0")
			return nil
		}
		if !json.Valid([]byte(n.number)) {
			return fmt.Errorf("invalid number literal %q", string(n.number))
		}
		buf.WriteString(string(n.number))
	case KindString:
		encodeString(buf, n.str)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range n.array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range n.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := n.object[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode appends a newline; strings never fail to encode.
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1)
}

// Parse decodes a single JSON document into a Node.
// It fails with common.ErrDeserialization on malformed input or trailing data.
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, common.ErrDeserialization{Cause: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, common.ErrDeserialization{Cause: fmt.Errorf("unexpected data after document")}
	}
	return FromValue(v)
}

// MustParse is like Parse but panics on error. Intended for literals in tests
// and defaults.
func MustParse(s string) *Node {
	n, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return n
}

// FromValue converts a decoded Go value into a Node. It accepts the shapes
// produced by encoding/json plus the common Go scalar types.
func FromValue(v any) (*Node, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case *Node:
		return val.Clone(), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return Number(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case float32:
		return Float(float64(val)), nil
	case float64:
		return Float(val), nil
	case []any:
		arr := Array()
		for _, item := range val {
			child, err := FromValue(item)
			if err != nil {
				return nil, err
			}
			arr.array = append(arr.array, child)
		}
		return arr, nil
	case map[string]any:
		obj := Object()
		for k, item := range val {
			child, err := FromValue(item)
			if err != nil {
				return nil, err
			}
			obj.object[k] = child
		}
		return obj, nil
	default:
		return nil, common.ErrDeserialization{Cause: fmt.Errorf("unsupported value type %T", v)}
	}
}

// Value converts n back into plain Go values (map[string]any, []any,
// json.Number, string, bool, nil).
func (n *Node) Value() any {
	switch n.Kind() {
	case KindBool:
		return n.boolean
	case KindNumber:
		return n.number
	case KindString:
		return n.str
	case KindArray:
		out := make([]any, len(n.array))
		for i, item := range n.array {
			out[i] = item.Value()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(n.object))
		for k, v := range n.object {
			out[k] = v.Value()
		}
		return out
	default:
		return nil
	}
}
