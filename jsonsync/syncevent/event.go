package syncevent

import (
	"bytes"
	"encoding/json"
	"fmt"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/tree"
)

// Event is a self-describing, reversible change: Redo moves the document
// forward, Undo moves it back.
type Event struct {
	Redo Op `json:"redo"`
	Undo Op `json:"undo"`
}

// New creates an event from its two directions.
func New(redo, undo Op) *Event {
	return &Event{Redo: redo, Undo: undo}
}

// Direction returns Redo when redo is true, Undo otherwise.
func (e *Event) Direction(redo bool) Op {
	if redo {
		return e.Redo
	}
	return e.Undo
}

// Inverse returns the event with its directions swapped.
func (e *Event) Inverse() *Event {
	return &Event{Redo: e.Undo, Undo: e.Redo}
}

// WithSource returns a copy of the event with both directions attributed to id.
func (e *Event) WithSource(id common.ReplicaID) *Event {
	return &Event{Redo: e.Redo.WithSource(id), Undo: e.Undo.WithSource(id)}
}

// Encode serializes the event to its wire form.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// String returns the wire form, for logging.
func (e *Event) String() string {
	data, err := e.Encode()
	if err != nil {
		return fmt.Sprintf("<invalid event: %v>", err)
	}
	return string(data)
}

// UnmarshalJSON decodes an event, rejecting any op that lacks a field its
// type requires.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return common.ErrMalformedEvent{Message: "event is not an object"}
	}
	redoRaw, ok := raw["redo"]
	if !ok {
		return common.ErrMalformedEvent{Message: "missing redo"}
	}
	undoRaw, ok := raw["undo"]
	if !ok {
		return common.ErrMalformedEvent{Message: "missing undo"}
	}
	redo, err := DecodeOp(redoRaw)
	if err != nil {
		return err
	}
	undo, err := DecodeOp(undoRaw)
	if err != nil {
		return err
	}
	e.Redo, e.Undo = redo, undo
	return nil
}

// Decode parses an event from its wire form.
func Decode(data []byte) (*Event, error) {
	e := &Event{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, asMalformed(err)
	}
	return e, nil
}

func asMalformed(err error) error {
	if _, ok := err.(common.ErrMalformedEvent); ok {
		return err
	}
	return common.ErrMalformedEvent{Message: err.Error()}
}

// DecodeOp decodes a single op, dispatching on its "type" field.
func DecodeOp(data []byte) (Op, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, common.ErrMalformedEvent{Message: "op is not an object"}
	}

	var typ OpType
	typRaw, ok := raw["type"]
	if !ok {
		return nil, common.ErrMalformedEvent{Message: "missing type"}
	}
	if err := json.Unmarshal(typRaw, &typ); err != nil {
		return nil, common.ErrMalformedEvent{Message: "type is not a string"}
	}

	f := fields{typ: typ, raw: raw}
	id := f.replicaID()

	var op Op
	switch typ {
	case OpInsert:
		op = &Insert{ID: id, Parent: f.path("parent"), Key: f.text("key"), Data: f.node("data")}
	case OpInsertRows:
		op = &InsertRows{ID: id, Parent: f.path("parent"), Row: f.integer("row"), Count: f.integer("count"), Data: f.nodes("data")}
	case OpRemove:
		op = &Remove{ID: id, Parent: f.path("parent"), Key: f.text("key")}
	case OpRemoveRows:
		op = &RemoveRows{ID: id, Parent: f.path("parent"), Row: f.integer("row"), Count: f.integer("count")}
	case OpSet:
		op = &Set{ID: id, Parent: f.path("parent"), Row: f.integer("row"), Data: f.node("data")}
		if f.err == nil && !op.(*Set).Data.IsObject() {
			f.fail("data must be an object")
		}
	case OpMove:
		op = &Move{
			ID:        id,
			SrcParent: f.path("src_parent"),
			SrcRow:    f.integer("src_row"),
			Count:     f.integer("count"),
			DstParent: f.path("dst_parent"),
			DstRow:    f.integer("dst_row"),
		}
	case OpReset:
		op = &Reset{ID: id, Data: f.node("data")}
	default:
		return nil, common.ErrMalformedEvent{Type: string(typ), Message: "unknown op type"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return op, nil
}

// fields pulls required fields out of a raw op, remembering the first failure.
type fields struct {
	typ OpType
	raw map[string]json.RawMessage
	err error
}

func (f *fields) fail(msg string) {
	if f.err == nil {
		f.err = common.ErrMalformedEvent{Type: string(f.typ), Message: msg}
	}
}

func (f *fields) get(name string, allowNull bool) (json.RawMessage, bool) {
	v, ok := f.raw[name]
	if !ok {
		f.fail("missing " + name)
		return nil, false
	}
	if !allowNull && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		f.fail(name + " is null")
		return nil, false
	}
	return v, true
}

func (f *fields) replicaID() common.ReplicaID {
	var id common.ReplicaID
	v, ok := f.get("id", true)
	if !ok {
		return id
	}
	if err := json.Unmarshal(v, &id); err != nil {
		f.fail("bad id: " + err.Error())
	}
	return id
}

func (f *fields) path(name string) tree.Path {
	var p tree.Path
	v, ok := f.get(name, false)
	if !ok {
		return p
	}
	if err := json.Unmarshal(v, &p); err != nil {
		f.fail("bad " + name + ": " + err.Error())
	}
	return p
}

func (f *fields) text(name string) string {
	var s string
	v, ok := f.get(name, false)
	if !ok {
		return s
	}
	if err := json.Unmarshal(v, &s); err != nil {
		f.fail(name + " is not a string")
	}
	return s
}

func (f *fields) integer(name string) int {
	var n int
	v, ok := f.get(name, false)
	if !ok {
		return n
	}
	if err := json.Unmarshal(v, &n); err != nil {
		f.fail(name + " is not an integer")
	}
	return n
}

func (f *fields) node(name string) *tree.Node {
	v, ok := f.get(name, true)
	if !ok {
		return nil
	}
	n, err := tree.Parse(v)
	if err != nil {
		f.fail("bad " + name + ": " + err.Error())
		return nil
	}
	return n
}

func (f *fields) nodes(name string) []*tree.Node {
	n := f.node(name)
	if n == nil {
		return nil
	}
	if !n.IsArray() {
		f.fail(name + " must be an array")
		return nil
	}
	items := n.Items()
	out := make([]*tree.Node, len(items))
	copy(out, items)
	return out
}
