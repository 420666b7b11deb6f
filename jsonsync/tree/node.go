package tree

import (
	"encoding/json"
	"math/big"
	"sort"
	"strconv"
)

// ChildrenKey is the reserved field holding the ordered rows of a container.
const ChildrenKey = "children"

// Kind is the variant tag of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Node is one value of the document tree. The zero value is null.
//
// Objects own their fields and arrays own their items; a Node is never shared
// between two parents. Numbers keep their literal text so serialization is
// stable across round trips.
type Node struct {
	kind    Kind
	boolean bool
	number  json.Number
	str     string
	array   []*Node
	object  map[string]*Node
}

// Null returns a new null node.
func Null() *Node {
	return &Node{}
}

// Bool returns a new boolean node.
func Bool(b bool) *Node {
	return &Node{kind: KindBool, boolean: b}
}

// Number returns a new number node holding the literal n.
func Number(n json.Number) *Node {
	return &Node{kind: KindNumber, number: n}
}

// Int returns a new number node for an integer.
func Int(i int64) *Node {
	return Number(json.Number(strconv.FormatInt(i, 10)))
}

// Float returns a new number node for a float.
func Float(f float64) *Node {
	return Number(json.Number(strconv.FormatFloat(f, 'g', -1, 64)))
}

// String returns a new string node.
func String(s string) *Node {
	return &Node{kind: KindString, str: s}
}

// Array returns a new array node owning items.
func Array(items ...*Node) *Node {
	arr := make([]*Node, 0, len(items))
	for _, item := range items {
		arr = append(arr, orNull(item))
	}
	return &Node{kind: KindArray, array: arr}
}

// Object returns a new, empty object node.
func Object() *Node {
	return &Node{kind: KindObject, object: make(map[string]*Node)}
}

// Container returns {"children": []}, the default document.
func Container() *Node {
	obj := Object()
	obj.object[ChildrenKey] = Array()
	return obj
}

func orNull(n *Node) *Node {
	if n == nil {
		return Null()
	}
	return n
}

// Kind returns the variant tag of n. A nil node is null.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) IsNull() bool   { return n.Kind() == KindNull }
func (n *Node) IsArray() bool  { return n.Kind() == KindArray }
func (n *Node) IsObject() bool { return n.Kind() == KindObject }

// AsBool returns the boolean value and whether n is a bool.
func (n *Node) AsBool() (bool, bool) {
	if n.Kind() != KindBool {
		return false, false
	}
	return n.boolean, true
}

// AsNumber returns the number literal and whether n is a number.
func (n *Node) AsNumber() (json.Number, bool) {
	if n.Kind() != KindNumber {
		return "", false
	}
	return n.number, true
}

// AsString returns the string value and whether n is a string.
func (n *Node) AsString() (string, bool) {
	if n.Kind() != KindString {
		return "", false
	}
	return n.str, true
}

// Len returns the number of items of an array or fields of an object.
func (n *Node) Len() int {
	switch n.Kind() {
	case KindArray:
		return len(n.array)
	case KindObject:
		return len(n.object)
	default:
		return 0
	}
}

// Index returns the i-th item of an array, or nil when out of range.
func (n *Node) Index(i int) *Node {
	if n.Kind() != KindArray || i < 0 || i >= len(n.array) {
		return nil
	}
	return n.array[i]
}

// Items returns the items of an array. The slice must not be modified.
func (n *Node) Items() []*Node {
	if n.Kind() != KindArray {
		return nil
	}
	return n.array
}

// Append adds items to the end of an array.
func (n *Node) Append(items ...*Node) {
	if n.Kind() != KindArray {
		return
	}
	for _, item := range items {
		n.array = append(n.array, orNull(item))
	}
}

// InsertAt splices items into an array before position i.
// The caller guarantees 0 <= i <= Len().
func (n *Node) InsertAt(i int, items ...*Node) {
	if n.Kind() != KindArray || len(items) == 0 {
		return
	}
	grown := make([]*Node, 0, len(n.array)+len(items))
	grown = append(grown, n.array[:i]...)
	for _, item := range items {
		grown = append(grown, orNull(item))
	}
	grown = append(grown, n.array[i:]...)
	n.array = grown
}

// RemoveRange cuts count items starting at i out of an array and returns them.
// The caller guarantees the range is valid.
func (n *Node) RemoveRange(i, count int) []*Node {
	if n.Kind() != KindArray || count <= 0 {
		return nil
	}
	removed := make([]*Node, count)
	copy(removed, n.array[i:i+count])
	n.array = append(n.array[:i:i], n.array[i+count:]...)
	return removed
}

// Get returns the field key of an object.
func (n *Node) Get(key string) (*Node, bool) {
	if n.Kind() != KindObject {
		return nil, false
	}
	v, ok := n.object[key]
	return v, ok
}

// Has reports whether an object has the field key.
func (n *Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Put sets the field key of an object, replacing any previous value.
func (n *Node) Put(key string, v *Node) {
	if n.Kind() != KindObject {
		return
	}
	n.object[key] = orNull(v)
}

// Delete removes the field key of an object and returns the old value.
func (n *Node) Delete(key string) (*Node, bool) {
	if n.Kind() != KindObject {
		return nil, false
	}
	v, ok := n.object[key]
	if ok {
		delete(n.object, key)
	}
	return v, ok
}

// Keys returns the field names of an object in sorted order.
func (n *Node) Keys() []string {
	if n.Kind() != KindObject {
		return nil
	}
	keys := make([]string, 0, len(n.object))
	for k := range n.object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return Null()
	}
	c := &Node{kind: n.kind, boolean: n.boolean, number: n.number, str: n.str}
	switch n.kind {
	case KindArray:
		c.array = make([]*Node, len(n.array))
		for i, item := range n.array {
			c.array[i] = item.Clone()
		}
	case KindObject:
		c.object = make(map[string]*Node, len(n.object))
		for k, v := range n.object {
			c.object[k] = v.Clone()
		}
	}
	return c
}

// Replace overwrites n in place with the contents of v.
func (n *Node) Replace(v *Node) {
	v = orNull(v)
	*n = Node{
		kind:    v.kind,
		boolean: v.boolean,
		number:  v.number,
		str:     v.str,
		array:   v.array,
		object:  v.object,
	}
}

// Equal reports whether a and b hold the same value. Numbers compare by value,
// so 1 and 1.0 are equal.
func Equal(a, b *Node) bool {
	ka, kb := a.Kind(), b.Kind()
	if ka != kb {
		return false
	}
	switch ka {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return numbersEqual(a.number, b.number)
	case KindString:
		return a.str == b.str
	case KindArray:
		if len(a.array) != len(b.array) {
			return false
		}
		for i := range a.array {
			if !Equal(a.array[i], b.array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.object) != len(b.object) {
			return false
		}
		for k, va := range a.object {
			vb, ok := b.object[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	}
	return false
}

func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	fa, _, errA := big.ParseFloat(string(a), 10, 256, big.ToNearestEven)
	fb, _, errB := big.ParseFloat(string(b), 10, 256, big.ToNearestEven)
	if errA != nil || errB != nil {
		return false
	}
	return fa.Cmp(fb) == 0
}
