package tree

import (
	"strconv"

	"jsonstore/jsonsync/common"
)

// At returns the node addressed by p, walking from root.
//
// A step fails with common.ErrPathNotFound when the field is missing, when the
// token is not a valid index into an array, or when the current node is a
// scalar.
func At(root *Node, p Path) (*Node, error) {
	current := root
	for i, tok := range p.tokens {
		switch current.Kind() {
		case KindObject:
			next, ok := current.object[tok]
			if !ok {
				return nil, common.ErrPathNotFound{Path: p.String(), Reason: "no field " + strconv.Quote(tok)}
			}
			current = next
		case KindArray:
			idx, ok := parseIndex(tok)
			if !ok {
				return nil, common.ErrPathNotFound{Path: p.String(), Reason: "bad array index " + strconv.Quote(tok)}
			}
			if idx >= len(current.array) {
				return nil, common.ErrPathNotFound{Path: p.String(), Reason: "array index " + tok + " out of range"}
			}
			current = current.array[idx]
		default:
			return nil, common.ErrPathNotFound{
				Path:   p.String(),
				Reason: "cannot step into " + current.Kind().String() + " at " + NewPath(p.tokens[:i]...).String(),
			}
		}
	}
	if current == nil {
		return nil, common.ErrPathNotFound{Path: p.String()}
	}
	return current, nil
}

// ChildrenOf returns the children array of the container addressed by p.
func ChildrenOf(root *Node, p Path) (*Node, error) {
	node, err := At(root, p)
	if err != nil {
		return nil, err
	}
	children, ok := node.Get(ChildrenKey)
	if !ok || !children.IsArray() {
		return nil, common.ErrNotAContainer{Path: p.String()}
	}
	return children, nil
}

// parseIndex accepts RFC 6901 array indices: "0" or digits without a
// leading zero. The "-" token is rejected.
func parseIndex(tok string) (int, bool) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return idx, true
}
