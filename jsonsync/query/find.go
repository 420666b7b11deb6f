// Package query searches the rows of a document tree. It only reads the tree
// and never fails: a missing start container or no match yields no results.
package query

import (
	"jsonstore/jsonsync/tree"
)

// Params narrows a search. The zero value searches every row below the root
// container for any value, without limits.
type Params struct {
	// Value, when set, must equal the matched field's value.
	Value *tree.Node
	// MaxCount stops the search once this many rows matched. Zero or negative
	// means no limit.
	MaxCount int
	// PruneDepth bounds how many container levels are searched: 1 searches only
	// the start container's own rows. Zero or negative means no limit.
	PruneDepth int
	// Parent is the container to start from.
	Parent tree.Path
	// Row is the first row of Parent to look at.
	Row int
}

// Find returns the paths of the rows, in depth-first order, that are objects
// carrying key (with p.Value, if set).
func Find(root *tree.Node, key string, p Params) []tree.Path {
	result := make([]tree.Path, 0)
	find(root, key, p.Value, p.MaxCount, p.PruneDepth, p.Parent, p.Row, &result)
	return result
}

// FindFirst returns the first row Find would return.
func FindFirst(root *tree.Node, key string, p Params) (tree.Path, bool) {
	p.MaxCount = 1
	found := Find(root, key, p)
	if len(found) == 0 {
		return tree.Path{}, false
	}
	return found[0], true
}

func find(root *tree.Node, key string, value *tree.Node, maxCount, pruneDepth int, parent tree.Path, row int, result *[]tree.Path) {
	children, err := tree.ChildrenOf(root, parent)
	if err != nil {
		return
	}
	if row < 0 {
		row = 0
	}

	full := func() bool {
		return maxCount > 0 && len(*result) >= maxCount
	}

	for i := row; i < children.Len(); i++ {
		child := children.Index(i)
		if !child.IsObject() {
			continue
		}
		rowPath := parent.Row(i)

		if v, ok := child.Get(key); ok && (value == nil || tree.Equal(value, v)) {
			*result = append(*result, rowPath)
			if full() {
				return
			}
		}

		if pruneDepth-1 != 0 {
			find(root, key, value, maxCount, pruneDepth-1, rowPath, 0, result)
			if full() {
				return
			}
		}
	}
}
