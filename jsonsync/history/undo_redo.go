// Package history keeps undo/redo stacks of store events.
package history

// UndoRedo is a pair of bounded stacks. Push records a new entry and forgets
// everything that could have been redone.
type UndoRedo[V any] struct {
	undo     []V
	redo     []V
	maxCount int
}

// NewUndoRedo returns empty stacks holding at most maxCount undo entries.
// Zero or negative means unbounded.
func NewUndoRedo[V any](maxCount int) *UndoRedo[V] {
	return &UndoRedo[V]{maxCount: maxCount}
}

// Count returns the number of entries that can be undone.
func (u *UndoRedo[V]) Count() int {
	return len(u.undo)
}

// RedoCount returns the number of entries that can be redone.
func (u *UndoRedo[V]) RedoCount() int {
	return len(u.redo)
}

// Empty reports whether there is nothing to undo.
func (u *UndoRedo[V]) Empty() bool {
	return len(u.undo) == 0
}

// SetMaxCount bounds the undo stack, dropping the oldest entries if needed.
func (u *UndoRedo[V]) SetMaxCount(n int) {
	u.maxCount = n
	u.trim()
}

func (u *UndoRedo[V]) trim() {
	if u.maxCount > 0 && len(u.undo) > u.maxCount {
		drop := len(u.undo) - u.maxCount
		var zero V
		for i := 0; i < drop; i++ {
			u.undo[i] = zero
		}
		u.undo = append(u.undo[:0], u.undo[drop:]...)
	}
}

// Push records v as the newest undo entry and clears the redo stack.
func (u *UndoRedo[V]) Push(v V) {
	u.undo = append(u.undo, v)
	u.redo = u.redo[:0]
	u.trim()
}

// Undo moves the newest undo entry to the redo stack and returns it.
func (u *UndoRedo[V]) Undo() (V, bool) {
	var zero V
	if len(u.undo) == 0 {
		return zero, false
	}
	v := u.undo[len(u.undo)-1]
	u.undo[len(u.undo)-1] = zero
	u.undo = u.undo[:len(u.undo)-1]
	u.redo = append(u.redo, v)
	return v, true
}

// Redo moves the newest redo entry back to the undo stack and returns it.
func (u *UndoRedo[V]) Redo() (V, bool) {
	var zero V
	if len(u.redo) == 0 {
		return zero, false
	}
	v := u.redo[len(u.redo)-1]
	u.redo[len(u.redo)-1] = zero
	u.redo = u.redo[:len(u.redo)-1]
	u.undo = append(u.undo, v)
	u.trim()
	return v, true
}

// Clear empties both stacks.
func (u *UndoRedo[V]) Clear() {
	u.undo = nil
	u.redo = nil
}
