package history

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/store"
	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/syncevent"
)

// Recorder is a store.Sink that remembers local edits for undo and forwards
// every event to the next sink.
//
// Events produced by undo or redo themselves are forwarded but not recorded.
// When an owner id is set, only events attributed to it are recorded, so an
// origin relaying other replicas' edits keeps a history of its own edits only.
type Recorder struct {
	mu      sync.Mutex
	stack   *UndoRedo[*syncevent.Event]
	next    store.Sink
	owner   common.ReplicaID
	enabled bool
	logger  *zap.Logger
}

// NewRecorder creates an enabled recorder in front of next (which may be nil).
func NewRecorder(owner common.ReplicaID, next store.Sink, maxCount int) *Recorder {
	return &Recorder{
		stack:   NewUndoRedo[*syncevent.Event](maxCount),
		next:    next,
		owner:   owner,
		enabled: true,
		logger:  synclog.GetLogger(),
	}
}

// OnEvent implements store.Sink.
func (r *Recorder) OnEvent(e *syncevent.Event, isUndoRedo bool) {
	r.mu.Lock()
	if r.enabled && !isUndoRedo && (r.owner.IsNil() || e.Redo.Source() == r.owner) {
		r.stack.Push(e)
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.OnEvent(e, isUndoRedo)
	}
}

// Undo reverts the newest recorded edit on s. It reports false when there is
// nothing to undo.
func (r *Recorder) Undo(s *store.Store) (bool, error) {
	r.mu.Lock()
	e, ok := r.stack.Undo()
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := s.UnapplyEvent(e); err != nil {
		r.mu.Lock()
		r.stack.Redo()
		r.mu.Unlock()
		r.logger.Warn("undo failed", zap.String("op", string(e.Undo.Type())), zap.Error(err))
		return false, errors.Wrap(err, "undo")
	}
	return true, nil
}

// Redo re-applies the newest undone edit on s.
func (r *Recorder) Redo(s *store.Store) (bool, error) {
	r.mu.Lock()
	e, ok := r.stack.Redo()
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := s.ApplyEvent(e); err != nil {
		r.mu.Lock()
		r.stack.Undo()
		r.mu.Unlock()
		r.logger.Warn("redo failed", zap.String("op", string(e.Redo.Type())), zap.Error(err))
		return false, errors.Wrap(err, "redo")
	}
	return true, nil
}

// CanUndo reports whether Undo has an entry.
func (r *Recorder) CanUndo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.stack.Empty()
}

// CanRedo reports whether Redo has an entry.
func (r *Recorder) CanRedo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stack.RedoCount() > 0
}

// Count returns the number of undoable edits.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stack.Count()
}

// SetMaxCount bounds the undo history.
func (r *Recorder) SetMaxCount(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack.SetMaxCount(n)
}

// Enabled reports whether new edits are recorded.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled turns recording on or off. Turning it off clears the history.
func (r *Recorder) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
	if !enabled {
		r.stack.Clear()
	}
}

// Clear forgets all recorded edits.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack.Clear()
}
