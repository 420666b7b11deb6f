package store

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/syncevent"
)

// ApplyEvent replays the redo side of e as a local edit (redo in an undo
// stack). It always applies and the produced event carries this replica's id.
func (s *Store) ApplyEvent(e *syncevent.Event) error {
	return s.ProcessEvent(e, true, true, true)
}

// UnapplyEvent replays the undo side of e as a local edit.
func (s *Store) UnapplyEvent(e *syncevent.Event) error {
	return s.ProcessEvent(e, false, true, true)
}

// ProcessEvent applies one direction of e.
//
// With redo set the Redo op is applied, otherwise the Undo op. A non-local
// redo whose id equals this replica's id is an echo of our own edit and is
// skipped. Local calls re-stamp the produced event with this replica's id;
// remote ones keep the carried id so an origin relays it unchanged.
func (s *Store) ProcessEvent(e *syncevent.Event, redo, undoRedo, local bool) error {
	if e == nil {
		return common.ErrMalformedEvent{Message: "nil event"}
	}
	op := e.Direction(redo)
	if op == nil {
		if redo {
			return common.ErrMalformedEvent{Message: "missing redo"}
		}
		return common.ErrMalformedEvent{Message: "missing undo"}
	}

	if redo && !local && op.Source() == s.id {
		s.logger.Debug("dropped echo",
			zap.String("replica_id", s.id.String()),
			zap.String("op", string(op.Type())))
		return nil
	}

	id := op.Source()
	if local {
		id = s.id
	}

	if _, err := s.dispatch(op, local, id, undoRedo); err != nil {
		return err
	}

	if !local {
		s.logger.Debug("applied remote op",
			zap.String("replica_id", s.id.String()),
			zap.String("source", op.Source().String()),
			zap.String("op", string(op.Type())))
	}
	return nil
}

func (s *Store) dispatch(op syncevent.Op, local bool, id common.ReplicaID, undoRedo bool) (*syncevent.Event, error) {
	switch o := op.(type) {
	case *syncevent.Insert:
		return s.insert(local, id, undoRedo, o.Parent, o.Key, o.Data)
	case *syncevent.InsertRows:
		return s.insertRows(local, id, undoRedo, o.Parent, o.Row, o.Count, o.Data)
	case *syncevent.Remove:
		return s.remove(local, id, undoRedo, o.Parent, o.Key)
	case *syncevent.RemoveRows:
		return s.removeRows(local, id, undoRedo, o.Parent, o.Row, o.Count)
	case *syncevent.Set:
		return s.set(local, id, undoRedo, o.Parent, o.Row, o.Data)
	case *syncevent.Move:
		return s.move(local, id, undoRedo, o.SrcParent, o.SrcRow, o.Count, o.DstParent, o.DstRow)
	case *syncevent.Reset:
		return s.reset(local, id, undoRedo, o.Data)
	default:
		return nil, errors.Wrapf(common.ErrMalformedEvent{Type: string(op.Type()), Message: "no handler"}, "dispatch")
	}
}

// emit records e as the last event and hands it to the sink when the call
// was local or this store is the origin.
func (s *Store) emit(e *syncevent.Event, local, undoRedo bool) *syncevent.Event {
	s.lastEvent = e
	if (local || s.origin) && s.sink != nil {
		s.sink.OnEvent(e, undoRedo)
	}
	return e
}
