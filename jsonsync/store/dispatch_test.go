package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/tree"
)

func TestEchoIsDropped(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, "", WithSink(rec))

	e, err := s.InsertRows(0, 1, rows(`{"a":1}`), tree.Root())
	require.NoError(t, err)
	after := s.Dump()
	require.Len(t, rec.events, 1)

	// the relay hands our own event back
	require.NoError(t, s.ProcessEvent(e, true, false, false))
	assert.Equal(t, after, s.Dump())
	assert.Len(t, rec.events, 1)
	assert.Same(t, e, s.LastEvent())

	// the wire form behaves the same
	data, err := e.Encode()
	require.NoError(t, err)
	decoded, err := syncevent.Decode(data)
	require.NoError(t, err)
	require.NoError(t, s.ProcessEvent(decoded, true, false, false))
	assert.Equal(t, after, s.Dump())
}

func TestLocalApplyIgnoresEchoFilter(t *testing.T) {
	s := newTestStore(t, "")

	e, err := s.InsertRows(0, 1, rows(`{"a":1}`), tree.Root())
	require.NoError(t, err)

	// ApplyEvent is a local redo, it applies even though the id is ours
	require.NoError(t, s.ApplyEvent(e))
	assert.Equal(t, `{"children":[{"a":1},{"a":1}]}`, s.Dump())
}

func TestUndoDirectionFromRemoteIsNotFiltered(t *testing.T) {
	s := newTestStore(t, "")

	e, err := s.InsertRows(0, 1, rows(`{"a":1}`), tree.Root())
	require.NoError(t, err)

	require.NoError(t, s.ProcessEvent(e, false, false, false))
	assert.Equal(t, `{"children":[]}`, s.Dump())
}

func TestEmission(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, "", WithSink(rec))

	e, err := s.InsertRows(0, 1, nil, tree.Root())
	require.NoError(t, err)
	require.NoError(t, s.UnapplyEvent(e))
	require.NoError(t, s.ApplyEvent(e))

	require.Len(t, rec.events, 3)
	assert.Equal(t, []bool{false, true, true}, rec.undoRedo)
	assert.Same(t, e, rec.events[0])
	assert.Equal(t, syncevent.OpRemoveRows, rec.events[1].Redo.Type())
	assert.Equal(t, syncevent.OpInsertRows, rec.events[2].Redo.Type())
	for _, ev := range rec.events {
		assert.Equal(t, s.ID(), ev.Redo.Source())
		assert.Equal(t, s.ID(), ev.Undo.Source())
	}
}

func TestFollowerDoesNotReemit(t *testing.T) {
	rec := &recorder{}
	follower := newTestStore(t, "", WithSink(rec))
	leader := newTestStore(t, "")

	e, err := leader.Insert("k", tree.Int(1), tree.Root())
	require.NoError(t, err)

	require.NoError(t, follower.ProcessEvent(e, true, false, false))
	assert.Equal(t, leader.Dump(), follower.Dump())
	assert.Empty(t, rec.events)

	// last_event is overwritten on remote applies too, keeping the carried id
	require.NotNil(t, follower.LastEvent())
	assert.Equal(t, leader.ID(), follower.LastEvent().Redo.Source())
}

func TestOriginRelaysWithCarriedID(t *testing.T) {
	rec := &recorder{}
	origin := newTestStore(t, "", WithOrigin(true), WithSink(rec))
	peer := newTestStore(t, "")

	e, err := peer.InsertRows(0, 2, nil, tree.Root())
	require.NoError(t, err)

	require.NoError(t, origin.ProcessEvent(e, true, false, false))
	require.Len(t, rec.events, 1)
	relayed := rec.events[0]
	assert.Equal(t, peer.ID(), relayed.Redo.Source())
	assert.Equal(t, peer.ID(), relayed.Undo.Source())
	assert.False(t, rec.undoRedo[0])

	// the relayed copy reaches the author, who drops it
	require.NoError(t, peer.ProcessEvent(relayed, true, false, false))
	assert.Equal(t, origin.Dump(), peer.Dump())
}

func TestProcessEventMalformed(t *testing.T) {
	s := newTestStore(t, "")
	var malformed common.ErrMalformedEvent

	assert.ErrorAs(t, s.ProcessEvent(nil, true, false, false), &malformed)
	assert.ErrorAs(t, s.ProcessEvent(&syncevent.Event{Undo: &syncevent.Reset{}}, true, false, false), &malformed)
	assert.ErrorAs(t, s.ProcessEvent(&syncevent.Event{Redo: &syncevent.Reset{}}, false, false, false), &malformed)
}

func TestErrorsLeaveTreeUntouched(t *testing.T) {
	const doc = `{"children":[{"a":1,"children":[]},{"b":2},3],"obj":{"x":1},"n":5}`

	testCases := []struct {
		name   string
		edit   func(s *Store) (*syncevent.Event, error)
		target any
	}{
		{"insert into missing parent", func(s *Store) (*syncevent.Event, error) {
			return s.Insert("k", tree.Int(1), path("/nope"))
		}, &common.ErrPathNotFound{}},
		{"insert into scalar", func(s *Store) (*syncevent.Event, error) {
			return s.Insert("k", tree.Int(1), path("/n"))
		}, &common.ErrPathNotFound{}},
		{"insert rows past end", func(s *Store) (*syncevent.Event, error) {
			return s.InsertRows(4, 1, nil, tree.Root())
		}, &common.ErrIndexOutOfRange{}},
		{"insert rows negative", func(s *Store) (*syncevent.Event, error) {
			return s.InsertRows(-1, 1, nil, tree.Root())
		}, &common.ErrIndexOutOfRange{}},
		{"insert rows into non container", func(s *Store) (*syncevent.Event, error) {
			return s.InsertRows(0, 1, nil, path("/obj"))
		}, &common.ErrNotAContainer{}},
		{"insert rows count mismatch", func(s *Store) (*syncevent.Event, error) {
			return s.InsertRows(0, 2, rows(`{}`), tree.Root())
		}, &common.ErrInvalidArgument{}},
		{"remove missing key", func(s *Store) (*syncevent.Event, error) {
			return s.Remove("zzz", tree.Root())
		}, &common.ErrKeyNotFound{}},
		{"remove rows past end", func(s *Store) (*syncevent.Event, error) {
			return s.RemoveRows(2, 2, tree.Root())
		}, &common.ErrIndexOutOfRange{}},
		{"set row out of range", func(s *Store) (*syncevent.Event, error) {
			return s.Set(3, tree.MustParse(`{"a":0}`), tree.Root())
		}, &common.ErrIndexOutOfRange{}},
		{"set absent key", func(s *Store) (*syncevent.Event, error) {
			return s.Set(0, tree.MustParse(`{"a":0,"zzz":1}`), tree.Root())
		}, &common.ErrKeyNotFound{}},
		{"set scalar row", func(s *Store) (*syncevent.Event, error) {
			return s.SetKey(2, "a", tree.Int(0), tree.Root())
		}, &common.ErrPathNotFound{}},
		{"set non object data", func(s *Store) (*syncevent.Event, error) {
			return s.Set(0, tree.Int(1), tree.Root())
		}, &common.ErrInvalidArgument{}},
		{"move source out of range", func(s *Store) (*syncevent.Event, error) {
			return s.MoveRows(tree.Root(), 2, 2, path("/children/0"), 0)
		}, &common.ErrIndexOutOfRange{}},
		{"move destination out of range", func(s *Store) (*syncevent.Event, error) {
			return s.MoveRows(tree.Root(), 1, 1, path("/children/0"), 1)
		}, &common.ErrIndexOutOfRange{}},
		{"move into itself", func(s *Store) (*syncevent.Event, error) {
			// after the cut /children/0 is {"b":2}, which is no container
			return s.MoveRows(tree.Root(), 0, 1, path("/children/0"), 0)
		}, &common.ErrNotAContainer{}},
		{"move destination missing", func(s *Store) (*syncevent.Event, error) {
			return s.MoveRows(tree.Root(), 0, 2, path("/children/5"), 0)
		}, &common.ErrPathNotFound{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			s := newTestStore(t, doc, WithSink(rec))

			e, err := tc.edit(s)
			require.Error(t, err)
			assert.Nil(t, e)
			assert.True(t, errors.As(err, tc.target), "got %v", err)

			assert.Equal(t, tree.MustParse(doc).String(), s.Dump())
			assert.Empty(t, rec.events)
			assert.Nil(t, s.LastEvent())
		})
	}
}

func TestRemoteErrorsPropagate(t *testing.T) {
	s := newTestStore(t, "")
	other := common.NewReplicaID()

	e := syncevent.New(
		&syncevent.RemoveRows{ID: other, Parent: tree.Root(), Row: 0, Count: 1},
		&syncevent.InsertRows{ID: other, Parent: tree.Root(), Row: 0, Count: 1},
	)
	err := s.ProcessEvent(e, true, false, false)
	var rangeErr common.ErrIndexOutOfRange
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 0, rangeErr.Len)
}

func TestMultiSink(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	s := newTestStore(t, "", WithSink(MultiSink{first, nil, second}))

	_, err := s.Insert("k", tree.String("v"), tree.Root())
	require.NoError(t, err)
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
}
