package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/query"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/tree"
)

func TestNewStore(t *testing.T) {
	s := newTestStore(t, "")
	assert.Equal(t, `{"children":[]}`, s.Dump())
	assert.False(t, s.ID().IsNil())
	assert.False(t, s.Origin())
	assert.Nil(t, s.LastEvent())

	id := common.NewReplicaID()
	s = newTestStore(t, `{"children":[{"a":1}]}`, WithID(id), WithOrigin(true))
	assert.Equal(t, id, s.ID())
	assert.True(t, s.Origin())

	other := common.NewReplicaID()
	s.SetID(other)
	s.SetOrigin(false)
	assert.Equal(t, other, s.ID())
	assert.False(t, s.Origin())

	_, err := NewFromJSON([]byte(`{"children":`))
	var desErr common.ErrDeserialization
	assert.ErrorAs(t, err, &desErr)

	s, err = NewFromJSON([]byte(`{"children":[], "name":"doc"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"children":[],"name":"doc"}`, s.Dump())
}

func TestStoreOwnsItsTree(t *testing.T) {
	data := tree.MustParse(`{"children":[{"a":1}]}`)
	s := newTestStore(t, "", WithData(data))

	data.Put("b", tree.Int(2))
	assert.Equal(t, `{"children":[{"a":1}]}`, s.Dump())

	snapshot := s.AsTree()
	snapshot.Put("c", tree.Int(3))
	assert.Equal(t, `{"children":[{"a":1}]}`, s.Dump())

	row, err := s.At(path("/children/0"))
	require.NoError(t, err)
	row.Put("a", tree.Int(9))
	assert.Equal(t, `{"children":[{"a":1}]}`, s.Dump())

	// data handed to an op is copied as well
	value := tree.MustParse(`{"x":[1]}`)
	_, err = s.Insert("v", value, tree.Root())
	require.NoError(t, err)
	value.Put("y", tree.Null())
	assert.Equal(t, `{"children":[{"a":1}],"v":{"x":[1]}}`, s.Dump())
}

func TestConvergence(t *testing.T) {
	a := newTestStore(t, "")
	b := newTestStore(t, "")
	c := newTestStore(t, "")
	wire(a, b)

	steps := []func() (*syncevent.Event, error){
		func() (*syncevent.Event, error) { return a.InsertRows(0, 1, rows(`{"hello":true}`), tree.Root()) },
		func() (*syncevent.Event, error) { return b.InsertRows(1, 1, rows(`{"goodbye":true}`), tree.Root()) },
		func() (*syncevent.Event, error) { return a.SetKey(0, "hello", tree.Bool(false), tree.Root()) },
		func() (*syncevent.Event, error) { return b.SetKey(1, "goodbye", tree.Bool(false), tree.Root()) },
		func() (*syncevent.Event, error) { return a.RemoveRows(1, 1, tree.Root()) },
		func() (*syncevent.Event, error) { return b.RemoveRows(0, 1, tree.Root()) },
		func() (*syncevent.Event, error) {
			return a.Insert("test1", tree.MustParse(`{"hellogoodbye":true}`), tree.Root())
		},
		func() (*syncevent.Event, error) {
			return b.Insert("test2", tree.MustParse(`{"goodbyehello":true}`), tree.Root())
		},
		func() (*syncevent.Event, error) { return a.Remove("test1", tree.Root()) },
		func() (*syncevent.Event, error) { return b.Remove("test2", tree.Root()) },
	}

	for i, step := range steps {
		e, err := step()
		require.NoError(t, err, "step %d", i)
		require.NotNil(t, e, "step %d", i)
		assert.Equal(t, a.Dump(), b.Dump(), "step %d", i)
	}

	assert.Equal(t, c.Dump(), a.Dump())
}

func TestConvergenceMove(t *testing.T) {
	a := newTestStore(t, "")
	b := newTestStore(t, "")
	wire(a, b)

	_, err := a.InsertRows(0, 1, rows(`{"hello":true,"children":[1,2,3]}`), tree.Root())
	require.NoError(t, err)
	_, err = b.InsertRows(1, 1, rows(`{"goodbye":true,"children":[4,5,6]}`), tree.Root())
	require.NoError(t, err)
	assert.Equal(t, a.Dump(), b.Dump())

	_, err = a.MoveRows(path("/children/0"), 0, 1, path("/children/0"), 1)
	require.NoError(t, err)
	assert.Equal(t, a.Dump(), b.Dump())

	_, err = b.MoveRows(path("/children/0"), 0, 1, path("/children/1"), 1)
	require.NoError(t, err)
	assert.Equal(t, a.Dump(), b.Dump())

	assert.Equal(t, `{"children":[{"children":[1,3],"hello":true},{"children":[4,2,5,6],"goodbye":true}]}`, a.Dump())
}

// TestUndoScenario applies each edit, ships it, undoes it and ships the undo,
// checking both replicas stay equal throughout.
func TestUndoScenario(t *testing.T) {
	a := newTestStore(t, "")
	b := newTestStore(t, "")

	ship := func() {
		t.Helper()
		require.NoError(t, b.ProcessEvent(a.LastEvent(), true, false, false))
		require.Equal(t, a.Dump(), b.Dump())
	}
	editAndUndo := func(edit func() (*syncevent.Event, error)) {
		t.Helper()
		before := a.Dump()
		_, err := edit()
		require.NoError(t, err)
		ship()
		require.NoError(t, a.UnapplyEvent(a.LastEvent()))
		require.Equal(t, before, a.Dump())
		ship()
	}

	editAndUndo(func() (*syncevent.Event, error) {
		return a.InsertRows(0, 1, rows(`{"hello":true}`), tree.Root())
	})

	_, err := a.InsertRows(0, 1, rows(`{"hello":true}`), tree.Root())
	require.NoError(t, err)
	ship()

	// replace an existing key
	editAndUndo(func() (*syncevent.Event, error) {
		return a.Insert("hello", tree.MustParse(`[{"hello":true}]`), path("/children/0"))
	})
	// add a new key
	editAndUndo(func() (*syncevent.Event, error) {
		return a.Insert("hellome", tree.MustParse(`[{"hello":true}]`), path("/children/0"))
	})
	editAndUndo(func() (*syncevent.Event, error) {
		return a.Remove("hello", path("/children/0"))
	})
	editAndUndo(func() (*syncevent.Event, error) {
		return a.Set(0, tree.MustParse(`{"hello":false}`), tree.Root())
	})
	editAndUndo(func() (*syncevent.Event, error) {
		return a.RemoveRows(0, 1, tree.Root())
	})
	editAndUndo(func() (*syncevent.Event, error) {
		return a.ResetData(tree.MustParse(`{"children":[{"hello":true,"children":[1,2,3]},{"goodbye":true,"children":[4,5,6]}]}`))
	})

	_, err = a.ResetData(tree.MustParse(`{"children":[{"hello":true,"children":[1,2,3]},{"goodbye":true,"children":[4,5,6]}]}`))
	require.NoError(t, err)
	ship()

	editAndUndo(func() (*syncevent.Event, error) {
		return a.MoveRows(path("/children/0"), 0, 1, path("/children/0"), 1)
	})
	editAndUndo(func() (*syncevent.Event, error) {
		return a.MoveRows(path("/children/0"), 0, 1, path("/children/1"), 1)
	})
}

func TestUndoRedoIdentity(t *testing.T) {
	const doc = `{"children":[{"k":1,"children":[{"k":2},{"k":3}]},{"k":4,"n":"x"},{"k":5,"children":[]}],"meta":{"v":1}}`

	testCases := []struct {
		name string
		edit func(s *Store) (*syncevent.Event, error)
	}{
		{"insert new", func(s *Store) (*syncevent.Event, error) { return s.Insert("extra", tree.Int(1), tree.Root()) }},
		{"insert replace", func(s *Store) (*syncevent.Event, error) { return s.Insert("meta", tree.Null(), tree.Root()) }},
		{"insert rows", func(s *Store) (*syncevent.Event, error) {
			return s.InsertRows(1, 2, rows(`{"a":1}`, `[]`), path("/children/0"))
		}},
		{"insert empty rows", func(s *Store) (*syncevent.Event, error) { return s.InsertRows(3, 2, nil, tree.Root()) }},
		{"remove", func(s *Store) (*syncevent.Event, error) { return s.Remove("n", path("/children/1")) }},
		{"remove rows", func(s *Store) (*syncevent.Event, error) { return s.RemoveRows(0, 2, tree.Root()) }},
		{"set", func(s *Store) (*syncevent.Event, error) {
			return s.Set(1, tree.MustParse(`{"k":40,"n":{"deep":true}}`), tree.Root())
		}},
		{"move within", func(s *Store) (*syncevent.Event, error) {
			return s.MoveRows(tree.Root(), 0, 2, tree.Root(), 1)
		}},
		{"move across", func(s *Store) (*syncevent.Event, error) {
			return s.MoveRows(path("/children/0"), 0, 2, path("/children/2"), 0)
		}},
		{"move into later sibling", func(s *Store) (*syncevent.Event, error) {
			return s.MoveRows(tree.Root(), 0, 1, path("/children/1"), 0)
		}},
		{"reset", func(s *Store) (*syncevent.Event, error) { return s.ResetData(tree.MustParse(`[1,2]`)) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, doc)
			before := s.Dump()

			e, err := tc.edit(s)
			require.NoError(t, err)
			after := s.Dump()
			assert.NotEqual(t, before, after)

			require.NoError(t, s.UnapplyEvent(e))
			assert.Equal(t, before, s.Dump())

			require.NoError(t, s.ApplyEvent(e))
			assert.Equal(t, after, s.Dump())

			// the event also carries across replicas in both directions
			r := newTestStore(t, doc)
			require.NoError(t, r.ProcessEvent(e, true, false, false))
			assert.Equal(t, after, r.Dump())
			require.NoError(t, r.ProcessEvent(e, false, false, false))
			assert.Equal(t, before, r.Dump())
		})
	}
}

func TestMoveIntoLaterSibling(t *testing.T) {
	s := newTestStore(t, `{"children":[{"a":1},{"b":2,"children":[]}]}`)

	// /children/1 is resolved after the cut, so it names the former row 1
	_, err := s.MoveRows(tree.Root(), 0, 1, path("/children/0"), 0)
	require.NoError(t, err)
	assert.Equal(t, `{"children":[{"b":2,"children":[{"a":1}]}]}`, s.Dump())
}

func TestSetMinimalUndo(t *testing.T) {
	s := newTestStore(t, `{"children":[{"a":1,"b":2,"c":3}]}`)

	e, err := s.Set(0, tree.MustParse(`{"a":10,"c":30}`), tree.Root())
	require.NoError(t, err)

	undo, ok := e.Undo.(*syncevent.Set)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "c"}, undo.Data.Keys())
	assert.Equal(t, `{"a":1,"c":3}`, undo.Data.String())
	assert.Equal(t, `{"children":[{"a":10,"b":2,"c":30}]}`, s.Dump())

	e, err = s.SetKey(0, "b", tree.String("two"), tree.Root())
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, e.Undo.(*syncevent.Set).Data.String())
}

func TestInsertRowsEmptyData(t *testing.T) {
	s := newTestStore(t, "")

	e, err := s.InsertRows(0, 3, nil, tree.Root())
	require.NoError(t, err)
	assert.Equal(t, `{"children":[{},{},{}]}`, s.Dump())

	redo := e.Redo.(*syncevent.InsertRows)
	assert.Empty(t, redo.Data)
	assert.Equal(t, 3, redo.Count)

	data, err := e.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data":[]`)
}

func TestRemoveRowsZeroIsNoop(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, `{"children":[{"a":1}]}`, WithSink(rec))

	e, err := s.RemoveRows(0, 0, tree.Root())
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Empty(t, rec.events)
	assert.Nil(t, s.LastEvent())
	assert.Equal(t, `{"children":[{"a":1}]}`, s.Dump())
}

func TestFind(t *testing.T) {
	s := newTestStore(t, `{"children":[{"a":1},{"b":2},{"c":3,"children":[{"a":1},{"b":2},{"c":3}]}]}`)

	found := s.Find("a", query.Params{})
	require.Len(t, found, 2)
	assert.Equal(t, "/children/0", found[0].String())
	assert.Equal(t, "/children/2/children/0", found[1].String())

	assert.Len(t, s.Find("a", query.Params{MaxCount: 1}), 1)
	assert.Len(t, s.Find("a", query.Params{Value: tree.Int(2), MaxCount: 1}), 0)
	assert.Len(t, s.Find("d", query.Params{}), 0)
	assert.Len(t, s.Find("a", query.Params{MaxCount: -1, PruneDepth: 1}), 1)
	assert.Len(t, s.Find("a", query.Params{MaxCount: -1, PruneDepth: 2}), 2)

	p, ok := s.FindFirst("c", query.Params{})
	require.True(t, ok)
	assert.Equal(t, "/children/2", p.String())
}
