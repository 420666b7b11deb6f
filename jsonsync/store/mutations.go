package store

import (
	"github.com/pkg/errors"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/tree"
)

// Insert sets parent[key] = data, creating or replacing the field.
func (s *Store) Insert(key string, data *tree.Node, parent tree.Path) (*syncevent.Event, error) {
	return s.insert(true, s.id, false, parent, key, data)
}

// InsertRows splices count rows into parent's children at row. An empty data
// inserts count empty objects; otherwise data must hold exactly count rows.
func (s *Store) InsertRows(row, count int, data []*tree.Node, parent tree.Path) (*syncevent.Event, error) {
	return s.insertRows(true, s.id, false, parent, row, count, data)
}

// Remove deletes parent[key].
func (s *Store) Remove(key string, parent tree.Path) (*syncevent.Event, error) {
	return s.remove(true, s.id, false, parent, key)
}

// RemoveRows deletes count rows of parent's children starting at row.
// Removing zero rows does nothing and returns a nil event.
func (s *Store) RemoveRows(row, count int, parent tree.Path) (*syncevent.Event, error) {
	return s.removeRows(true, s.id, false, parent, row, count)
}

// Set overwrites, for every field of data, the same field of the row. Each
// field must already exist on the row.
func (s *Store) Set(row int, data *tree.Node, parent tree.Path) (*syncevent.Event, error) {
	return s.set(true, s.id, false, parent, row, data)
}

// SetKey overwrites a single field of the row.
func (s *Store) SetKey(row int, key string, value *tree.Node, parent tree.Path) (*syncevent.Event, error) {
	data := tree.Object()
	data.Put(key, value)
	return s.set(true, s.id, false, parent, row, data)
}

// MoveRows cuts count rows out of srcParent's children at srcRow and inserts
// them into dstParent's children at dstRow. dstParent and dstRow are resolved
// after the cut.
func (s *Store) MoveRows(srcParent tree.Path, srcRow, count int, dstParent tree.Path, dstRow int) (*syncevent.Event, error) {
	return s.move(true, s.id, false, srcParent, srcRow, count, dstParent, dstRow)
}

// ResetData replaces the whole document. Its undo carries the previous
// document in full.
func (s *Store) ResetData(data *tree.Node) (*syncevent.Event, error) {
	return s.reset(true, s.id, false, data)
}

func (s *Store) objectAt(parent tree.Path) (*tree.Node, error) {
	obj, err := tree.At(s.root, parent)
	if err != nil {
		return nil, err
	}
	if !obj.IsObject() {
		return nil, common.ErrPathNotFound{Path: parent.String(), Reason: obj.Kind().String() + " is not an object"}
	}
	return obj, nil
}

func checkRows(parent tree.Path, children *tree.Node, row, count int, inclusiveEnd bool) error {
	if count < 0 {
		return common.ErrInvalidArgument{Message: "negative row count"}
	}
	limit := children.Len()
	if !inclusiveEnd {
		limit -= count
	}
	if row < 0 || row > limit {
		return common.ErrIndexOutOfRange{Path: parent.String(), Row: row, Count: count, Len: children.Len()}
	}
	return nil
}

func cloneRows(rows []*tree.Node) []*tree.Node {
	out := make([]*tree.Node, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func (s *Store) insert(local bool, id common.ReplicaID, undoRedo bool, parent tree.Path, key string, data *tree.Node) (*syncevent.Event, error) {
	obj, err := s.objectAt(parent)
	if err != nil {
		return nil, errors.Wrapf(err, "insert %q", key)
	}

	redo := &syncevent.Insert{ID: id, Parent: parent, Key: key, Data: data.Clone()}
	var undo syncevent.Op
	if prior, ok := obj.Get(key); ok {
		undo = &syncevent.Insert{ID: id, Parent: parent, Key: key, Data: prior}
	} else {
		undo = &syncevent.Remove{ID: id, Parent: parent, Key: key}
	}

	obj.Put(key, data.Clone())
	return s.emit(syncevent.New(redo, undo), local, undoRedo), nil
}

func (s *Store) insertRows(local bool, id common.ReplicaID, undoRedo bool, parent tree.Path, row, count int, data []*tree.Node) (*syncevent.Event, error) {
	children, err := tree.ChildrenOf(s.root, parent)
	if err != nil {
		return nil, errors.Wrap(err, "insert rows")
	}
	if err := checkRows(parent, children, row, count, true); err != nil {
		return nil, errors.Wrap(err, "insert rows")
	}
	if len(data) > 0 && len(data) != count {
		return nil, errors.Wrap(common.ErrInvalidArgument{Message: "row data does not match row count"}, "insert rows")
	}

	var rows []*tree.Node
	if len(data) == 0 {
		rows = make([]*tree.Node, count)
		for i := range rows {
			rows[i] = tree.Object()
		}
	} else {
		rows = cloneRows(data)
	}

	redo := &syncevent.InsertRows{ID: id, Parent: parent, Row: row, Count: count, Data: cloneRows(data)}
	undo := &syncevent.RemoveRows{ID: id, Parent: parent, Row: row, Count: count}

	children.InsertAt(row, rows...)
	return s.emit(syncevent.New(redo, undo), local, undoRedo), nil
}

func (s *Store) remove(local bool, id common.ReplicaID, undoRedo bool, parent tree.Path, key string) (*syncevent.Event, error) {
	obj, err := s.objectAt(parent)
	if err != nil {
		return nil, errors.Wrapf(err, "remove %q", key)
	}
	prior, ok := obj.Delete(key)
	if !ok {
		return nil, errors.Wrap(common.ErrKeyNotFound{Path: parent.String(), Key: key}, "remove")
	}

	redo := &syncevent.Remove{ID: id, Parent: parent, Key: key}
	undo := &syncevent.Insert{ID: id, Parent: parent, Key: key, Data: prior}
	return s.emit(syncevent.New(redo, undo), local, undoRedo), nil
}

func (s *Store) removeRows(local bool, id common.ReplicaID, undoRedo bool, parent tree.Path, row, count int) (*syncevent.Event, error) {
	children, err := tree.ChildrenOf(s.root, parent)
	if err != nil {
		return nil, errors.Wrap(err, "remove rows")
	}
	if err := checkRows(parent, children, row, count, false); err != nil {
		return nil, errors.Wrap(err, "remove rows")
	}
	if count == 0 {
		return nil, nil
	}

	removed := children.RemoveRange(row, count)

	redo := &syncevent.RemoveRows{ID: id, Parent: parent, Row: row, Count: count}
	undo := &syncevent.InsertRows{ID: id, Parent: parent, Row: row, Count: count, Data: removed}
	return s.emit(syncevent.New(redo, undo), local, undoRedo), nil
}

func (s *Store) set(local bool, id common.ReplicaID, undoRedo bool, parent tree.Path, row int, data *tree.Node) (*syncevent.Event, error) {
	if !data.IsObject() {
		return nil, errors.Wrap(common.ErrInvalidArgument{Message: "set data must be an object"}, "set")
	}
	children, err := tree.ChildrenOf(s.root, parent)
	if err != nil {
		return nil, errors.Wrap(err, "set")
	}
	if row < 0 || row >= children.Len() {
		return nil, errors.Wrap(common.ErrIndexOutOfRange{Path: parent.String(), Row: row, Count: 1, Len: children.Len()}, "set")
	}

	rowPath := parent.Row(row)
	target := children.Index(row)
	if !target.IsObject() {
		return nil, errors.Wrap(common.ErrPathNotFound{Path: rowPath.String(), Reason: "row is not an object"}, "set")
	}
	keys := data.Keys()
	for _, key := range keys {
		if !target.Has(key) {
			return nil, errors.Wrap(common.ErrKeyNotFound{Path: rowPath.String(), Key: key}, "set")
		}
	}

	prior := tree.Object()
	for _, key := range keys {
		old, _ := target.Get(key)
		v, _ := data.Get(key)
		prior.Put(key, old)
		target.Put(key, v.Clone())
	}

	redo := &syncevent.Set{ID: id, Parent: parent, Row: row, Data: data.Clone()}
	undo := &syncevent.Set{ID: id, Parent: parent, Row: row, Data: prior}
	return s.emit(syncevent.New(redo, undo), local, undoRedo), nil
}

func (s *Store) move(local bool, id common.ReplicaID, undoRedo bool, srcParent tree.Path, srcRow, count int, dstParent tree.Path, dstRow int) (*syncevent.Event, error) {
	src, err := tree.ChildrenOf(s.root, srcParent)
	if err != nil {
		return nil, errors.Wrap(err, "move rows: source")
	}
	if err := checkRows(srcParent, src, srcRow, count, false); err != nil {
		return nil, errors.Wrap(err, "move rows: source")
	}

	moved := src.RemoveRange(srcRow, count)

	dst, err := tree.ChildrenOf(s.root, dstParent)
	if err == nil {
		err = checkRows(dstParent, dst, dstRow, count, true)
	}
	if err != nil {
		src.InsertAt(srcRow, moved...)
		return nil, errors.Wrap(err, "move rows: destination")
	}

	dst.InsertAt(dstRow, moved...)

	redo := &syncevent.Move{ID: id, SrcParent: srcParent, SrcRow: srcRow, Count: count, DstParent: dstParent, DstRow: dstRow}
	undo := &syncevent.Move{ID: id, SrcParent: dstParent, SrcRow: dstRow, Count: count, DstParent: srcParent, DstRow: srcRow}
	return s.emit(syncevent.New(redo, undo), local, undoRedo), nil
}

func (s *Store) reset(local bool, id common.ReplicaID, undoRedo bool, data *tree.Node) (*syncevent.Event, error) {
	if data == nil {
		data = tree.Container()
	}
	prior := s.root
	s.root = data.Clone()

	redo := &syncevent.Reset{ID: id, Data: data.Clone()}
	undo := &syncevent.Reset{ID: id, Data: prior}
	return s.emit(syncevent.New(redo, undo), local, undoRedo), nil
}
