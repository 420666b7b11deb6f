// Package store holds one replica of a hierarchical JSON document and the
// event-sourced operations that change it.
//
// Every mutation computes its exact inverse and returns both as a
// syncevent.Event. Events are handed to the Sink when the call was local or
// when the store is the relay origin. Remote events are fed back through
// ProcessEvent; a replica skips redo events carrying its own id, which stops
// echoes from looping.
//
// A Store is not safe for concurrent use. Callers serialize access.
package store

import (
	"go.uber.org/zap"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/query"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/tree"
)

// Store is one replica of the document.
type Store struct {
	id        common.ReplicaID
	origin    bool
	root      *tree.Node
	lastEvent *syncevent.Event
	sink      Sink
	logger    *zap.Logger
}

// New creates a store. Without WithData the document is {"children":[]}.
func New(opts ...Option) *Store {
	o := NewOptions()
	for _, opt := range opts {
		opt(o)
	}

	root := tree.Container()
	if o.Data != nil {
		root = o.Data.Clone()
	}

	return &Store{
		id:     o.ID,
		origin: o.Origin,
		root:   root,
		sink:   o.Sink,
		logger: o.Logger,
	}
}

// NewFromJSON creates a store whose document is parsed from data.
func NewFromJSON(data []byte, opts ...Option) (*Store, error) {
	root, err := tree.Parse(data)
	if err != nil {
		return nil, err
	}
	return New(append(opts, WithData(root))...), nil
}

// ID returns the replica id.
func (s *Store) ID() common.ReplicaID {
	return s.id
}

// SetID changes the replica id used for new local events.
func (s *Store) SetID(id common.ReplicaID) {
	s.id = id
}

// Origin reports whether the store re-emits remote events.
func (s *Store) Origin() bool {
	return s.origin
}

// SetOrigin changes the relay role.
func (s *Store) SetOrigin(origin bool) {
	s.origin = origin
}

// SetSink replaces the emission sink.
func (s *Store) SetSink(sink Sink) {
	s.sink = sink
}

// LastEvent returns the event produced by the most recent accepted apply,
// local or remote, or nil if nothing was applied yet.
func (s *Store) LastEvent() *syncevent.Event {
	return s.lastEvent
}

// At returns a copy of the node at p.
func (s *Store) At(p tree.Path) (*tree.Node, error) {
	n, err := tree.At(s.root, p)
	if err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// AsTree returns a copy of the whole document.
func (s *Store) AsTree() *tree.Node {
	return s.root.Clone()
}

// Dump returns the canonical serialization of the document: compact with
// sorted object keys. Replicas that saw the same events dump the same bytes.
func (s *Store) Dump() string {
	return s.root.String()
}

// Find searches the rows below p.Parent. See query.Find.
func (s *Store) Find(key string, p query.Params) []tree.Path {
	return query.Find(s.root, key, p)
}

// FindFirst returns the first match of Find.
func (s *Store) FindFirst(key string, p query.Params) (tree.Path, bool) {
	return query.FindFirst(s.root, key, p)
}
