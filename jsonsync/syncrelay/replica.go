// Package syncrelay connects stores to a transport so that replicas of one
// document stay in step.
//
// The protocol is single origin plus relay: followers send their edits to
// the origin, the origin applies every edit in arrival order and broadcasts
// the result to all followers, including the author, whose echo filter drops
// it. The origin's arrival order is the total order every replica applies.
package syncrelay

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"jsonstore/jsonsync/store"
	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/syncpubsub"
)

// Transport carries events between one replica and the others.
type Transport interface {
	// Open starts delivering inbound payloads to deliver. It does not block.
	Open(ctx context.Context, deliver DeliverFunc) error
	// Send ships an event emitted by the local store.
	Send(ctx context.Context, e *syncevent.Event) error
	// Close stops the transport.
	Close() error
}

// DeliverFunc receives an inbound payload.
type DeliverFunc func(data []byte, format syncpubsub.EncodingFormat)

// Replica serializes access to a store and wires it to a transport: events
// the store emits are sent, and inbound events are processed as remote redo
// events. Undecodable or inapplicable inbound events are logged and dropped.
type Replica struct {
	mu        sync.Mutex
	store     *store.Store
	transport Transport
	sinks     []store.Sink
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	dropped atomic.Int64
}

// ReplicaOption configures a Replica.
type ReplicaOption func(*Replica)

// WithSinks adds sinks that see every emitted event before it is sent, for
// example a history.Recorder or a journal.Sink.
func WithSinks(sinks ...store.Sink) ReplicaOption {
	return func(r *Replica) {
		r.sinks = append(r.sinks, sinks...)
	}
}

// WithLogger sets the replica's logger.
func WithLogger(logger *zap.Logger) ReplicaOption {
	return func(r *Replica) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReplica takes over s: it becomes the store's sink, and all further access
// to s should go through Do or View.
func NewReplica(s *store.Store, t Transport, opts ...ReplicaOption) *Replica {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Replica{
		store:     s,
		transport: t,
		logger:    synclog.GetLogger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("replica_id", s.ID().String()))
	s.SetSink(r)
	return r
}

// Start opens the transport. Inbound events are processed until ctx is done
// or the replica is closed.
func (r *Replica) Start(ctx context.Context) error {
	r.mu.Lock()
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(ctx)
	runCtx := r.ctx
	r.mu.Unlock()

	return r.transport.Open(runCtx, r.Deliver)
}

// Do runs fn with exclusive access to the store. Events emitted by fn are
// sent before Do returns, in the order they were applied.
func (r *Replica) Do(fn func(s *store.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.store)
}

// View runs fn with exclusive access to the store for reading.
func (r *Replica) View(fn func(s *store.Store)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.store)
}

// Dump returns the canonical serialization of the document.
func (r *Replica) Dump() string {
	var out string
	r.View(func(s *store.Store) { out = s.Dump() })
	return out
}

// Dropped returns how many inbound events were discarded.
func (r *Replica) Dropped() int64 {
	return r.dropped.Load()
}

// OnEvent implements store.Sink. It runs with the replica lock held.
func (r *Replica) OnEvent(e *syncevent.Event, isUndoRedo bool) {
	for _, sink := range r.sinks {
		sink.OnEvent(e, isUndoRedo)
	}
	if err := r.transport.Send(r.ctx, e); err != nil {
		r.logger.Error("failed to send event",
			zap.String("op", string(e.Redo.Type())),
			zap.Error(err))
	}
}

// Deliver processes one inbound payload.
func (r *Replica) Deliver(data []byte, format syncpubsub.EncodingFormat) {
	e, err := syncpubsub.DecodeEvent(data, format)
	if err != nil {
		r.dropped.Add(1)
		r.logger.Warn("dropped malformed event", zap.Int("size", len(data)), zap.Error(err))
		return
	}

	r.mu.Lock()
	err = r.store.ProcessEvent(e, true, false, false)
	r.mu.Unlock()

	if err != nil {
		r.dropped.Add(1)
		r.logger.Warn("dropped inapplicable event",
			zap.String("op", string(e.Redo.Type())),
			zap.String("source", e.Redo.Source().String()),
			zap.Error(err))
	}
}

// Close stops inbound processing and closes the transport.
func (r *Replica) Close() error {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	return r.transport.Close()
}
