package store

import (
	"go.uber.org/zap"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/tree"
)

// Options configures a Store.
type Options struct {
	// ID is the replica id stamped on local events. A nil id gets a fresh one.
	ID common.ReplicaID
	// Origin makes the store re-emit remote events it applies.
	Origin bool
	// Sink receives emitted events. May be nil.
	Sink Sink
	// Logger defaults to the synclog global.
	Logger *zap.Logger
	// Data is the initial document; nil means {"children":[]}.
	Data *tree.Node
}

// Option mutates Options.
type Option func(*Options)

// NewOptions returns the defaults with a fresh replica id.
func NewOptions() *Options {
	return &Options{
		ID:     common.NewReplicaID(),
		Logger: synclog.GetLogger(),
	}
}

// WithID sets the replica id.
func WithID(id common.ReplicaID) Option {
	return func(o *Options) {
		if !id.IsNil() {
			o.ID = id
		}
	}
}

// WithOrigin marks the store as the relay origin.
func WithOrigin(origin bool) Option {
	return func(o *Options) {
		o.Origin = origin
	}
}

// WithSink sets the emission sink.
func WithSink(sink Sink) Option {
	return func(o *Options) {
		o.Sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithData sets the initial document. The store keeps its own copy.
func WithData(data *tree.Node) Option {
	return func(o *Options) {
		o.Data = data
	}
}
