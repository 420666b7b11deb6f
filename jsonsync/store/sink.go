package store

import (
	"jsonstore/jsonsync/syncevent"
)

// Sink receives every event a store emits, synchronously and in apply order.
// isUndoRedo is true when the event was produced by ApplyEvent/UnapplyEvent
// rather than by a fresh edit.
type Sink interface {
	OnEvent(e *syncevent.Event, isUndoRedo bool)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e *syncevent.Event, isUndoRedo bool)

func (f SinkFunc) OnEvent(e *syncevent.Event, isUndoRedo bool) {
	f(e, isUndoRedo)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) OnEvent(e *syncevent.Event, isUndoRedo bool) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(e, isUndoRedo)
		}
	}
}
