package syncrelay

import (
	"context"
	"fmt"
	"sync"

	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/syncpubsub"
)

// EditsTopic is where followers publish their edits for the origin.
func EditsTopic(topic string) string {
	return topic + ".edits"
}

// EventsTopic is where the origin broadcasts the events it applied.
func EventsTopic(topic string) string {
	return topic + ".events"
}

// PubSubTransport runs the relay protocol over a publish/subscribe bus. The
// origin consumes the edits topic and publishes to the events topic;
// followers do the reverse.
type PubSubTransport struct {
	ps           syncpubsub.PubSub
	topic        string
	origin       bool
	subscriberID string
	format       syncpubsub.EncodingFormat

	mu     sync.Mutex
	opened bool
}

// NewPubSubTransport builds a transport for one replica of the document
// named topic. subscriberID must be unique among the bus's subscribers.
func NewPubSubTransport(ps syncpubsub.PubSub, topic string, origin bool, subscriberID string) *PubSubTransport {
	return &PubSubTransport{
		ps:           ps,
		topic:        topic,
		origin:       origin,
		subscriberID: subscriberID,
	}
}

// WithFormat sets the payload encoding used when sending.
func (t *PubSubTransport) WithFormat(format syncpubsub.EncodingFormat) *PubSubTransport {
	t.format = format
	return t
}

func (t *PubSubTransport) inbound() string {
	if t.origin {
		return EditsTopic(t.topic)
	}
	return EventsTopic(t.topic)
}

func (t *PubSubTransport) outbound() string {
	if t.origin {
		return EventsTopic(t.topic)
	}
	return EditsTopic(t.topic)
}

// Open subscribes to the inbound topic.
func (t *PubSubTransport) Open(ctx context.Context, deliver DeliverFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.opened {
		return fmt.Errorf("transport already open")
	}
	handler := func(_ context.Context, _ string, data []byte, format syncpubsub.EncodingFormat) error {
		deliver(data, format)
		return nil
	}
	if err := t.ps.Subscribe(ctx, t.inbound(), t.subscriberID, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", t.inbound(), err)
	}
	t.opened = true
	return nil
}

// Send publishes e to the outbound topic.
func (t *PubSubTransport) Send(ctx context.Context, e *syncevent.Event) error {
	return t.ps.Publish(ctx, t.outbound(), e, t.format)
}

// Close unsubscribes. The bus itself stays open.
func (t *PubSubTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.opened {
		return nil
	}
	t.opened = false
	return t.ps.Unsubscribe(context.Background(), t.inbound(), t.subscriberID)
}
