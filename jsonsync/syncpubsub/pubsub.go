// Package syncpubsub moves encoded store events between processes over a
// topic-based publish/subscribe bus. Every implementation delivers the
// messages of one topic to each subscriber in publish order.
package syncpubsub

import (
	"context"

	"go.uber.org/zap"

	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/syncevent"
)

// EncodingFormat names how an event payload is encoded.
type EncodingFormat string

const (
	// EncodingFormatJSON is the plain wire form of the event.
	EncodingFormatJSON EncodingFormat = "json"
	// EncodingFormatBase64 is the JSON wire form, base64 encoded.
	EncodingFormatBase64 EncodingFormat = "base64"
)

// EventMessage is the envelope published on a topic.
type EventMessage struct {
	// Topic is the topic the message was published to.
	Topic string `json:"topic"`
	// Payload is the encoded event.
	Payload []byte `json:"payload"`
	// Format is the encoding of Payload.
	Format EncodingFormat `json:"format"`
	// Metadata carries optional attributes, such as the publishing replica.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SubscriberFunc handles one received payload.
type SubscriberFunc func(ctx context.Context, topic string, data []byte, format EncodingFormat) error

// Publisher publishes events to topics.
type Publisher interface {
	// Publish encodes e and publishes it to topic.
	Publish(ctx context.Context, topic string, e *syncevent.Event, format EncodingFormat) error
	// PublishRaw publishes an already encoded payload.
	PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error
	Close() error
}

// Subscriber delivers the payloads published to a topic.
type Subscriber interface {
	// Subscribe registers handler under subscriberID for topic.
	Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error
	// Unsubscribe removes the subscription registered under subscriberID.
	Unsubscribe(ctx context.Context, topic string, subscriberID string) error
	Close() error
}

// PubSub is both a Publisher and a Subscriber.
type PubSub interface {
	Publisher
	Subscriber
}

// Options configures a PubSub implementation.
type Options struct {
	// DefaultFormat applies when a publish call passes an empty format.
	DefaultFormat EncodingFormat
	// ClientID is attached to published messages as the "client_id" metadata.
	ClientID string
	// QueueSize is the initial capacity of each in-memory subscriber queue.
	QueueSize int
	// Logger receives delivery failures.
	Logger *zap.Logger
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		DefaultFormat: EncodingFormatJSON,
		QueueSize:     64,
		Logger:        synclog.GetLogger(),
	}
}

func (o *Options) format(f EncodingFormat) EncodingFormat {
	if f == "" {
		return o.DefaultFormat
	}
	return f
}

func (o *Options) message(topic string, data []byte, format EncodingFormat) EventMessage {
	metadata := map[string]string{"format": string(format)}
	if o.ClientID != "" {
		metadata["client_id"] = o.ClientID
	}
	return EventMessage{Topic: topic, Payload: data, Format: format, Metadata: metadata}
}

func normalize(options *Options) *Options {
	if options == nil {
		return NewOptions()
	}
	o := *options
	if o.DefaultFormat == "" {
		o.DefaultFormat = EncodingFormatJSON
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Logger == nil {
		o.Logger = synclog.GetLogger()
	}
	return &o
}
