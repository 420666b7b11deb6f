package syncpubsub

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"jsonstore/jsonsync/syncevent"
)

// MemoryPubSub is an in-process PubSub. Each subscription drains its own
// queue on a dedicated goroutine, so handlers may publish again without
// deadlocking, and a topic's messages reach every subscriber in the same
// order.
type MemoryPubSub struct {
	options       *Options
	subscriptions map[string][]*memorySubscription
	mutex         sync.Mutex
	closed        bool
}

type memorySubscription struct {
	topic        string
	subscriberID string
	handler      SubscriberFunc
	ctx          context.Context
	cancel       context.CancelFunc

	mu    sync.Mutex
	queue []EventMessage
	wake  chan struct{}
	done  chan struct{}
}

// NewMemoryPubSub creates an in-process PubSub.
func NewMemoryPubSub(options *Options) (*MemoryPubSub, error) {
	return &MemoryPubSub{
		options:       normalize(options),
		subscriptions: make(map[string][]*memorySubscription),
	}, nil
}

// Publish encodes e and delivers it to the topic's subscribers.
func (ps *MemoryPubSub) Publish(ctx context.Context, topic string, e *syncevent.Event, format EncodingFormat) error {
	format = ps.options.format(format)
	data, err := EncodeEvent(e, format)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return ps.deliver(ps.options.message(topic, data, format))
}

// PublishRaw delivers an encoded payload to the topic's subscribers.
func (ps *MemoryPubSub) PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error {
	return ps.deliver(ps.options.message(topic, data, ps.options.format(format)))
}

func (ps *MemoryPubSub) deliver(msg EventMessage) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("pubsub is closed")
	}
	for _, sub := range ps.subscriptions[msg.Topic] {
		sub.enqueue(msg)
	}
	return nil
}

// Subscribe registers handler for topic. A subscriberID may be used once
// per topic.
func (ps *MemoryPubSub) Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("pubsub is closed")
	}
	for _, sub := range ps.subscriptions[topic] {
		if sub.subscriberID == subscriberID {
			return fmt.Errorf("already subscribed to topic: %s with subscriberID: %s", topic, subscriberID)
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		topic:        topic,
		subscriberID: subscriberID,
		handler:      handler,
		ctx:          subCtx,
		cancel:       cancel,
		queue:        make([]EventMessage, 0, ps.options.QueueSize),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	ps.subscriptions[topic] = append(ps.subscriptions[topic], sub)

	go sub.run(ps.options.Logger)
	return nil
}

// Unsubscribe removes a subscription. Messages still queued for it are dropped.
func (ps *MemoryPubSub) Unsubscribe(ctx context.Context, topic string, subscriberID string) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("pubsub is closed")
	}

	subs := ps.subscriptions[topic]
	for i, sub := range subs {
		if sub.subscriberID != subscriberID {
			continue
		}
		sub.cancel()
		ps.subscriptions[topic] = append(subs[:i:i], subs[i+1:]...)
		if len(ps.subscriptions[topic]) == 0 {
			delete(ps.subscriptions, topic)
		}
		return nil
	}
	return fmt.Errorf("not subscribed to topic: %s with subscriberID: %s", topic, subscriberID)
}

// Close cancels every subscription.
func (ps *MemoryPubSub) Close() error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return nil
	}
	ps.closed = true
	for _, subs := range ps.subscriptions {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	ps.subscriptions = make(map[string][]*memorySubscription)
	return nil
}

func (s *memorySubscription) enqueue(msg EventMessage) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) run(logger *zap.Logger) {
	defer close(s.done)

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, msg := range batch {
			if s.ctx.Err() != nil {
				return
			}
			if err := s.handler(s.ctx, msg.Topic, msg.Payload, msg.Format); err != nil {
				logger.Warn("failed to handle message",
					zap.String("topic", msg.Topic),
					zap.String("subscriber_id", s.subscriberID),
					zap.Error(err))
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
	}
}
