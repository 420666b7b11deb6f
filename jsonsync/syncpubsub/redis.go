package syncpubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"jsonstore/jsonsync/syncevent"
)

// RedisPubSub publishes envelopes with Redis PUBLISH. Every subscription owns
// its own Redis subscription and a single reader goroutine, which keeps
// delivery in channel order.
type RedisPubSub struct {
	client        *redis.Client
	options       *Options
	subscriptions map[string]*redisSubscription
	mutex         sync.Mutex
	closed        bool
}

type redisSubscription struct {
	topic        string
	subscriberID string
	pubsub       *redis.PubSub
	handler      SubscriberFunc
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewRedisPubSub wraps client, checking the connection first.
func NewRedisPubSub(client *redis.Client, options *Options) (*RedisPubSub, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPubSub{
		client:        client,
		options:       normalize(options),
		subscriptions: make(map[string]*redisSubscription),
	}, nil
}

func subscriptionKey(topic, subscriberID string) string {
	return topic + "\x00" + subscriberID
}

// Publish encodes e and publishes it to topic.
func (ps *RedisPubSub) Publish(ctx context.Context, topic string, e *syncevent.Event, format EncodingFormat) error {
	format = ps.options.format(format)
	data, err := EncodeEvent(e, format)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return ps.PublishRaw(ctx, topic, data, format)
}

// PublishRaw publishes an encoded payload to topic.
func (ps *RedisPubSub) PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error {
	ps.mutex.Lock()
	closed := ps.closed
	ps.mutex.Unlock()
	if closed {
		return fmt.Errorf("pubsub is closed")
	}

	msg := ps.options.message(topic, data, ps.options.format(format))
	msgData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return ps.client.Publish(ctx, topic, msgData).Err()
}

// Subscribe subscribes to topic and returns once Redis confirmed the
// subscription, so later publishes are not missed.
func (ps *RedisPubSub) Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("pubsub is closed")
	}
	key := subscriptionKey(topic, subscriberID)
	if _, ok := ps.subscriptions[key]; ok {
		return fmt.Errorf("already subscribed to topic: %s with subscriberID: %s", topic, subscriberID)
	}

	pubsub := ps.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		topic:        topic,
		subscriberID: subscriberID,
		pubsub:       pubsub,
		handler:      handler,
		ctx:          subCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	ps.subscriptions[key] = sub

	go ps.handleMessages(sub)
	return nil
}

func (ps *RedisPubSub) handleMessages(sub *redisSubscription) {
	defer close(sub.done)

	ch := sub.pubsub.Channel()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var envelope EventMessage
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				ps.options.Logger.Warn("failed to decode message",
					zap.String("topic", msg.Channel),
					zap.Error(err))
				continue
			}
			if err := sub.handler(sub.ctx, msg.Channel, envelope.Payload, envelope.Format); err != nil {
				ps.options.Logger.Warn("failed to handle message",
					zap.String("topic", msg.Channel),
					zap.String("subscriber_id", sub.subscriberID),
					zap.Error(err))
			}
		}
	}
}

// Unsubscribe ends a subscription and waits for its reader to stop.
func (ps *RedisPubSub) Unsubscribe(ctx context.Context, topic string, subscriberID string) error {
	ps.mutex.Lock()
	key := subscriptionKey(topic, subscriberID)
	sub, ok := ps.subscriptions[key]
	if ok {
		delete(ps.subscriptions, key)
	}
	ps.mutex.Unlock()

	if !ok {
		return fmt.Errorf("not subscribed to topic: %s with subscriberID: %s", topic, subscriberID)
	}
	return sub.stop()
}

func (s *redisSubscription) stop() error {
	s.cancel()
	err := s.pubsub.Close()
	<-s.done
	if err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}
	return nil
}

// Close ends all subscriptions. The Redis client stays open; its owner
// closes it.
func (ps *RedisPubSub) Close() error {
	ps.mutex.Lock()
	if ps.closed {
		ps.mutex.Unlock()
		return nil
	}
	ps.closed = true
	subs := ps.subscriptions
	ps.subscriptions = make(map[string]*redisSubscription)
	ps.mutex.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
