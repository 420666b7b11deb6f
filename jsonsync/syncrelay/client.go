package syncrelay

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"jsonstore/jsonsync/store"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/syncpubsub"
)

// Client is a follower replica connected to a Hub.
type Client struct {
	replica *Replica
	conn    *websocket.Conn
	logger  *zap.Logger

	mutex  sync.Mutex
	closed bool
	done   chan struct{}
}

// Dial connects s to the hub at url and starts following it. The hub's
// greeting replaces the local document.
func Dial(ctx context.Context, url string, s *store.Store, opts ...ReplicaOption) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	s.SetOrigin(false)
	c := &Client{
		conn: conn,
		done: make(chan struct{}),
	}
	c.replica = NewReplica(s, c, opts...)
	c.logger = c.replica.logger

	if err := c.replica.Start(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Replica returns the follower replica for local edits.
func (c *Client) Replica() *Replica {
	return c.replica
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Open implements Transport by starting the receive loop.
func (c *Client) Open(ctx context.Context, deliver DeliverFunc) error {
	go c.receiveLoop(deliver)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	return nil
}

func (c *Client) receiveLoop(deliver DeliverFunc) {
	defer close(c.done)
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		deliver(data, syncpubsub.EncodingFormatJSON)
	}
}

// Send implements Transport by writing e to the hub.
func (c *Client) Send(_ context.Context, e *syncevent.Event) error {
	data, err := e.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
