package syncrelay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"jsonstore/jsonsync/store"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/syncpubsub"
)

const (
	peerSendBuffer = 256
	writeTimeout   = 10 * time.Second
)

// Hub is the origin replica served over websockets. Every connecting peer
// first receives a reset event carrying the current document, then every
// event the origin applies.
type Hub struct {
	replica  *Replica
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mutex   sync.Mutex
	peers   map[*peer]struct{}
	deliver DeliverFunc
	closed  bool
}

type peer struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewHub makes s the origin and wraps it in a replica whose transport is the
// hub itself.
func NewHub(s *store.Store, opts ...ReplicaOption) *Hub {
	s.SetOrigin(true)
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		peers: make(map[*peer]struct{}),
	}
	h.replica = NewReplica(s, h, opts...)
	h.logger = h.replica.logger
	return h
}

// Replica returns the origin replica for local edits.
func (h *Hub) Replica() *Replica {
	return h.replica
}

// Start begins accepting peers.
func (h *Hub) Start(ctx context.Context) error {
	return h.replica.Start(ctx)
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.peers)
}

// Open implements Transport.
func (h *Hub) Open(ctx context.Context, deliver DeliverFunc) error {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return fmt.Errorf("hub is closed")
	}
	h.deliver = deliver
	h.mutex.Unlock()

	go func() {
		<-ctx.Done()
		h.Close()
	}()
	return nil
}

// Send implements Transport by broadcasting e to every peer. A peer that
// cannot keep up is disconnected.
func (h *Hub) Send(_ context.Context, e *syncevent.Event) error {
	data, err := e.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for p := range h.peers {
		if !p.enqueue(data) {
			h.logger.Warn("dropping slow peer", zap.String("remote", p.conn.RemoteAddr().String()))
			delete(h.peers, p)
			p.close()
		}
	}
	return nil
}

// Close disconnects every peer.
func (h *Hub) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for p := range h.peers {
		p.close()
	}
	h.peers = make(map[*peer]struct{})
	return nil
}

// ServeHTTP upgrades the request and runs the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mutex.Lock()
	deliver, closed := h.deliver, h.closed
	h.mutex.Unlock()
	if deliver == nil || closed {
		http.Error(w, "hub is not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	p := &peer{
		conn: conn,
		send: make(chan []byte, peerSendBuffer),
		done: make(chan struct{}),
	}

	// The greeting and registration happen under the replica lock so that
	// no event falls between the snapshot and the first broadcast.
	err = h.replica.Do(func(s *store.Store) error {
		data := s.AsTree()
		greeting := syncevent.New(
			&syncevent.Reset{ID: s.ID(), Data: data},
			&syncevent.Reset{ID: s.ID(), Data: data},
		)
		payload, err := greeting.Encode()
		if err != nil {
			return err
		}
		p.enqueue(payload)

		h.mutex.Lock()
		defer h.mutex.Unlock()
		if h.closed {
			return fmt.Errorf("hub is closed")
		}
		h.peers[p] = struct{}{}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to greet peer", zap.Error(err))
		p.close()
		return
	}

	h.logger.Info("peer connected", zap.String("remote", conn.RemoteAddr().String()))
	go p.writeLoop(h.logger)
	h.readLoop(p, deliver)
}

func (h *Hub) readLoop(p *peer, deliver DeliverFunc) {
	defer func() {
		h.mutex.Lock()
		delete(h.peers, p)
		h.mutex.Unlock()
		p.close()
		h.logger.Info("peer disconnected", zap.String("remote", p.conn.RemoteAddr().String()))
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		deliver(data, syncpubsub.EncodingFormatJSON)
	}
}

func (p *peer) enqueue(data []byte) bool {
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *peer) writeLoop(logger *zap.Logger) {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warn("websocket write error", zap.Error(err))
				p.close()
				return
			}
		}
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}
