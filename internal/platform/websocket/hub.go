// Package websocket implements the live event broadcaster. Every connected
// subscriber receives every envelope; a subscriber that cannot keep up or
// fails a write is disconnected without affecting anyone else.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/platform/events"
	"github.com/rpm/rpm/internal/platform/metrics"
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// State is a subscriber's connection state. It only moves forward.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var ErrClientClosed = errors.New("websocket: client is closed")

// Client is one live subscriber. send is never closed; done signals shutdown
// to the writer goroutine.
type Client struct {
	ID    string
	conn  Conn
	send  chan []byte
	done  chan struct{}
	state atomic.Int32
	once  sync.Once
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// enqueue reports false when the buffer is full.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub is the live event broadcaster. It implements events.Sink and fans
// each envelope out to every connected subscriber, dropping subscribers
// whose send buffer is full.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*Client]struct{}
	sendBuffer   int
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-subscriber queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds each socket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// NewHub returns an empty hub. Defaults: 64 queued envelopes per
// subscriber and a 5s write timeout.
func NewHub(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*Client]struct{}),
		sendBuffer:   64,
		writeTimeout: 5 * time.Second,
		logger:       logger.With().Str("component", "ws_hub").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewClient wraps conn in an Idle client owned by this hub.
func (h *Hub) NewClient(conn Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}
}

// Connect moves an Idle client to Connected, adds it to the broadcast set and
// starts its writer.
func (h *Hub) Connect(c *Client) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnected)) {
		return ErrClientClosed
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveSubscribers.Set(float64(n))
	h.logger.Debug().Str("client_id", c.ID).Int("subscribers", n).Msg("subscriber connected")

	go h.writePump(c)
	return nil
}

// Disconnect removes c and closes its connection. Safe to call any number of
// times from any goroutine.
func (h *Hub) Disconnect(c *Client) {
	c.once.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)

		h.mu.Lock()
		delete(h.clients, c)
		n := len(h.clients)
		h.mu.Unlock()

		_ = c.conn.Close()
		metrics.ActiveSubscribers.Set(float64(n))
		h.logger.Debug().Str("client_id", c.ID).Int("subscribers", n).Msg("subscriber disconnected")
	})
}

// Broadcast enqueues env for every connected subscriber. It never blocks on a
// subscriber and never fails; a subscriber whose buffer is full is dropped.
func (h *Hub) Broadcast(_ context.Context, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(env.Type)).Msg("failed to marshal envelope")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			metrics.SubscribersDropped.WithLabelValues("buffer_full").Inc()
			h.logger.Warn().Str("client_id", c.ID).Msg("subscriber buffer full, disconnecting")
			h.Disconnect(c)
		}
	}
	metrics.EnvelopesBroadcast.WithLabelValues(string(env.Type)).Inc()
}

func (h *Hub) writePump(c *Client) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			select {
			case <-c.done:
				return
			default:
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
				metrics.SubscribersDropped.WithLabelValues("write_error").Inc()
				h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("subscriber write failed")
				h.Disconnect(c)
				return
			}
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.Disconnect(c)
	}
}
