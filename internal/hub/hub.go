// Package hub fans live feed envelopes out to websocket subscribers.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tggate/pkg/gate"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer   = 64
	defaultPingInterval = 30 * time.Second
)

// Transport is the write side of one subscriber connection.
// *websocket.Conn satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub is the subscriber registry. Every broadcast envelope is delivered to
// each live connection in subscription-independent order; per-connection
// delivery order always matches broadcast order because each connection has
// a single writer draining a FIFO queue.
//
// A connection that cannot keep up is dropped rather than allowed to stall
// the others.
type Hub struct {
	logger       *slog.Logger
	sendBuffer   int
	pingInterval time.Duration

	mu    sync.RWMutex
	conns map[string]*Connection
}

// Option mutates hub configuration.
type Option func(*Hub)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSendBuffer sets the per-connection outbound queue depth.
func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.sendBuffer = size
		}
	}
}

// WithPingInterval sets the idle keepalive period.
func WithPingInterval(interval time.Duration) Option {
	return func(h *Hub) {
		if interval > 0 {
			h.pingInterval = interval
		}
	}
}

// New creates an empty hub.
func New(options ...Option) *Hub {
	h := &Hub{
		logger:       slog.Default(),
		sendBuffer:   defaultSendBuffer,
		pingInterval: defaultPingInterval,
		conns:        make(map[string]*Connection),
	}
	for _, option := range options {
		option(h)
	}
	h.logger = h.logger.With(slog.String("component", "hub"))
	return h
}

// Connection is one registered subscriber.
type Connection struct {
	ID string

	hub       *Hub
	transport Transport
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe registers a transport, starts its writer, and queues the
// connected handshake so it precedes any live traffic.
func (h *Hub) Subscribe(transport Transport) (*Connection, error) {
	if transport == nil {
		return nil, fmt.Errorf("hub subscribe: nil transport")
	}

	conn := &Connection{
		ID:        uuid.NewString(),
		hub:       h,
		transport: transport,
		send:      make(chan []byte, h.sendBuffer),
		done:      make(chan struct{}),
	}

	handshake, err := json.Marshal(gate.EventEnvelope{Type: gate.EnvelopeConnected})
	if err != nil {
		return nil, fmt.Errorf("hub subscribe: marshal handshake: %w", err)
	}
	conn.send <- handshake

	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()

	go conn.writeLoop(h.pingInterval)

	h.logger.Info("subscriber joined", slog.String("connection_id", conn.ID))
	return conn, nil
}

// Unsubscribe removes and closes a connection. It is idempotent and safe to
// call for ids that were already dropped.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()

	if !ok {
		return
	}
	conn.close()
	h.logger.Info("subscriber left", slog.String("connection_id", id))
}

// Broadcast delivers one envelope to every live connection. Connections
// whose queues are full are dropped after the sweep; delivery to one
// subscriber never blocks on another.
func (h *Hub) Broadcast(envelope gate.EventEnvelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("broadcast marshal failed", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	snapshot := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		snapshot = append(snapshot, conn)
	}
	h.mu.RUnlock()

	var stale []string
	for _, conn := range snapshot {
		select {
		case conn.send <- payload:
		default:
			stale = append(stale, conn.ID)
		}
	}

	for _, id := range stale {
		h.logger.Warn("dropping slow subscriber", slog.String("connection_id", id))
		h.Unsubscribe(id)
	}
}

// Count reports the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}

// Done is closed once the connection is dropped.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close()
	})
}

// writeLoop is the single writer for one connection. Queue order is
// delivery order; an idle connection gets a ping envelope each interval.
func (c *Connection) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(gate.EventEnvelope{Type: gate.EnvelopePing})

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.transport.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.Unsubscribe(c.ID)
				return
			}
			ticker.Reset(pingInterval)
		case <-ticker.C:
			// The control ping draws a pong that refreshes the peer's read
			// deadline; the JSON envelope is the feed-level keepalive.
			if err := c.transport.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unsubscribe(c.ID)
				return
			}
			if err := c.transport.WriteMessage(websocket.TextMessage, ping); err != nil {
				c.hub.Unsubscribe(c.ID)
				return
			}
		}
	}
}
