// Package alertfeed pushes detected events to WebSocket subscribers.
package alertfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"AriaPull/internal/domain/models"
	applogger "AriaPull/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrHubClosed is returned by Accept once the hub has stopped.
var ErrHubClosed = errors.New("alert feed closed")

// Message is the frame sent to subscribers.
type Message struct {
	Type  string               `json:"type"`
	Event models.AirborneEvent `json:"event"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the set of connected clients and fans frames out to them. A
// client whose buffer is full is dropped rather than slowing the others.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	running    atomic.Bool
	count      atomic.Int64
	sent       atomic.Int64

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	sendBuffer   int
	log          *applogger.Logger
}

type Option func(*Hub)

// WithPingInterval sets how often idle clients are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithSendBuffer sets the per-client frame buffer.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*client]bool),
		broadcast:    make(chan []byte, 256),
		register:     make(chan *client),
		unregister:   make(chan *client),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		writeWait:    10 * time.Second,
		sendBuffer:   64,
		log:          applogger.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		return
	}
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.log.Info("alert feed stopped")
			return
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			h.log.Info("alert feed client connected", applogger.String("client_id", c.id))
		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.log.Info("alert feed client disconnected", applogger.String("client_id", c.id))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("alert feed client too slow, dropping", applogger.String("client_id", c.id))
					h.drop(c)
				}
			}
			h.sent.Add(1)
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

// Clients is the number of connected subscribers.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Broadcasts is the number of frames fanned out so far.
func (h *Hub) Broadcasts() int64 { return h.sent.Load() }

// Accept queues e for every connected client.
func (h *Hub) Accept(ctx context.Context, e models.AirborneEvent) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	b, err := json.Marshal(Message{Type: "alert", Event: e})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	select {
	case h.broadcast <- b:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeWS upgrades the request and subscribes the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("alert feed upgrade failed", applogger.Error(err))
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, h.sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client frames and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
