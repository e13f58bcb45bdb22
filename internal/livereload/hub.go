// Package livereload pushes reload notifications to browsers in
// development mode.
package livereload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/tessera/internal/logging"
)

// Path is where browsers connect.
const Path = "/_tessera/live"

// Message is sent to every connected browser.
type Message struct {
	Type       string   `json:"type"`
	Generation uint64   `json:"generation,omitempty"`
	Routes     []string `json:"routes,omitempty"`
}

// Reload builds the message telling browsers to reload.
func Reload(generation uint64, routes []string) Message {
	return Message{Type: "reload", Generation: generation, Routes: routes}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected browsers and fans messages out to them. Each
// connection is served by its own handler goroutine; the hub only owns the
// client set.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	logger       logging.Logger
	writeTimeout time.Duration
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients:      make(map[*client]struct{}),
		logger:       logger.WithComponent("livereload"),
		writeTimeout: 10 * time.Second,
	}
}

// ServeHTTP upgrades the request and holds the connection until the
// browser leaves or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}
	defer h.remove(c)

	h.logger.Debug(r.Context(), "Browser connected", "remote", r.RemoteAddr, "clients", h.Clients())

	// browsers never send anything; CloseRead handles control frames
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues msg for every connected browser and returns how many
// accepted it. Browsers whose queue is full miss the message.
func (h *Hub) Broadcast(ctx context.Context, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(ctx, err, "Failed to encode live-reload message")
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
		}
	}
	h.logger.Debug(ctx, "Broadcast live-reload message", "type", msg.Type, "clients", sent)
	return sent
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every browser and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
