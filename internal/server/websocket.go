package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/Retrace/internal/report"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev tool
	},
}

// Hub manages WebSocket clients and broadcasts replay events. It
// implements report.Reporter so it can sit alongside the other reporters
// of a session.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

// NewHub creates a new WebSocket hub. A nil logger uses slog.Default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	// Clients never send anything meaningful; reading detects disconnects.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Report broadcasts a session event to every connected client.
func (h *Hub) Report(e report.Event) {
	h.Broadcast(e)
}

// Broadcast sends an event to all connected WebSocket clients. Clients
// that cannot keep up are dropped.
func (h *Hub) Broadcast(e report.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("websocket marshal failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", "remote", conn.RemoteAddr().String(), "err", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay finished"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
}
