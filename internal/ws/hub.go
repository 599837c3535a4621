package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/observability"
)

const (
	writeTimeout = 5 * time.Second

	readBufferSize  = 1024
	writeBufferSize = 4096
)

type alertEvent struct {
	Type      string        `json:"type"`
	Alert     *models.Alert `json:"alert"`
	Timestamp float64       `json:"timestamp"`
}

// client wraps one connection with a write lock. gorilla/websocket permits
// at most one concurrent writer per connection, and broadcasts arrive from
// parallel dispatch workers.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(event alertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(event)
}

func (c *client) closeWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeTimeout))
	c.conn.Close()
}

// Hub broadcasts dispatched alerts to all connected websocket clients.
// It is a side channel: broadcasts carry every alert regardless of any
// subscriber's filters, and a failed write only evicts that one client.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *observability.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Handle upgrades an HTTP request and registers the connection. The read
// loop only drains control frames; clients are listen-only.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}

	cl := &client{conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.setGauge(n)

	slog.Info("websocket client connected", "remote", conn.RemoteAddr().String(), "clients", n)

	go h.readLoop(cl)
}

func (h *Hub) readLoop(cl *client) {
	defer h.drop(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(cl *client) {
	cl.conn.Close()
	h.mu.Lock()
	if _, ok := h.clients[cl]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, cl)
	n := len(h.clients)
	h.mu.Unlock()
	h.setGauge(n)

	slog.Info("websocket client disconnected", "clients", n)
}

// Broadcast sends the alert event to every connected client and returns the
// number of clients that received it. Clients whose write fails are evicted.
// Safe to call from concurrent dispatch passes; each client's write lock
// serializes frames onto its connection.
func (h *Hub) Broadcast(alert *models.Alert, at time.Time) int {
	event := alertEvent{
		Type:      "disaster_alert",
		Alert:     alert,
		Timestamp: float64(at.UnixNano()) / 1e9,
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	sent := 0
	for _, cl := range clients {
		if err := cl.write(event); err != nil {
			slog.Warn("websocket broadcast failed, dropping client", "error", err)
			h.drop(cl)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects future registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, cl := range clients {
		cl.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	h.setGauge(0)
}

func (h *Hub) setGauge(n int) {
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(n))
	}
}
