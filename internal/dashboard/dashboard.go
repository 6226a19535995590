// Package dashboard broadcasts live session-admission and lifecycle
// events to connected websocket clients, adapted from the teacher's
// server.go Client/writePump hub (gorilla/websocket), generalized from
// that file's RF-stream broadcast to this system's session event feed.
package dashboard

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fieldsync/fieldsync/internal/logging"
)

// Event is one dashboard-visible occurrence: a session admitted, a
// governor's state change, or an END_STOP observed.
type Event struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Ident   uint32 `json:"ident,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client wraps one websocket connection with an outbound send queue, the
// same shape as the teacher's Client/writePump.
type Client struct {
	conn *websocket.Conn
	send chan Event
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// Hub fans Events out to every connected dashboard client.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	upgrader websocket.Upgrader
	log      *logging.Logger
}

// NewHub builds an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection and registers it as a dashboard
// client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("dashboard: upgrade failed", "err", err)
		return
	}
	client := &Client{conn: conn, send: make(chan Event, 32)}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go client.writePump()
	go h.readPump(client)
}

// readPump drains and discards inbound messages, purely to detect
// disconnects (the dashboard is a one-way broadcast feed).
func (h *Hub) readPump(client *Client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		close(client.send)
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast fans ev out to every connected client, dropping it for any
// client whose send queue is full rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Warn("dashboard: client send queue full, dropping event")
		}
	}
}
