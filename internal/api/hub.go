package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/metrics"
	"github.com/yourorg/camera-dashboard/internal/store"
)

const (
	clientBuffer = 16
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans store snapshots out to WebSocket clients. A client whose buffer
// is full is dropped.
type Hub struct {
	source func() store.Snapshot

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(source func() store.Snapshot) *Hub {
	return &Hub{
		source:  source,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) Run(ctx context.Context, snaps <-chan store.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case snap, ok := <-snaps:
			if !ok {
				h.closeAll()
				return
			}
			h.Broadcast(snap)
		}
	}
}

func (h *Hub) Broadcast(snap store.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("Failed to marshal snapshot: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Debug("WebSocket client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades the request and sends the current snapshot before any
// broadcast.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	initial, err := json.Marshal(h.source())
	if err != nil {
		log.Errorf("Failed to marshal snapshot: %v", err)
		conn.Close()
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	c.send <- initial
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()

	go c.writePump()
	go c.readPump(h)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketClients.Dec()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump only detects disconnects; clients send nothing we act on.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
