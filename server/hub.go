package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voidreach/cadence/session"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Buffer per client; slow consumers get events dropped, not the hub blocked
	clientSendBuffer = 64
)

// Hub fans session lifecycle events out to connected WebSocket clients.
// It implements session.Broadcaster.
type Hub struct {
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// wsClient represents one WebSocket client connection
type wsClient struct {
	conn *websocket.Conn
	send chan interface{}
}

// NewHub creates an empty hub.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon binds to loopback by default; same-host pages may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Start is a lifecycle hook for symmetry with Stop; the hub has no
// background work of its own.
func (h *Hub) Start() {}

// Stop disconnects every client and refuses new ones.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// HandleWebSocket upgrades the connection and registers the client for
// lifecycle events.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan interface{}, clientSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Infow("WebSocket client connected", "remote", r.RemoteAddr)

	go h.writePump(client)
	go h.readPump(client)
}

// BroadcastSessionEvent sends the event to every connected client. Clients
// whose buffers are full miss the event rather than stalling the engine.
//
// The read lock is held across the sends: send channels are only closed
// under the write lock (Stop, dropClient), so a client cannot be torn down
// mid-broadcast. The sends are non-blocking, so the lock is held only for
// channel handoffs, never for network writes.
func (h *Hub) BroadcastSessionEvent(ev session.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Channel full - skip
		}
	}
}

func (h *Hub) dropClient(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// writePump serializes outbound events and keeps the connection alive with
// pings.
func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.Debugw("WebSocket write failed, dropping client", "error", err)
				h.dropClient(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.dropClient(c)
				return
			}
		}
	}
}

// readPump discards inbound messages; the stream is one-way. It exists to
// process control frames and detect closed connections.
func (h *Hub) readPump(c *wsClient) {
	defer h.dropClient(c)

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
