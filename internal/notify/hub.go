package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// HubConfig tunes per-connection buffering.
type HubConfig struct {
	// SendBuffer is the number of events queued per connection. A connection
	// whose buffer is full is closed; the client reconnects and re-reads state.
	SendBuffer   int
	WriteTimeout time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// client is one live WebSocket connection.
type client struct {
	id     string
	userID int64
	conn   *websocket.Conn
	send   chan []byte
}

// Hub keeps the live connections of this instance, keyed by user id.
// A user may hold several connections at once.
type Hub struct {
	upgrader websocket.Upgrader
	cfg      HubConfig
	metrics  *metrics.Metrics

	mu    sync.RWMutex
	users map[int64]map[*client]struct{}
}

// NewHub creates an empty Hub.
func NewHub(cfg HubConfig, m *metrics.Metrics) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: cfg.CheckOrigin},
		cfg:      cfg,
		metrics:  m,
		users:    make(map[int64]map[*client]struct{}),
	}
}

// ServeWS upgrades the request and registers the connection for userID.
// It returns when the connection is closed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Int64("user_id", userID).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.users[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.users[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.LiveConnections.Inc()
	log.Debug().Str("conn_id", c.id).Int64("user_id", c.userID).Msg("WebSocket connected")
}

// unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	set, ok := h.users[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.users, c.userID)
	}
	close(c.send)
	h.mu.Unlock()

	h.metrics.LiveConnections.Dec()
	log.Debug().Str("conn_id", c.id).Int64("user_id", c.userID).Msg("WebSocket disconnected")
}

// readPump discards client messages and keeps the connection alive with pongs.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Name implements Sink.
func (h *Hub) Name() string { return "hub" }

// Deliver writes the event to the connections of d.UserID, or to every
// connection for a broadcast. It never blocks on a slow client.
func (h *Hub) Deliver(_ context.Context, d Delivery) error {
	payload, err := json.Marshal(d.Event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var slow []*client
	h.mu.RLock()
	if d.Broadcast {
		for _, set := range h.users {
			slow = h.offer(set, payload, slow)
		}
	} else {
		slow = h.offer(h.users[d.UserID], payload, slow)
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("conn_id", c.id).Int64("user_id", c.userID).Msg("WebSocket send buffer full, closing connection")
		h.unregister(c)
	}
	return nil
}

// offer must be called with h.mu held.
func (h *Hub) offer(set map[*client]struct{}, payload []byte, slow []*client) []*client {
	for c := range set {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}

// Connections returns the number of live connections of userID.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, set := range h.users {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

var _ Sink = (*Hub)(nil)
