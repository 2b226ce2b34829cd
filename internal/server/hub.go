package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ReloadMessage is sent to browsers after every completed build.
type ReloadMessage struct {
	Type    string `json:"type"`
	BuildID string `json:"build_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans reload messages out to connected live reload clients.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	lastBuild string
	logger    *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan ReloadMessage
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: map[int]*client{}, logger: logger}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the socket alive until the
// browser leaves or the hub shuts down. New clients receive a hello
// carrying the last build ID so they only reload on later builds.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("livereload upgrade failed", logfields.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan ReloadMessage, 8), done: make(chan struct{})}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.clients[id] = c
	last := h.lastBuild
	h.mu.Unlock()
	c.send <- ReloadMessage{Type: "hello", BuildID: last}

	go h.readPump(c)
	h.writePump(c)

	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
	_ = conn.Close()
}

// readPump discards client frames; it exists to process pongs and notice disconnects.
func (h *Hub) readPump(c *client) {
	defer c.close()
	c.conn.SetReadLimit(512)
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
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast tells every client that buildID finished. Slow clients miss
// the message rather than block the build.
func (h *Hub) Broadcast(buildID string) {
	msg := ReloadMessage{Type: "reload", BuildID: buildID}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.lastBuild = buildID
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("livereload client too slow, dropping message", slog.Int("client", id))
		}
	}
}

// Shutdown disconnects all clients and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, c := range h.clients {
		c.close()
	}
}
