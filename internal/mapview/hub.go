package mapview

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	sendBufferSize      = 64
	broadcastBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans overlay commands out to every connected map client. It keeps the
// latest command of each type so a client that connects mid-trip receives
// the current overlay straight away.
type Hub struct {
	commands

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan Command
	done       chan struct{}

	mu     sync.RWMutex
	latest map[string][]byte
	order  []string

	log *logrus.Entry
}

// NewHub creates a Hub. Call Run to start it.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Command, broadcastBufferSize),
		done:       make(chan struct{}),
		latest:     make(map[string][]byte),
		log:        logrus.WithField("component", "mapview"),
	}
	h.commands = commands{publish: h.publish}
	return h
}

// publish never blocks the caller; when the hub is backed up the command is dropped.
func (h *Hub) publish(cmd Command) {
	select {
	case h.broadcast <- cmd:
	default:
		h.log.WithField("type", cmd.Type).Warn("map command dropped, hub is backed up")
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("map hub starting")
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			for _, msg := range h.snapshot() {
				if !h.clients[c] {
					break
				}
				h.deliver(c, msg)
			}

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}

		case cmd := <-h.broadcast:
			msg, err := json.Marshal(cmd)
			if err != nil {
				h.log.WithError(err).WithField("type", cmd.Type).Error("encode map command")
				continue
			}
			h.remember(cmd.Type, msg)
			for c := range h.clients {
				h.deliver(c, msg)
			}

		case <-ctx.Done():
			h.log.Info("map hub shutting down")
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

// deliver queues msg for c, dropping clients that cannot keep up.
func (h *Hub) deliver(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn("slow map client disconnected")
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remember(cmdType string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.latest[cmdType]; !ok {
		h.order = append(h.order, cmdType)
	}
	h.latest[cmdType] = msg
}

func (h *Hub) snapshot() [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([][]byte, 0, len(h.order))
	for _, t := range h.order {
		out = append(out, h.latest[t])
	}
	return out
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump only drains control frames; map clients never send commands.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("map client read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
