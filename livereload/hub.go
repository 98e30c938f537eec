// Package livereload pushes reload commands to browsers over websockets.
package livereload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/revel/devproxy/events"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/utils"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	sendBuffer       = 16
)

// Hub keeps the connected clients and broadcasts reloads to them.
type Hub struct {
	upgrader websocket.Upgrader
	bus      *events.Bus
	log      logger.MultiLogger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Connection and broadcast events are published on
// bus when it is not nil.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// Pages are served by the proxy on any host name the developer uses.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bus:     bus,
		log:     utils.Logger.New("section", "livereload"),
		clients: map[*client]struct{}{},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves one client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var hello HelloMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Command != "hello" {
		h.log.Warn("Handshake failed", "remote", r.RemoteAddr, "command", hello.Command, "error", err)
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	reply, _ := json.Marshal(newHello())
	c.send <- reply
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	go h.writePump(c)

	// Anything the client says after the handshake ("info", "url") is only logged.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug("Unreadable client message", "client", c.id, "error", err)
			continue
		}
		h.log.Debug("Client message", "client", c.id, "command", msg.Command)
	}
	h.unregister(c)
}

// Broadcast sends ev to every client and returns how many were reached.
// Clients that cannot keep up are dropped.
func (h *Hub) Broadcast(ev model.ReloadEvent) int {
	msgs := reloadMessages(ev)

	h.mu.Lock()
	sent := 0
	for c := range h.clients {
		ok := true
		for _, msg := range msgs {
			select {
			case c.send <- msg:
			default:
				ok = false
			}
		}
		if !ok {
			h.log.Warn("Dropping slow client", "client", c.id)
			h.removeLocked(c)
			continue
		}
		sent++
	}
	h.mu.Unlock()

	h.log.Info("Reload", "paths", ev.Paths, "liveCSS", ev.LiveCSS, "clients", sent)
	if h.bus != nil {
		h.bus.Publish(events.ReloadBroadcastEvent{Reload: ev, Clients: sent})
	}
	return sent
}

// Run broadcasts every event from in until it is closed or ctx is done.
func (h *Hub) Run(ctx context.Context, in <-chan model.ReloadEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("Client connected", "client", c.id, "clients", count)
	h.publishClient(c, true, count)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, found := h.clients[c]
	if found {
		h.removeLocked(c)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if found {
		h.log.Debug("Client disconnected", "client", c.id, "clients", count)
		h.publishClient(c, false, count)
	}
}

// removeLocked must be called with h.mu held. Closing send ends the write
// pump, which closes the connection.
func (h *Hub) removeLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) publishClient(c *client, connected bool, count int) {
	if h.bus != nil {
		h.bus.Publish(events.ClientConnectedEvent{ID: c.id, Connected: connected, Clients: count})
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("Write failed", "client", c.id, "error", err)
			_ = c.conn.Close()
			// Keep draining so Broadcast never blocks on this client.
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// reloadMessages encodes ev. A style refresh names every stylesheet, a full
// reload needs a single message.
func reloadMessages(ev model.ReloadEvent) (msgs [][]byte) {
	if ev.LiveCSS {
		for _, p := range ev.Paths {
			b, _ := json.Marshal(ReloadMessage{Command: "reload", Path: p, LiveCSS: true})
			msgs = append(msgs, b)
		}
		return
	}
	path := ""
	if len(ev.Paths) > 0 {
		path = ev.Paths[0]
	}
	b, _ := json.Marshal(ReloadMessage{Command: "reload", Path: path})
	return [][]byte{b}
}
