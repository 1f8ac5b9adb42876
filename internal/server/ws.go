package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/scribe"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventMessage is pushed to WebSocket clients. The first message on a
// connection has Event "snapshot".
type EventMessage struct {
	Event    string          `json:"event"`
	Symbol   string          `json:"symbol,omitempty"`
	Error    string          `json:"error,omitempty"`
	Snapshot scribe.Snapshot `json:"snapshot"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsHandler pushes pipeline events to WebSocket clients.
type EventsHandler struct {
	controller Controller
	log        *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewEventsHandler creates an EventsHandler subscribed to c.
func NewEventsHandler(c Controller, logger *slog.Logger) *EventsHandler {
	h := &EventsHandler{
		controller: c,
		log:        logger,
		clients:    make(map[*client]struct{}),
	}
	c.OnEvent(h.publish)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if msg, err := json.Marshal(EventMessage{Event: "snapshot", Snapshot: h.controller.Snapshot()}); err == nil {
		c.send <- msg
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventsHandler) publish(ev scribe.Event) {
	msg := EventMessage{
		Event:    ev.Kind.String(),
		Symbol:   ev.Symbol,
		Snapshot: ev.State,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode event", "event", msg.Event, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug("dropping event for slow client", "event", msg.Event)
		}
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
