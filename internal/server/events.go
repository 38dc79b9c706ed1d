package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openg2/g2ctl/internal/device"
)

// Event is one message on the websocket feed.
type Event struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// client wraps one websocket connection with a write lock: the websocket
// library forbids concurrent writers on one connection, and Broadcast runs
// from concurrent request paths.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	return c.conn.WriteJSON(event)
}

// EventHub fans events out to connected websocket clients. Slow or dead
// clients are dropped rather than allowed to stall the feed.
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]*client)}
}

func (h *EventHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn}
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Broadcast sends event to every client, pruning any that fail.
func (h *EventHub) Broadcast(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	var failedMu sync.Mutex
	var failed []*websocket.Conn
	for _, c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := c.send(event); err != nil {
				failedMu.Lock()
				failed = append(failed, c.conn)
				failedMu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	for _, conn := range failed {
		h.remove(conn)
	}
}

// BroadcastFrame publishes one device write as a feed event; it is shaped
// to plug into device.Options.OnSend.
func (h *EventHub) BroadcastFrame(ev device.Event) {
	h.Broadcast(Event{
		Type: "device/frame",
		Payload: map[string]any{
			"endpoint": string(ev.Endpoint),
			"service":  fmt.Sprintf("%02x%02x", ev.Service.Hi, ev.Service.Lo),
			"sequence": ev.Sequence,
			"bytes":    ev.Bytes,
		},
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}
