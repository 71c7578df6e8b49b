// Package hub provides a thread-safe websocket broadcast hub using the
// idiomatic Go channel-based fan-out pattern. Outbound telemetry and
// response lines fan out to every dashboard client; lines typed by any
// client feed back as inbound commands.
package hub

import (
	"log/slog"
	"sync"
)

// Hub maintains the set of active clients and broadcasts lines to them.
type Hub struct {
	log *slog.Logger

	clients map[*Client]bool

	// Outbound lines to broadcast
	broadcast chan string

	// Inbound command lines from any client
	inbound chan string

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for client count (read-only access from outside)
	mu sync.RWMutex

	done chan struct{}
	once sync.Once
}

// New creates a new Hub.
func New(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan string, 256),
		inbound:    make(chan string, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("dashboard client connected", "client", client.id, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("dashboard client disconnected", "client", client.id, "remaining", count)

		case line := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- line:
				default:
					// Client's buffer is full - they're too slow.
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("dropped slow dashboard client", "client", client.id)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Send broadcasts one line to all connected clients. A full broadcast
// channel drops the line rather than block the control loop.
func (h *Hub) Send(line string) {
	select {
	case h.broadcast <- line:
	default:
		h.log.Warn("broadcast channel full, dropping line")
	}
}

// Lines returns the stream of command lines received from clients.
func (h *Hub) Lines() <-chan string {
	return h.inbound
}

// Close stops the hub loop and disconnects every client.
func (h *Hub) Close() error {
	h.once.Do(func() { close(h.done) })
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Receive forwards a line inbound as if a client had sent it, dropping
// it when the firmware is not draining fast enough.
func (h *Hub) Receive(line string) {
	select {
	case h.inbound <- line:
	default:
		h.log.Warn("inbound channel full, dropping line")
	}
}
