package web

import (
	"sync"

	"github.com/testweaver-ai/testweaver/internal/logger"
)

// Hub tracks the connected extension clients and pushes host-wide notices
// (shutdown, config changes) to all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	closed  bool
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Register adds a client. Registering against a closed hub closes the
// client's send channel immediately.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(client.send)
		return
	}
	h.clients[client] = true
	logger.Debug("Client registered: %s", client.ID)
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Debug("Client unregistered: %s", client.ID)
	}
}

// Broadcast sends a message to every connected client. A client whose send
// buffer is full misses the notice rather than blocking the others.
func (h *Hub) Broadcast(message *WebMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			logger.Warn("Client %s send channel full, dropping broadcast", client.ID)
		}
	}
}

// Close closes every connected client's send channel and rejects future
// registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
