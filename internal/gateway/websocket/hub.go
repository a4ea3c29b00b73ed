// Package websocket provides the WebSocket gateway for board sessions.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// Hub manages all WebSocket client connections
type Hub struct {
	// All registered clients
	clients map[*Client]bool

	// Clients grouped by the board session they authenticated with
	sessionClients map[string]map[*Client]bool

	// Set once Run returns; later registrations are refused
	stopped bool

	// Message dispatcher
	dispatcher *ws.Dispatcher

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(dispatcher *ws.Dispatcher, log *logger.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		sessionClients: make(map[string]map[*Client]bool),
		dispatcher:     dispatcher,
		logger:         log.WithFields(zap.String("component", "ws_hub")),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	<-ctx.Done()
	h.closeAllClients()
	h.logger.Info("WebSocket hub stopped")
}

// closeAllClients closes all client connections
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.sessionClients = make(map[string]map[*Client]bool)
}

// Register adds a client to the hub. It reports false once the hub stopped.
// The client can receive messages as soon as Register returns.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	h.clients[client] = true
	sid := client.session.ID
	if _, ok := h.sessionClients[sid]; !ok {
		h.sessionClients[sid] = make(map[*Client]bool)
	}
	h.sessionClients[sid][client] = true
	h.logger.Debug("Client registered",
		zap.String("client_id", client.ID),
		zap.String("session_id", sid))
	return true
}

// Unregister removes a client from the hub. Unknown clients are ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClientLocked(client)
}

func (h *Hub) removeClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	sid := client.session.ID
	if clients, ok := h.sessionClients[sid]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessionClients, sid)
		}
	}
	h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))
}

// BroadcastToSession sends a notification to the sockets of one session only.
func (h *Hub) BroadcastToSession(sessionID string, msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.sessionClients[sessionID] {
		select {
		case client.send <- data:
		default:
			// Client buffer full, will be cleaned up by write pump
		}
	}
}

// CloseSession disconnects every socket of a session, used at logout.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.sessionClients[sessionID] {
		h.removeClientLocked(client)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of sockets open for a session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessionClients[sessionID])
}

// GetDispatcher returns the message dispatcher
func (h *Hub) GetDispatcher() *ws.Dispatcher {
	return h.dispatcher
}
