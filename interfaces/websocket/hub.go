// Package websocket carries the canvas session protocol: inbound gesture
// events from the canvas widget and outbound state pushes back to it.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"careflow-backend/pkg/metrics"
)

// Hub maintains active WebSocket connections and pushes messages to users
type Hub struct {
	// one user can have multiple connections (several open tabs)
	connections map[string]map[*Client]bool
	mu          sync.RWMutex

	// maxPerUser caps connections per user; zero means no cap. Tunable
	// live through the dynamic config watcher.
	maxPerUser int

	register   chan *Client
	unregister chan *Client
	broadcast  chan *OutboundMessage

	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// OutboundMessage is a server-to-client push targeted at one user
type OutboundMessage struct {
	UserID    string          `json:"-"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// NewHub creates a hub
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		connections: make(map[string]map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		broadcast:   make(chan *OutboundMessage, 1000),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		metrics:     m,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToUser(message)
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// SendToUser pushes a typed message to all of a user's connections
func (h *Hub) SendToUser(userID string, messageType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	message := &OutboundMessage{
		UserID:    userID,
		Type:      messageType,
		Data:      jsonData,
		Timestamp: time.Now().Unix(),
	}

	select {
	case h.broadcast <- message:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("broadcast channel full, message dropped")
	}
}

// ConnectionCount returns the number of active connections for a user
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// SetMaxConnectionsPerUser changes the per-user connection cap. Existing
// connections over a lowered cap are left alone; only new upgrades are
// refused.
func (h *Hub) SetMaxConnectionsPerUser(max int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxPerUser = max
}

// CanAccept reports whether a new connection for the user fits under the cap
func (h *Hub) CanAccept(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxPerUser <= 0 || len(h.connections[userID]) < h.maxPerUser
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.userID] == nil {
		h.connections[client.userID] = make(map[*Client]bool)
	}
	h.connections[client.userID][client] = true
	h.metrics.ActiveWebSocketConnections.Inc()

	h.logger.Info("canvas client connected",
		zap.String("user_id", client.userID),
		zap.String("connection_id", client.id),
		zap.Int("user_connections", len(h.connections[client.userID])))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.connections[client.userID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)
	h.metrics.ActiveWebSocketConnections.Dec()

	if len(clients) == 0 {
		delete(h.connections, client.userID)
		client.onLastDisconnect()
	}

	h.logger.Info("canvas client disconnected",
		zap.String("user_id", client.userID),
		zap.String("connection_id", client.id),
		zap.Int("remaining_connections", len(clients)))
}

func (h *Hub) broadcastToUser(message *OutboundMessage) {
	h.mu.RLock()
	clients := h.connections[message.UserID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal outbound message",
			zap.String("type", message.Type),
			zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// slow consumer; close it rather than block the hub
			h.logger.Warn("closing slow canvas client",
				zap.String("user_id", client.userID),
				zap.String("connection_id", client.id))
			go func(c *Client) {
				h.unregister <- c
				c.conn.Close()
			}(client)
		}
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.connections {
		for client := range clients {
			close(client.send)
			client.conn.Close()
			h.metrics.ActiveWebSocketConnections.Dec()
		}
		delete(h.connections, userID)
	}
}
