package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"careflow-backend/application/services"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Send buffer size
	sendBufferSize = 256
)

// Client represents one canvas connection. Inbound frames are gesture
// events handed to the reconciler; outbound frames arrive via the hub.
type Client struct {
	id         string
	userID     string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	reconciler *services.CanvasReconciler
	logger     *zap.Logger
}

// NewClient creates a client for an upgraded connection
func NewClient(userID string, hub *Hub, conn *websocket.Conn, reconciler *services.CanvasReconciler, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:         id,
		userID:     userID,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		reconciler: reconciler,
		logger: logger.With(
			zap.String("user_id", userID),
			zap.String("connection_id", id)),
	}
}

// Start registers with the hub and begins the read and write pumps
func (c *Client) Start() {
	c.hub.register <- c

	go c.writePump()
	go c.readPump()

	c.sendTyped(MessageConnected, map[string]string{"connectionId": c.id})
}

// onLastDisconnect fires when the user's last connection goes away
func (c *Client) onLastDisconnect() {
	c.reconciler.Forget(c.userID)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.handleEvent(bytes.TrimSpace(message))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// drain anything queued behind this frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvent routes one inbound gesture event to the reconciler
func (c *Client) handleEvent(message []byte) {
	var event CanvasEvent
	if err := json.Unmarshal(message, &event); err != nil {
		c.logger.Debug("dropping malformed canvas event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch event.Type {
	case EventNodeDragStart:
		var e DragEvent
		if json.Unmarshal(event.Data, &e) != nil || e.NodeID == "" {
			return
		}
		c.reconciler.HandleDragStart(c.userID, e.NodeID)

	case EventNodeDragMove:
		var e DragEvent
		if json.Unmarshal(event.Data, &e) != nil || e.NodeID == "" {
			return
		}
		c.reconciler.HandleDragMove(c.userID, e.NodeID, e.X, e.Y)

	case EventNodeDragEnd:
		var e DragEvent
		if json.Unmarshal(event.Data, &e) != nil || e.NodeID == "" {
			return
		}
		c.reconciler.HandleDragEnd(c.userID, e.NodeID, e.X, e.Y)

	case EventNodePositionChange:
		var e DragEvent
		if json.Unmarshal(event.Data, &e) != nil || e.NodeID == "" {
			return
		}
		if err := c.reconciler.HandlePositionChange(ctx, c.userID, e.NodeID, e.X, e.Y); err != nil {
			c.logger.Warn("position change failed", zap.Error(err))
		}

	case EventNodesDelete:
		var e DeleteEvent
		if json.Unmarshal(event.Data, &e) != nil || len(e.NodeIDs) == 0 {
			return
		}
		if err := c.reconciler.HandleNodesDelete(ctx, c.userID, e.NodeIDs); err != nil {
			c.logger.Warn("node deletion failed", zap.Error(err))
		}

	case EventEdgesDelete:
		var e DeleteEvent
		if json.Unmarshal(event.Data, &e) != nil || len(e.ConnectionIDs) == 0 {
			return
		}
		if err := c.reconciler.HandleEdgesDelete(ctx, c.userID, e.ConnectionIDs); err != nil {
			c.logger.Warn("edge deletion failed", zap.Error(err))
		}

	case EventConnect:
		candidate, ok := c.decodeCandidate(event.Data)
		if !ok {
			return
		}
		if err := c.reconciler.HandleConnect(ctx, c.userID, candidate); err != nil {
			c.logger.Warn("connect gesture failed", zap.Error(err))
		}

	case EventConnectCheck:
		var e ConnectEvent
		if json.Unmarshal(event.Data, &e) != nil {
			return
		}
		candidate, ok := c.decodeCandidate(event.Data)
		valid := ok && c.reconciler.IsValidConnection(ctx, c.userID, candidate)
		c.sendTyped(MessageConnectCheckResult, ConnectCheckResult{
			RequestID: e.RequestID,
			Valid:     valid,
		})

	case EventPong:
		// keepalive, nothing to do

	default:
		c.logger.Debug("unknown canvas event", zap.String("type", event.Type))
	}
}

func (c *Client) decodeCandidate(data json.RawMessage) (validators.Candidate, bool) {
	var e ConnectEvent
	if json.Unmarshal(data, &e) != nil || e.Source == "" || e.Target == "" {
		return validators.Candidate{}, false
	}
	sourceID, err := valueobjects.NewNodeIDFromString(e.Source)
	if err != nil {
		return validators.Candidate{}, false
	}
	targetID, err := valueobjects.NewNodeIDFromString(e.Target)
	if err != nil {
		return validators.Candidate{}, false
	}
	return validators.Candidate{
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceHandle: e.SourceHandle,
		TargetHandle: e.TargetHandle,
	}, true
}

// sendTyped marshals and queues one typed frame for this client only
func (c *Client) sendTyped(messageType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(OutboundMessage{
		Type:      messageType,
		Data:      jsonData,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("dropping frame for slow client")
	}
}
