package websocket

import (
	"go.uber.org/zap"

	"careflow-backend/application/queries"
	"careflow-backend/domain/gallery"
)

// HubBroadcaster adapts the hub to the application's Broadcaster port
type HubBroadcaster struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHubBroadcaster creates the adapter
func NewHubBroadcaster(hub *Hub, logger *zap.Logger) *HubBroadcaster {
	return &HubBroadcaster{hub: hub, logger: logger}
}

// BroadcastPipeline implements ports.Broadcaster
func (b *HubBroadcaster) BroadcastPipeline(userID string, view *queries.PipelineView) {
	if err := b.hub.SendToUser(userID, MessagePipelineState, view); err != nil {
		b.logger.Warn("failed to push pipeline state",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// BroadcastJob implements ports.Broadcaster
func (b *HubBroadcaster) BroadcastJob(userID string, job *gallery.Job) {
	if err := b.hub.SendToUser(userID, MessageJobUpdate, job); err != nil {
		b.logger.Warn("failed to push job update",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
