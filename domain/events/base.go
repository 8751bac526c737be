package events

import (
	"time"

	"careflow-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// Node events

// NodeAdded is raised when a node is placed on the canvas
type NodeAdded struct {
	BaseEvent
	NodeID   valueobjects.NodeID   `json:"node_id"`
	NodeType valueobjects.NodeType `json:"node_type"`
}

// NewNodeAdded creates a NodeAdded event
func NewNodeAdded(nodeID valueobjects.NodeID, nodeType valueobjects.NodeType, timestamp time.Time) NodeAdded {
	return NodeAdded{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "pipeline.node_added",
			Timestamp:   timestamp,
		},
		NodeID:   nodeID,
		NodeType: nodeType,
	}
}

// NodeMoved is raised when a node's position commit lands in canonical state
type NodeMoved struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	OldX   float64             `json:"old_x"`
	OldY   float64             `json:"old_y"`
	NewX   float64             `json:"new_x"`
	NewY   float64             `json:"new_y"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(nodeID valueobjects.NodeID, oldX, oldY, newX, newY float64, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "pipeline.node_moved",
			Timestamp:   timestamp,
		},
		NodeID: nodeID,
		OldX:   oldX,
		OldY:   oldY,
		NewX:   newX,
		NewY:   newY,
	}
}

// NodeRemoved is raised when a node is deleted, after its connection cascade
type NodeRemoved struct {
	BaseEvent
	NodeID             valueobjects.NodeID   `json:"node_id"`
	NodeType           valueobjects.NodeType `json:"node_type"`
	CascadedConnection []string              `json:"cascaded_connections,omitempty"`
}

// NewNodeRemoved creates a NodeRemoved event
func NewNodeRemoved(nodeID valueobjects.NodeID, nodeType valueobjects.NodeType, cascaded []string, timestamp time.Time) NodeRemoved {
	return NodeRemoved{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "pipeline.node_removed",
			Timestamp:   timestamp,
		},
		NodeID:             nodeID,
		NodeType:           nodeType,
		CascadedConnection: cascaded,
	}
}

// Connection events

// ConnectionAdded is raised when a validated connect gesture lands
type ConnectionAdded struct {
	BaseEvent
	ConnectionID string              `json:"connection_id"`
	SourceID     valueobjects.NodeID `json:"source_id"`
	TargetID     valueobjects.NodeID `json:"target_id"`
}

// NewConnectionAdded creates a ConnectionAdded event
func NewConnectionAdded(connectionID string, sourceID, targetID valueobjects.NodeID, timestamp time.Time) ConnectionAdded {
	return ConnectionAdded{
		BaseEvent: BaseEvent{
			AggregateID: connectionID,
			EventType:   "pipeline.connection_added",
			Timestamp:   timestamp,
		},
		ConnectionID: connectionID,
		SourceID:     sourceID,
		TargetID:     targetID,
	}
}

// ConnectionRemoved is raised on explicit edge deletion or node cascade
type ConnectionRemoved struct {
	BaseEvent
	ConnectionID string              `json:"connection_id"`
	SourceID     valueobjects.NodeID `json:"source_id"`
	TargetID     valueobjects.NodeID `json:"target_id"`
}

// NewConnectionRemoved creates a ConnectionRemoved event
func NewConnectionRemoved(connectionID string, sourceID, targetID valueobjects.NodeID, timestamp time.Time) ConnectionRemoved {
	return ConnectionRemoved{
		BaseEvent: BaseEvent{
			AggregateID: connectionID,
			EventType:   "pipeline.connection_removed",
			Timestamp:   timestamp,
		},
		ConnectionID: connectionID,
		SourceID:     sourceID,
		TargetID:     targetID,
	}
}

// PayloadUpdated is raised when a component's configuration payload changes
type PayloadUpdated struct {
	BaseEvent
	Kind       valueobjects.NodeType `json:"kind"`
	Configured bool                  `json:"configured"`
}

// NewPayloadUpdated creates a PayloadUpdated event
func NewPayloadUpdated(kind valueobjects.NodeType, configured bool, timestamp time.Time) PayloadUpdated {
	return PayloadUpdated{
		BaseEvent: BaseEvent{
			AggregateID: string(kind),
			EventType:   "pipeline.payload_updated",
			Timestamp:   timestamp,
		},
		Kind:       kind,
		Configured: configured,
	}
}

// Job events

// JobStatusChanged is raised when a gallery job record advances
type JobStatusChanged struct {
	BaseEvent
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// NewJobStatusChanged creates a JobStatusChanged event
func NewJobStatusChanged(jobID, status string, progress int, timestamp time.Time) JobStatusChanged {
	return JobStatusChanged{
		BaseEvent: BaseEvent{
			AggregateID: jobID,
			EventType:   "gallery.job_status_changed",
			Timestamp:   timestamp,
		},
		JobID:    jobID,
		Status:   status,
		Progress: progress,
	}
}
