package entities

import (
	"fmt"
	"time"

	"careflow-backend/domain/core/valueobjects"
)

// Connection is a directed edge from a component node to the prompt node.
// Its id is derived deterministically from the endpoints and handles, so the
// same gesture always produces the same id and duplicates are detectable by
// id alone.
type Connection struct {
	ID           string                `json:"id"`
	SourceID     valueobjects.NodeID   `json:"source"`
	TargetID     valueobjects.NodeID   `json:"target"`
	SourceHandle string                `json:"sourceHandle,omitempty"`
	TargetHandle string                `json:"targetHandle,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// ConnectionID derives the deterministic edge id for a gesture
func ConnectionID(sourceID, targetID valueobjects.NodeID, sourceHandle, targetHandle string) string {
	return fmt.Sprintf("conn-%s%s-%s%s", sourceID.String(), sourceHandle, targetID.String(), targetHandle)
}

// NewConnection creates a connection for a validated connect gesture
func NewConnection(sourceID, targetID valueobjects.NodeID, sourceHandle, targetHandle string) *Connection {
	return &Connection{
		ID:           ConnectionID(sourceID, targetID, sourceHandle, targetHandle),
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
		CreatedAt:    time.Now(),
	}
}

// References reports whether the connection touches the given node
func (c *Connection) References(nodeID valueobjects.NodeID) bool {
	return c.SourceID.Equals(nodeID) || c.TargetID.Equals(nodeID)
}
