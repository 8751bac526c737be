package websocket

import "encoding/json"

// Inbound canvas event types. The widget reports gestures; the reconciler
// decides which of them change state.
const (
	EventNodeDragStart      = "node_drag_start"
	EventNodeDragMove       = "node_drag_move"
	EventNodeDragEnd        = "node_drag_end"
	EventNodePositionChange = "node_position_change"
	EventNodesDelete        = "nodes_delete"
	EventEdgesDelete        = "edges_delete"
	EventConnect            = "connect"
	EventConnectCheck       = "connect_check"
	EventPong               = "pong"
)

// Outbound message types
const (
	MessagePipelineState      = "pipeline_state"
	MessageJobUpdate          = "job_update"
	MessageConnectCheckResult = "connect_check_result"
	MessageConnected          = "connection_established"
)

// CanvasEvent is the envelope for every inbound widget message
type CanvasEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DragEvent carries drag lifecycle data
type DragEvent struct {
	NodeID string  `json:"nodeId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// DeleteEvent carries a batch deletion
type DeleteEvent struct {
	NodeIDs       []string `json:"nodeIds,omitempty"`
	ConnectionIDs []string `json:"connectionIds,omitempty"`
}

// ConnectEvent carries a connect gesture or pre-check
type ConnectEvent struct {
	RequestID    string `json:"requestId,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// ConnectCheckResult answers a connect pre-check
type ConnectCheckResult struct {
	RequestID string `json:"requestId,omitempty"`
	Valid     bool   `json:"valid"`
}
