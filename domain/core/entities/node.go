package entities

import (
	"time"

	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/domain/events"
	pkgerrors "careflow-backend/pkg/errors"
)

// ComponentRef is a lightweight reference to a component node feeding the
// prompt node. The derived connected-component list is a slice of these,
// ordered by connection insertion.
type ComponentRef struct {
	ID   valueobjects.NodeID   `json:"id"`
	Type valueobjects.NodeType `json:"type"`
}

// Node is a unit on the pipeline canvas: one of the five configuration
// components, or the singular prompt node every connection terminates at.
type Node struct {
	// Private fields ensure encapsulation
	id          valueobjects.NodeID
	nodeType    valueobjects.NodeType
	position    valueobjects.Position
	title       string
	description string

	// configured is a pure function of the node's payload. It is recomputed
	// whenever the payload changes, never hand-set by callers.
	configured bool

	// connected holds the derived upstream component list. Only meaningful
	// on the prompt node; always nil elsewhere.
	connected []ComponentRef

	// renderKey is the node's visual identity on the canvas. Bumping it
	// forces the widget to rebuild the rendered node from scratch, which is
	// how stale captured data is flushed after a deletion cascade.
	renderKey int

	createdAt time.Time
	updatedAt time.Time

	// Domain events that occurred during this entity's lifetime
	events []events.DomainEvent
}

// NewNode creates a canvas node with validation
func NewNode(id valueobjects.NodeID, nodeType valueobjects.NodeType, position valueobjects.Position, title, description string) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("node id cannot be empty")
	}
	if !nodeType.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown node type: " + string(nodeType))
	}

	now := time.Now()
	node := &Node{
		id:        id,
		nodeType:  nodeType,
		position:  position,
		title:     title,
		description: description,
		createdAt: now,
		updatedAt: now,
		events:    []events.DomainEvent{},
	}

	node.addEvent(events.NewNodeAdded(id, nodeType, now))
	return node, nil
}

// NodeSnapshot is the persisted shape of a node. Derived fields are stored
// too so a reload renders without waiting for the first recompute.
type NodeSnapshot struct {
	ID          valueobjects.NodeID   `json:"id"`
	Type        valueobjects.NodeType `json:"type"`
	X           float64               `json:"x"`
	Y           float64               `json:"y"`
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	Configured  bool                  `json:"configured"`
	Connected   []ComponentRef        `json:"connectedComponentsWithIds,omitempty"`
	RenderKey   int                   `json:"renderKey,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// Snapshot returns the persisted shape of the node
func (n *Node) Snapshot() NodeSnapshot {
	return NodeSnapshot{
		ID:          n.id,
		Type:        n.nodeType,
		X:           n.position.X(),
		Y:           n.position.Y(),
		Title:       n.title,
		Description: n.description,
		Configured:  n.configured,
		Connected:   n.ConnectedComponents(),
		RenderKey:   n.renderKey,
		CreatedAt:   n.createdAt,
		UpdatedAt:   n.updatedAt,
	}
}

// ReconstructNode recreates a node from a stored snapshot, bypassing the
// creation event. Timestamps and derived fields are preserved as stored.
func ReconstructNode(s NodeSnapshot) (*Node, error) {
	if s.ID.IsZero() {
		return nil, pkgerrors.NewValidationError("node id cannot be empty")
	}
	if !s.Type.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown node type: " + string(s.Type))
	}

	return &Node{
		id:          s.ID,
		nodeType:    s.Type,
		position:    valueobjects.NewPosition(s.X, s.Y),
		title:       s.Title,
		description: s.Description,
		configured:  s.Configured,
		connected:   append([]ComponentRef(nil), s.Connected...),
		renderKey:   s.RenderKey,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
		events:      []events.DomainEvent{},
	}, nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Type returns the node's type
func (n *Node) Type() valueobjects.NodeType {
	return n.nodeType
}

// IsPrompt reports whether this is the prompt node
func (n *Node) IsPrompt() bool {
	return n.nodeType == valueobjects.NodeTypePrompt
}

// Position returns the node's canvas position
func (n *Node) Position() valueobjects.Position {
	return n.position
}

// Title returns the display title
func (n *Node) Title() string {
	return n.title
}

// Description returns the display description
func (n *Node) Description() string {
	return n.description
}

// Configured reports whether the node's payload passed its non-emptiness rule
func (n *Node) Configured() bool {
	return n.configured
}

// RenderKey returns the node's current visual identity key
func (n *Node) RenderKey() int {
	return n.renderKey
}

// MoveTo moves the node to a new canvas position
func (n *Node) MoveTo(position valueobjects.Position) {
	if position.Equals(n.position) {
		return // No movement
	}

	old := n.position
	n.position = position
	n.updatedAt = time.Now()

	n.addEvent(events.NewNodeMoved(n.id, old.X(), old.Y(), position.X(), position.Y(), n.updatedAt))
}

// SetConfigured records the recomputed configured flag. Callers must derive
// the value from the payload; this setter exists only so the derivation
// engine has somewhere to write its result.
func (n *Node) SetConfigured(configured bool) {
	if n.configured == configured {
		return
	}
	n.configured = configured
	n.updatedAt = time.Now()
}

// SetConnectedComponents replaces the derived upstream list on the prompt
// node and bumps the render key so the widget rebuilds the rendered node.
// Calling it on a non-prompt node is a programming error.
func (n *Node) SetConnectedComponents(refs []ComponentRef) error {
	if !n.IsPrompt() {
		return pkgerrors.NewValidationError("connected components only exist on the prompt node")
	}

	n.connected = append([]ComponentRef(nil), refs...)
	n.renderKey++
	n.updatedAt = time.Now()
	return nil
}

// ConnectedComponents returns a copy of the derived upstream list
func (n *Node) ConnectedComponents() []ComponentRef {
	if n.connected == nil {
		return nil
	}
	refs := make([]ComponentRef, len(n.connected))
	copy(refs, n.connected)
	return refs
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last updated
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}
