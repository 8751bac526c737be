package aggregates

import (
	"time"

	"careflow-backend/domain/config"
	"careflow-backend/domain/core/derivation"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/domain/events"
	pkgerrors "careflow-backend/pkg/errors"
)

// Pipeline is the aggregate root for one user's canvas: the canonical node
// set, the connections wiring components into the prompt node, the component
// payloads, and the derived prompt state. Every mutation recomputes the
// derived connected-component list before returning, so callers never
// observe a window where a deleted node is still referenced.
type Pipeline struct {
	userID string

	nodes     map[valueobjects.NodeID]*entities.Node
	nodeOrder []valueobjects.NodeID

	// connections keep insertion order; the derived component list is
	// ordered by it, not by canvas layout
	connections []*entities.Connection

	payloads   valueobjects.PayloadSet
	customText string

	validator *validators.ConnectionValidator
	cfg       *config.DomainConfig

	updatedAt time.Time
	events    []events.DomainEvent
}

// NewPipeline creates an empty pipeline seeded with its single prompt node,
// centered where the canvas places it on first load.
func NewPipeline(userID string) (*Pipeline, error) {
	return NewPipelineWithConfig(userID, config.DefaultDomainConfig())
}

// NewPipelineWithConfig creates a pipeline with explicit domain rules
func NewPipelineWithConfig(userID string, cfg *config.DomainConfig) (*Pipeline, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	p := &Pipeline{
		userID:      userID,
		nodes:       make(map[valueobjects.NodeID]*entities.Node),
		connections: []*entities.Connection{},
		validator:   validators.NewConnectionValidator(),
		cfg:         cfg,
		updatedAt:   time.Now(),
		events:      []events.DomainEvent{},
	}

	prompt, err := entities.NewNode(
		valueobjects.NewNodeIDForKind(string(valueobjects.NodeTypePrompt)),
		valueobjects.NodeTypePrompt,
		valueobjects.NewPosition(400, 250),
		"Prompt",
		"Connect components to build your generation prompt",
	)
	if err != nil {
		return nil, err
	}
	if err := p.AddNode(prompt); err != nil {
		return nil, err
	}

	return p, nil
}

// ReconstructPipeline rebuilds a pipeline from stored snapshots. Connections
// referencing nodes that failed to load are dropped and the derived list is
// recomputed, so a partially corrupt save never produces dangling references.
func ReconstructPipeline(
	userID string,
	nodeSnapshots []entities.NodeSnapshot,
	connections []*entities.Connection,
	payloads valueobjects.PayloadSet,
	customText string,
) (*Pipeline, error) {
	return ReconstructPipelineWithConfig(userID, nodeSnapshots, connections, payloads, customText, nil)
}

// ReconstructPipelineWithConfig rebuilds a pipeline under explicit domain
// rules. A nil cfg uses the defaults.
func ReconstructPipelineWithConfig(
	userID string,
	nodeSnapshots []entities.NodeSnapshot,
	connections []*entities.Connection,
	payloads valueobjects.PayloadSet,
	customText string,
	cfg *config.DomainConfig,
) (*Pipeline, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	p := &Pipeline{
		userID:      userID,
		nodes:       make(map[valueobjects.NodeID]*entities.Node, len(nodeSnapshots)),
		connections: []*entities.Connection{},
		payloads:    payloads,
		customText:  customText,
		validator:   validators.NewConnectionValidator(),
		cfg:         cfg,
		updatedAt:   time.Now(),
		events:      []events.DomainEvent{},
	}

	for _, snapshot := range nodeSnapshots {
		node, err := entities.ReconstructNode(snapshot)
		if err != nil {
			return nil, err
		}
		p.nodes[node.ID()] = node
		p.nodeOrder = append(p.nodeOrder, node.ID())
	}

	for _, conn := range connections {
		if conn == nil {
			continue
		}
		if _, ok := p.nodes[conn.SourceID]; !ok {
			continue
		}
		if _, ok := p.nodes[conn.TargetID]; !ok {
			continue
		}
		p.connections = append(p.connections, conn)
	}

	p.recomputeConfigured()
	p.recomputeDerived()
	return p, nil
}

// UserID returns the owning user's id
func (p *Pipeline) UserID() string {
	return p.userID
}

// UpdatedAt returns when the pipeline last mutated
func (p *Pipeline) UpdatedAt() time.Time {
	return p.updatedAt
}

// AddNode places a node on the canvas. Node ids must be unique; a second
// prompt node is rejected when the single-prompt rule is on.
func (p *Pipeline) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}
	if _, exists := p.nodes[node.ID()]; exists {
		return pkgerrors.NewConflictError("node already exists on canvas")
	}
	if len(p.nodes) >= p.cfg.MaxNodes {
		return pkgerrors.NewValidationError("maximum nodes reached")
	}
	if node.IsPrompt() && p.cfg.RequireSinglePrompt {
		if _, ok := p.PromptNode(); ok {
			return pkgerrors.NewConflictError("pipeline already has a prompt node")
		}
	}
	if !p.cfg.AllowDuplicateComponentTypes && node.Type().IsComponent() {
		for _, existing := range p.nodes {
			if existing.Type() == node.Type() {
				return pkgerrors.NewConflictError("a " + node.Type().String() + " node already exists")
			}
		}
	}

	// Configured is derived, never trusted from the caller
	node.SetConfigured(derivation.ComputeConfigured(p.payloads.Get(node.Type())))

	p.nodes[node.ID()] = node
	p.nodeOrder = append(p.nodeOrder, node.ID())
	p.touch()
	p.recomputeDerived()
	return nil
}

// RemoveNode deletes a node as one atomic transition: the node goes, every
// connection touching it goes, and the prompt node's derived list is
// recomputed against the post-deletion sets, all before this returns.
func (p *Pipeline) RemoveNode(nodeID valueobjects.NodeID) error {
	node, exists := p.nodes[nodeID]
	if !exists {
		return pkgerrors.NewNotFoundError("node")
	}

	cascaded := []string{}
	kept := p.connections[:0]
	for _, conn := range p.connections {
		if conn.References(nodeID) {
			cascaded = append(cascaded, conn.ID)
			p.addEvent(events.NewConnectionRemoved(conn.ID, conn.SourceID, conn.TargetID, time.Now()))
			continue
		}
		kept = append(kept, conn)
	}
	p.connections = kept

	delete(p.nodes, nodeID)
	for i, id := range p.nodeOrder {
		if id.Equals(nodeID) {
			p.nodeOrder = append(p.nodeOrder[:i], p.nodeOrder[i+1:]...)
			break
		}
	}

	p.touch()
	p.recomputeDerived()
	p.addEvent(events.NewNodeRemoved(nodeID, node.Type(), cascaded, p.updatedAt))
	return nil
}

// MoveNode commits a node position, typically at drag-end
func (p *Pipeline) MoveNode(nodeID valueobjects.NodeID, position valueobjects.Position) error {
	node, exists := p.nodes[nodeID]
	if !exists {
		return pkgerrors.NewNotFoundError("node")
	}
	node.MoveTo(position)
	p.touch()
	return nil
}

// AddConnection accepts a validated connect gesture. Invalid candidates
// return a validators sentinel the caller treats as a silent no-op; the
// checks run here as well as in the widget predicate because the widget is
// an untrusted surface.
func (p *Pipeline) AddConnection(candidate validators.Candidate) (*entities.Connection, error) {
	if err := p.validator.Validate(candidate, p.nodes, p.connections); err != nil {
		return nil, err
	}
	if len(p.connections) >= p.cfg.MaxConnections {
		return nil, pkgerrors.NewValidationError("maximum connections reached")
	}

	conn := entities.NewConnection(candidate.SourceID, candidate.TargetID, candidate.SourceHandle, candidate.TargetHandle)
	p.connections = append(p.connections, conn)
	p.touch()
	p.recomputeDerived()
	p.addEvent(events.NewConnectionAdded(conn.ID, conn.SourceID, conn.TargetID, p.updatedAt))
	return conn, nil
}

// RemoveConnection deletes an edge by id; no cascade
func (p *Pipeline) RemoveConnection(connectionID string) error {
	for i, conn := range p.connections {
		if conn.ID == connectionID {
			p.connections = append(p.connections[:i], p.connections[i+1:]...)
			p.touch()
			p.recomputeDerived()
			p.addEvent(events.NewConnectionRemoved(conn.ID, conn.SourceID, conn.TargetID, p.updatedAt))
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("connection")
}

// IsValidConnection is the advisory predicate handed to the canvas widget;
// it runs the same rules AddConnection enforces.
func (p *Pipeline) IsValidConnection(candidate validators.Candidate) bool {
	return p.validator.Validate(candidate, p.nodes, p.connections) == nil
}

// UpdatePayload stores a component payload and recomputes the configured
// flag on every node carrying that kind.
func (p *Pipeline) UpdatePayload(payload valueobjects.Payload) error {
	if payload == nil {
		return pkgerrors.NewValidationError("payload cannot be nil")
	}
	kind := payload.Kind()
	if !kind.IsComponent() {
		return pkgerrors.NewValidationError("payloads only exist for component node types")
	}

	p.payloads.Set(payload)
	p.recomputeConfigured()
	p.touch()
	p.addEvent(events.NewPayloadUpdated(kind, derivation.ComputeConfigured(p.payloads.Get(kind)), p.updatedAt))
	return nil
}

// ClearPayload removes a component payload and downgrades the carrying nodes
func (p *Pipeline) ClearPayload(kind valueobjects.NodeType) error {
	if !kind.IsComponent() {
		return pkgerrors.NewValidationError("payloads only exist for component node types")
	}
	p.payloads.Clear(kind)
	p.recomputeConfigured()
	p.touch()
	p.addEvent(events.NewPayloadUpdated(kind, false, p.updatedAt))
	return nil
}

// SetCustomText stores the free-text custom instructions block
func (p *Pipeline) SetCustomText(text string) {
	if p.customText == text {
		return
	}
	p.customText = text
	p.touch()
}

// CustomText returns the free-text custom instructions block
func (p *Pipeline) CustomText() string {
	return p.customText
}

// Payloads returns a copy of the payload set
func (p *Pipeline) Payloads() valueobjects.PayloadSet {
	return p.payloads
}

// PromptNode returns the prompt node, if present
func (p *Pipeline) PromptNode() (*entities.Node, bool) {
	for _, id := range p.nodeOrder {
		if node := p.nodes[id]; node.IsPrompt() {
			return node, true
		}
	}
	return nil, false
}

// Node retrieves a node by id
func (p *Pipeline) Node(nodeID valueobjects.NodeID) (*entities.Node, bool) {
	node, ok := p.nodes[nodeID]
	return node, ok
}

// Nodes returns the nodes in insertion order
func (p *Pipeline) Nodes() []*entities.Node {
	nodes := make([]*entities.Node, 0, len(p.nodeOrder))
	for _, id := range p.nodeOrder {
		nodes = append(nodes, p.nodes[id])
	}
	return nodes
}

// NodeSnapshots returns the persisted shape of all nodes in insertion order
func (p *Pipeline) NodeSnapshots() []entities.NodeSnapshot {
	snapshots := make([]entities.NodeSnapshot, 0, len(p.nodeOrder))
	for _, id := range p.nodeOrder {
		snapshots = append(snapshots, p.nodes[id].Snapshot())
	}
	return snapshots
}

// Connections returns the connections in insertion order
func (p *Pipeline) Connections() []*entities.Connection {
	conns := make([]*entities.Connection, len(p.connections))
	copy(conns, p.connections)
	return conns
}

// ConnectedComponents returns the derived upstream list from the prompt node
func (p *Pipeline) ConnectedComponents() []entities.ComponentRef {
	prompt, ok := p.PromptNode()
	if !ok {
		return nil
	}
	return prompt.ConnectedComponents()
}

// Prompt assembles the generation prompt text from current state
func (p *Pipeline) Prompt() string {
	return derivation.BuildPrompt(p.ConnectedComponents(), &p.payloads, p.customText)
}

// Validate checks the aggregate's structural invariants: no connection may
// reference a missing node, every connection must terminate at the prompt
// node, and the derived list must match a fresh recompute.
func (p *Pipeline) Validate() error {
	for _, conn := range p.connections {
		source, sourceExists := p.nodes[conn.SourceID]
		target, targetExists := p.nodes[conn.TargetID]
		if !sourceExists || !targetExists {
			return pkgerrors.NewValidationError("connection references a missing node")
		}
		if source.IsPrompt() {
			return pkgerrors.NewValidationError("connection originates at the prompt node")
		}
		if !target.IsPrompt() {
			return pkgerrors.NewValidationError("connection does not terminate at the prompt node")
		}
	}

	prompt, ok := p.PromptNode()
	if !ok {
		return nil
	}
	want := derivation.ComputeConnectedComponents(p.nodes, p.connections, prompt.ID())
	got := prompt.ConnectedComponents()
	if len(want) != len(got) {
		return pkgerrors.NewValidationError("derived component list is stale")
	}
	for i := range want {
		if !want[i].ID.Equals(got[i].ID) || want[i].Type != got[i].Type {
			return pkgerrors.NewValidationError("derived component list is stale")
		}
	}
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events, including
// those raised by individual nodes
func (p *Pipeline) GetUncommittedEvents() []events.DomainEvent {
	all := make([]events.DomainEvent, len(p.events))
	copy(all, p.events)
	for _, id := range p.nodeOrder {
		all = append(all, p.nodes[id].GetUncommittedEvents()...)
	}
	return all
}

// MarkEventsAsCommitted clears all uncommitted events
func (p *Pipeline) MarkEventsAsCommitted() {
	p.events = []events.DomainEvent{}
	for _, node := range p.nodes {
		node.MarkEventsAsCommitted()
	}
}

// recomputeDerived rebuilds the prompt node's connected-component list from
// the current node and connection sets. Full recompute, never a patch.
func (p *Pipeline) recomputeDerived() {
	prompt, ok := p.PromptNode()
	if !ok {
		return
	}
	refs := derivation.ComputeConnectedComponents(p.nodes, p.connections, prompt.ID())
	_ = prompt.SetConnectedComponents(refs)
}

// recomputeConfigured re-derives the configured flag on every node
func (p *Pipeline) recomputeConfigured() {
	for _, node := range p.nodes {
		if !node.Type().IsComponent() {
			continue
		}
		node.SetConfigured(derivation.ComputeConfigured(p.payloads.Get(node.Type())))
	}
}

func (p *Pipeline) touch() {
	p.updatedAt = time.Now()
}

func (p *Pipeline) addEvent(event events.DomainEvent) {
	p.events = append(p.events, event)
}
