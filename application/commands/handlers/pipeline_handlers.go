// Package handlers contains the command-side handlers. Each handler owns
// one command type and mutates pipeline state through the session manager.
package handlers

import (
	"context"
	"encoding/json"

	"careflow-backend/application/commands"
	"careflow-backend/application/commands/bus"
	"careflow-backend/application/services"
	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
	pkgerrors "careflow-backend/pkg/errors"
)

// AddNodeHandler handles AddNodeCommand
type AddNodeHandler struct {
	sessions *services.SessionManager
}

// NewAddNodeHandler creates the handler
func NewAddNodeHandler(sessions *services.SessionManager) *AddNodeHandler {
	return &AddNodeHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *AddNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.AddNodeCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for AddNodeHandler", nil)
	}

	nodeType := valueobjects.NodeType(c.NodeType)
	if !nodeType.IsValid() {
		return pkgerrors.NewValidationError("unknown node type: " + c.NodeType)
	}

	return h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		node, err := entities.NewNode(
			valueobjects.NewNodeIDForKind(c.NodeType),
			nodeType,
			valueobjects.NewPosition(c.X, c.Y),
			c.Title,
			c.Description,
		)
		if err != nil {
			return err
		}
		return p.AddNode(node)
	})
}

// MoveNodeHandler handles MoveNodeCommand
type MoveNodeHandler struct {
	sessions *services.SessionManager
}

// NewMoveNodeHandler creates the handler
func NewMoveNodeHandler(sessions *services.SessionManager) *MoveNodeHandler {
	return &MoveNodeHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *MoveNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.MoveNodeCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for MoveNodeHandler", nil)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(c.NodeID)
	if err != nil {
		return pkgerrors.NewValidationError("invalid node id")
	}

	return h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		return p.MoveNode(nodeID, valueobjects.NewPosition(c.X, c.Y))
	})
}

// DeleteNodeHandler handles DeleteNodeCommand
type DeleteNodeHandler struct {
	sessions *services.SessionManager
}

// NewDeleteNodeHandler creates the handler
func NewDeleteNodeHandler(sessions *services.SessionManager) *DeleteNodeHandler {
	return &DeleteNodeHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *DeleteNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DeleteNodeCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for DeleteNodeHandler", nil)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(c.NodeID)
	if err != nil {
		return pkgerrors.NewValidationError("invalid node id")
	}

	return h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		return p.RemoveNode(nodeID)
	})
}

// AddConnectionHandler handles AddConnectionCommand
type AddConnectionHandler struct {
	sessions *services.SessionManager
}

// NewAddConnectionHandler creates the handler
func NewAddConnectionHandler(sessions *services.SessionManager) *AddConnectionHandler {
	return &AddConnectionHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler. Gesture rejections surface as
// validation errors here; the REST surface is explicit where the canvas
// event path is silent.
func (h *AddConnectionHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.AddConnectionCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for AddConnectionHandler", nil)
	}

	sourceID, err := valueobjects.NewNodeIDFromString(c.SourceID)
	if err != nil {
		return pkgerrors.NewValidationError("invalid source node id")
	}
	targetID, err := valueobjects.NewNodeIDFromString(c.TargetID)
	if err != nil {
		return pkgerrors.NewValidationError("invalid target node id")
	}

	err = h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		_, err := p.AddConnection(validators.Candidate{
			SourceID:     sourceID,
			TargetID:     targetID,
			SourceHandle: c.SourceHandle,
			TargetHandle: c.TargetHandle,
		})
		return err
	})
	if validators.IsRejection(err) {
		return pkgerrors.NewValidationError(err.Error())
	}
	return err
}

// DeleteConnectionHandler handles DeleteConnectionCommand
type DeleteConnectionHandler struct {
	sessions *services.SessionManager
}

// NewDeleteConnectionHandler creates the handler
func NewDeleteConnectionHandler(sessions *services.SessionManager) *DeleteConnectionHandler {
	return &DeleteConnectionHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *DeleteConnectionHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DeleteConnectionCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for DeleteConnectionHandler", nil)
	}

	return h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		return p.RemoveConnection(c.ConnectionID)
	})
}

// UpdatePayloadHandler handles UpdatePayloadCommand
type UpdatePayloadHandler struct {
	sessions *services.SessionManager
}

// NewUpdatePayloadHandler creates the handler
func NewUpdatePayloadHandler(sessions *services.SessionManager) *UpdatePayloadHandler {
	return &UpdatePayloadHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *UpdatePayloadHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.UpdatePayloadCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for UpdatePayloadHandler", nil)
	}

	payload, err := decodePayload(valueobjects.NodeType(c.Kind), c.Payload)
	if err != nil {
		return err
	}

	return h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		return p.UpdatePayload(payload)
	})
}

// ClearPayloadHandler handles ClearPayloadCommand
type ClearPayloadHandler struct {
	sessions *services.SessionManager
}

// NewClearPayloadHandler creates the handler
func NewClearPayloadHandler(sessions *services.SessionManager) *ClearPayloadHandler {
	return &ClearPayloadHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *ClearPayloadHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.ClearPayloadCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for ClearPayloadHandler", nil)
	}

	return h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		return p.ClearPayload(valueobjects.NodeType(c.Kind))
	})
}

// SetCustomPromptHandler handles SetCustomPromptCommand
type SetCustomPromptHandler struct {
	sessions *services.SessionManager
}

// NewSetCustomPromptHandler creates the handler
func NewSetCustomPromptHandler(sessions *services.SessionManager) *SetCustomPromptHandler {
	return &SetCustomPromptHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *SetCustomPromptHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.SetCustomPromptCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for SetCustomPromptHandler", nil)
	}

	return h.sessions.Mutate(ctx, c.UserID, func(p *aggregates.Pipeline) error {
		p.SetCustomText(c.Text)
		return nil
	})
}

// ResetPipelineHandler handles ResetPipelineCommand
type ResetPipelineHandler struct {
	sessions *services.SessionManager
}

// NewResetPipelineHandler creates the handler
func NewResetPipelineHandler(sessions *services.SessionManager) *ResetPipelineHandler {
	return &ResetPipelineHandler{sessions: sessions}
}

// Handle implements bus.CommandHandler
func (h *ResetPipelineHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.ResetPipelineCommand)
	if !ok {
		return pkgerrors.NewInternalError("invalid command type for ResetPipelineHandler", nil)
	}

	return h.sessions.Reset(ctx, c.UserID)
}

// decodePayload unmarshals a raw payload document against the concrete type
// its kind selects
func decodePayload(kind valueobjects.NodeType, raw json.RawMessage) (valueobjects.Payload, error) {
	switch kind {
	case valueobjects.NodeTypeEvidenceInput:
		var p valueobjects.EvidencePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.NewValidationError("malformed evidence payload")
		}
		return p, nil
	case valueobjects.NodeTypeStylePersonalization:
		var p valueobjects.StylePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.NewValidationError("malformed style payload")
		}
		return p, nil
	case valueobjects.NodeTypeVisualStyling:
		var p valueobjects.VisualStylingPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.NewValidationError("malformed visual styling payload")
		}
		return p, nil
	case valueobjects.NodeTypePersonalData:
		var p valueobjects.PersonalDataPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.NewValidationError("malformed personal data payload")
		}
		return p, nil
	case valueobjects.NodeTypeOutputSelector:
		var p valueobjects.OutputSelectorPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.NewValidationError("malformed output selector payload")
		}
		if !p.Format.IsValid() {
			return nil, pkgerrors.NewValidationError("unknown output format: " + string(p.Format))
		}
		return p, nil
	default:
		return nil, pkgerrors.NewValidationError("no payload exists for node type: " + kind.String())
	}
}
