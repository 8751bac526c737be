// Package handlers implements the REST endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"careflow-backend/application/commands"
	"careflow-backend/application/commands/bus"
	"careflow-backend/application/queries"
	querybus "careflow-backend/application/queries/bus"
	"careflow-backend/pkg/common"
	pkgerrors "careflow-backend/pkg/errors"
)

// PipelineHandler serves the pipeline endpoints: the canvas read model,
// node and connection mutations, and the assembled prompt.
type PipelineHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewPipelineHandler creates the handler
func NewPipelineHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *PipelineHandler {
	return &PipelineHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// GetPipeline handles GET /pipeline
func (h *PipelineHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	view, err := h.queryBus.Ask(r.Context(), queries.GetPipelineQuery{UserID: userID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// ResetPipeline handles POST /pipeline/reset
func (h *PipelineHandler) ResetPipeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.ResetPipelineCommand{UserID: userID}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPipeline(w, r, userID)
}

type createNodeRequest struct {
	Type        string  `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
}

// CreateNode handles POST /nodes
func (h *PipelineHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	cmd := commands.AddNodeCommand{
		UserID:      userID,
		NodeType:    req.Type,
		X:           req.X,
		Y:           req.Y,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPipeline(w, r, userID)
}

type moveNodeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MoveNode handles PUT /nodes/{nodeID}/position
func (h *PipelineHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	var req moveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	cmd := commands.MoveNodeCommand{
		UserID: userID,
		NodeID: chi.URLParam(r, "nodeID"),
		X:      req.X,
		Y:      req.Y,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]bool{"moved": true})
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *PipelineHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	cmd := commands.DeleteNodeCommand{
		UserID: userID,
		NodeID: chi.URLParam(r, "nodeID"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPipeline(w, r, userID)
}

type createConnectionRequest struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// CreateConnection handles POST /connections
func (h *PipelineHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	var req createConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	cmd := commands.AddConnectionCommand{
		UserID:       userID,
		SourceID:     req.Source,
		TargetID:     req.Target,
		SourceHandle: req.SourceHandle,
		TargetHandle: req.TargetHandle,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPipeline(w, r, userID)
}

// DeleteConnection handles DELETE /connections/{connectionID}
func (h *PipelineHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	cmd := commands.DeleteConnectionCommand{
		UserID:       userID,
		ConnectionID: chi.URLParam(r, "connectionID"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPipeline(w, r, userID)
}

// GetPrompt handles GET /prompt
func (h *PipelineHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	view, err := h.queryBus.Ask(r.Context(), queries.GetPromptQuery{UserID: userID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

type customPromptRequest struct {
	Text string `json:"text"`
}

// SetCustomPrompt handles PUT /prompt/custom
func (h *PipelineHandler) SetCustomPrompt(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	var req customPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	cmd := commands.SetCustomPromptCommand{UserID: userID, Text: req.Text}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	view, err := h.queryBus.Ask(r.Context(), queries.GetPromptQuery{UserID: userID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// respondPipeline answers a mutation with the full refreshed view, so the
// caller renders from the same authoritative state the push channel carries
func (h *PipelineHandler) respondPipeline(w http.ResponseWriter, r *http.Request, userID string) {
	view, err := h.queryBus.Ask(r.Context(), queries.GetPipelineQuery{UserID: userID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}
