package handlers

import (
	"encoding/json"
	"io"
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

// maxPayloadBytes bounds payload documents; evidence text dominates and a
// pasted document should still fit comfortably
const maxPayloadBytes = 1 << 20

// PayloadHandler serves the component configuration endpoints
type PayloadHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewPayloadHandler creates the handler
func NewPayloadHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *PayloadHandler {
	return &PayloadHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// UpdatePayload handles PUT /payloads/{kind}
func (h *PayloadHandler) UpdatePayload(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("failed to read request body"))
		return
	}
	if !json.Valid(body) {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("request body is not valid JSON"))
		return
	}

	cmd := commands.UpdatePayloadCommand{
		UserID:  userID,
		Kind:    chi.URLParam(r, "kind"),
		Payload: json.RawMessage(body),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPipeline(w, r, userID)
}

// ClearPayload handles DELETE /payloads/{kind}
func (h *PayloadHandler) ClearPayload(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	cmd := commands.ClearPayloadCommand{
		UserID: userID,
		Kind:   chi.URLParam(r, "kind"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPipeline(w, r, userID)
}

func (h *PayloadHandler) respondPipeline(w http.ResponseWriter, r *http.Request, userID string) {
	view, err := h.queryBus.Ask(r.Context(), queries.GetPipelineQuery{UserID: userID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}
