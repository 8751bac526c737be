package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"careflow-backend/application/queries"
	querybus "careflow-backend/application/queries/bus"
	"careflow-backend/application/services"
	"careflow-backend/pkg/common"
	pkgerrors "careflow-backend/pkg/errors"
)

// GenerationHandler serves the generation and gallery endpoints. Submission
// and cancellation go straight to the orchestrator; reads go through the
// query bus like everything else.
type GenerationHandler struct {
	generation *services.GenerationService
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewGenerationHandler creates the handler
func NewGenerationHandler(generation *services.GenerationService, queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{
		generation: generation,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

type generateRequest struct {
	Title       string `json:"title,omitempty"`
	Credentials string `json:"credentials,omitempty"`
}

// Generate handles POST /generate
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	var req generateRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
			return
		}
	}

	job, err := h.generation.Submit(r.Context(), services.SubmitRequest{
		UserID:      userID,
		Title:       req.Title,
		Credentials: req.Credentials,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusAccepted, job)
}

// ListGallery handles GET /gallery
func (h *GenerationHandler) ListGallery(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	view, err := h.queryBus.Ask(r.Context(), queries.ListGalleryQuery{UserID: userID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// GetJob handles GET /gallery/{jobID}
func (h *GenerationHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	job, err := h.queryBus.Ask(r.Context(), queries.GetJobQuery{
		UserID: userID,
		JobID:  chi.URLParam(r, "jobID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, job)
}

// CancelJob handles POST /gallery/{jobID}/cancel
func (h *GenerationHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing user context"))
		return
	}

	jobID := chi.URLParam(r, "jobID")
	if err := h.generation.Cancel(r.Context(), userID, jobID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
