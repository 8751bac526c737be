// Package handlers contains the query-side handlers.
package handlers

import (
	"context"

	"careflow-backend/application/ports"
	"careflow-backend/application/queries"
	"careflow-backend/application/queries/bus"
	"careflow-backend/application/services"
	"careflow-backend/domain/core/aggregates"
	pkgerrors "careflow-backend/pkg/errors"
)

// GetPipelineHandler handles GetPipelineQuery
type GetPipelineHandler struct {
	sessions *services.SessionManager
}

// NewGetPipelineHandler creates the handler
func NewGetPipelineHandler(sessions *services.SessionManager) *GetPipelineHandler {
	return &GetPipelineHandler{sessions: sessions}
}

// Handle implements bus.QueryHandler
func (h *GetPipelineHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetPipelineQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("invalid query type for GetPipelineHandler", nil)
	}
	return h.sessions.View(ctx, q.UserID)
}

// GetPromptHandler handles GetPromptQuery
type GetPromptHandler struct {
	sessions *services.SessionManager
}

// NewGetPromptHandler creates the handler
func NewGetPromptHandler(sessions *services.SessionManager) *GetPromptHandler {
	return &GetPromptHandler{sessions: sessions}
}

// PromptView is the read model for the assembled prompt
type PromptView struct {
	Prompt string `json:"prompt"`
}

// Handle implements bus.QueryHandler
func (h *GetPromptHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetPromptQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("invalid query type for GetPromptHandler", nil)
	}

	var view PromptView
	err := h.sessions.Read(ctx, q.UserID, func(p *aggregates.Pipeline) error {
		view.Prompt = p.Prompt()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListGalleryHandler handles ListGalleryQuery
type ListGalleryHandler struct {
	gallery ports.GalleryRepository
}

// NewListGalleryHandler creates the handler
func NewListGalleryHandler(gallery ports.GalleryRepository) *ListGalleryHandler {
	return &ListGalleryHandler{gallery: gallery}
}

// Handle implements bus.QueryHandler
func (h *ListGalleryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ListGalleryQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("invalid query type for ListGalleryHandler", nil)
	}

	jobs, err := h.gallery.List(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return &queries.GalleryView{Jobs: jobs}, nil
}

// GetJobHandler handles GetJobQuery
type GetJobHandler struct {
	gallery ports.GalleryRepository
}

// NewGetJobHandler creates the handler
func NewGetJobHandler(gallery ports.GalleryRepository) *GetJobHandler {
	return &GetJobHandler{gallery: gallery}
}

// Handle implements bus.QueryHandler
func (h *GetJobHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetJobQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("invalid query type for GetJobHandler", nil)
	}

	job, err := h.gallery.Get(ctx, q.UserID, q.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, pkgerrors.NewNotFoundError("job")
	}
	return job, nil
}
