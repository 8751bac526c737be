package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/pkg/common"
	pkgerrors "careflow-backend/pkg/errors"
)

// AnalysisHandler serves the style-analysis and transcript endpoints used
// while configuring the style component
type AnalysisHandler struct {
	analyzer   ports.StyleAnalyzer
	transcript ports.TranscriptProvider
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewAnalysisHandler creates the handler
func NewAnalysisHandler(analyzer ports.StyleAnalyzer, transcript ports.TranscriptProvider, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer:   analyzer,
		transcript: transcript,
		errors:     errorHandler,
		logger:     logger,
	}
}

type analyzeStyleRequest struct {
	Text string `json:"text"`
}

// AnalyzeStyle handles POST /style/analyze
func (h *AnalysisHandler) AnalyzeStyle(w http.ResponseWriter, r *http.Request) {
	var req analyzeStyleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	style, err := h.analyzer.Analyze(r.Context(), req.Text)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, style)
}

// GetTranscript handles GET /transcripts/{videoID}
func (h *AnalysisHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.transcript.Transcript(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, transcript)
}

// SearchVideos handles GET /videos/search
func (h *AnalysisHandler) SearchVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	results, err := h.transcript.Search(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
