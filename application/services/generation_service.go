package services

import (
	"context"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/domain/gallery"
	pkgerrors "careflow-backend/pkg/errors"
)

// GenerationService orchestrates generation jobs: it assembles the request
// from the user's pipeline, submits it, records the optimistic gallery
// entry, and hands the job to the progress tracker.
type GenerationService struct {
	client      ports.GenerationClient
	gallery     ports.GalleryRepository
	tracker     *ProgressTracker
	sessions    *SessionManager
	broadcaster ports.Broadcaster
	logger      *zap.Logger
}

// NewGenerationService creates the generation orchestrator
func NewGenerationService(
	client ports.GenerationClient,
	galleryRepo ports.GalleryRepository,
	tracker *ProgressTracker,
	sessions *SessionManager,
	logger *zap.Logger,
) *GenerationService {
	return &GenerationService{
		client:   client,
		gallery:  galleryRepo,
		tracker:  tracker,
		sessions: sessions,
		logger:   logger,
	}
}

// SetBroadcaster wires the client push channel in after construction
func (s *GenerationService) SetBroadcaster(b ports.Broadcaster) {
	s.broadcaster = b
}

// SubmitRequest carries the submission parameters not derivable from the
// pipeline itself
type SubmitRequest struct {
	UserID      string
	Title       string
	Credentials string
}

// Submit assembles and submits a generation job. The pipeline must have an
// output selector connected and configured; the prompt text and component
// payloads are read from the user's current pipeline state.
func (s *GenerationService) Submit(ctx context.Context, req SubmitRequest) (*gallery.Job, error) {
	var genReq ports.GenerationRequest
	err := s.sessions.Read(ctx, req.UserID, func(p *aggregates.Pipeline) error {
		payloads := p.Payloads()
		output := payloads.OutputSelector
		if output == nil || !s.isConnected(p, valueobjects.NodeTypeOutputSelector) {
			return pkgerrors.NewValidationError("an output selector must be connected and configured before generating")
		}

		genReq = ports.GenerationRequest{
			Format:       output.Format,
			Prompt:       p.Prompt(),
			Title:        req.Title,
			OutputConfig: output,
			Credentials:  req.Credentials,
		}
		if s.isConnected(p, valueobjects.NodeTypeEvidenceInput) {
			genReq.EvidenceData = payloads.Evidence
		}
		if s.isConnected(p, valueobjects.NodeTypeStylePersonalization) {
			genReq.StyleData = payloads.Style
		}
		if s.isConnected(p, valueobjects.NodeTypePersonalData) {
			genReq.PersonalData = payloads.PersonalData
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	status, err := s.client.Submit(ctx, genReq)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = "Untitled generation"
	}
	job, err := gallery.NewJob(status.JobID, title, genReq.Format)
	if err != nil {
		return nil, err
	}

	// The entry exists before the first status update can arrive, so an
	// early push message always finds a record to merge into.
	if err := s.gallery.Upsert(ctx, req.UserID, job); err != nil {
		return nil, pkgerrors.NewStorageError("failed to record gallery entry", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastJob(req.UserID, job)
	}

	s.tracker.Track(req.UserID, job.ID)

	s.logger.Info("generation job submitted",
		zap.String("user_id", req.UserID),
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Format)))
	return job, nil
}

// Cancel asks the backend to cancel a job and stops tracking it
func (s *GenerationService) Cancel(ctx context.Context, userID, jobID string) error {
	job, err := s.gallery.Get(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return pkgerrors.NewNotFoundError("job")
	}
	if job.Status.Terminal() {
		return pkgerrors.NewConflictError("job already finished")
	}

	if err := s.client.Cancel(ctx, jobID); err != nil {
		return err
	}

	s.tracker.Untrack(userID, jobID)
	job.Fail("Cancelled")
	if err := s.gallery.Upsert(ctx, userID, job); err != nil {
		return pkgerrors.NewStorageError("failed to record cancellation", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastJob(userID, job)
	}
	return nil
}

// Resume restarts tracking for every non-terminal job in the gallery,
// typically at process start after a restart mid-generation.
func (s *GenerationService) Resume(ctx context.Context, userID string) error {
	jobs, err := s.gallery.List(ctx, userID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		s.tracker.Track(userID, job.ID)
	}
	return nil
}

func (s *GenerationService) isConnected(p *aggregates.Pipeline, kind valueobjects.NodeType) bool {
	for _, ref := range p.ConnectedComponents() {
		if ref.Type == kind {
			return true
		}
	}
	return false
}
