package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/core/entities"
	"careflow-backend/domain/core/validators"
	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/domain/gallery"
	pkgerrors "careflow-backend/pkg/errors"
	"careflow-backend/pkg/metrics"
)

type generationFixture struct {
	service  *GenerationService
	sessions *SessionManager
	client   *fakeGenerationClient
	gallery  *fakeGalleryRepo
	tracker  *ProgressTracker
}

func newGenerationFixture(t *testing.T) *generationFixture {
	t.Helper()
	client := &fakeGenerationClient{}
	galleryRepo := newFakeGalleryRepo()
	sessions := NewSessionManager(newFakePipelineRepo(), &fakePublisher{}, nil, zap.NewNop())
	tracker := NewProgressTracker(client, nil, galleryRepo, nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	tracker.SetPollInterval(10 * time.Millisecond)
	t.Cleanup(tracker.Close)

	service := NewGenerationService(client, galleryRepo, tracker, sessions, zap.NewNop())
	return &generationFixture{
		service:  service,
		sessions: sessions,
		client:   client,
		gallery:  galleryRepo,
		tracker:  tracker,
	}
}

// wireOutputSelector configures and connects the output selector so the
// pipeline is submittable
func (f *generationFixture) wireOutputSelector(t *testing.T) {
	t.Helper()
	err := f.sessions.Mutate(context.Background(), "user123", func(p *aggregates.Pipeline) error {
		id, err := valueobjects.NewNodeIDFromString("output-selector-1")
		if err != nil {
			return err
		}
		node, err := entities.NewNode(id, valueobjects.NodeTypeOutputSelector, valueobjects.NewPosition(0, 0), "", "")
		if err != nil {
			return err
		}
		if err := p.AddNode(node); err != nil {
			return err
		}
		if err := p.UpdatePayload(valueobjects.OutputSelectorPayload{Format: valueobjects.OutputFormatVideo}); err != nil {
			return err
		}
		prompt, _ := p.PromptNode()
		_, err = p.AddConnection(validators.Candidate{SourceID: id, TargetID: prompt.ID()})
		return err
	})
	require.NoError(t, err)
}

func TestGenerationService_Submit_RequiresConnectedOutputSelector(t *testing.T) {
	f := newGenerationFixture(t)

	_, err := f.service.Submit(context.Background(), SubmitRequest{UserID: "user123"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestGenerationService_Submit_ConfiguredButDisconnectedIsRejected(t *testing.T) {
	f := newGenerationFixture(t)

	err := f.sessions.Mutate(context.Background(), "user123", func(p *aggregates.Pipeline) error {
		id, err := valueobjects.NewNodeIDFromString("output-selector-1")
		if err != nil {
			return err
		}
		node, err := entities.NewNode(id, valueobjects.NodeTypeOutputSelector, valueobjects.NewPosition(0, 0), "", "")
		if err != nil {
			return err
		}
		if err := p.AddNode(node); err != nil {
			return err
		}
		return p.UpdatePayload(valueobjects.OutputSelectorPayload{Format: valueobjects.OutputFormatVideo})
	})
	require.NoError(t, err)

	_, err = f.service.Submit(context.Background(), SubmitRequest{UserID: "user123"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestGenerationService_Submit_CreatesOptimisticGalleryEntry(t *testing.T) {
	f := newGenerationFixture(t)
	f.wireOutputSelector(t)

	var submitted ports.GenerationRequest
	f.client.submitFn = func(request ports.GenerationRequest) (*ports.GenerationStatus, error) {
		submitted = request
		return &ports.GenerationStatus{JobID: "job-9", Status: "queued"}, nil
	}

	job, err := f.service.Submit(context.Background(), SubmitRequest{UserID: "user123", Title: "Heart health"})
	require.NoError(t, err)

	assert.Equal(t, "job-9", job.ID)
	assert.Equal(t, gallery.JobStatusQueued, job.Status)
	assert.Equal(t, valueobjects.OutputFormatVideo, submitted.Format)
	assert.NotEmpty(t, submitted.Prompt)
	require.NotNil(t, submitted.OutputConfig)

	// Disconnected components must not leak into the request
	assert.Nil(t, submitted.EvidenceData)
	assert.Nil(t, submitted.StyleData)
	assert.Nil(t, submitted.PersonalData)

	stored := f.gallery.mustGet("user123", "job-9")
	require.NotNil(t, stored)
	assert.Equal(t, "Heart health", stored.Title)
}

func TestGenerationService_Submit_DefaultTitle(t *testing.T) {
	f := newGenerationFixture(t)
	f.wireOutputSelector(t)

	job, err := f.service.Submit(context.Background(), SubmitRequest{UserID: "user123"})
	require.NoError(t, err)
	assert.Equal(t, "Untitled generation", job.Title)
}

func TestGenerationService_Cancel(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	seedJob(t, f.gallery, "user123", "job-1")

	require.NoError(t, f.service.Cancel(ctx, "user123", "job-1"))

	job := f.gallery.mustGet("user123", "job-1")
	assert.Equal(t, gallery.JobStatusFailed, job.Status)
	assert.Equal(t, "Cancelled", job.Error)
	assert.Equal(t, []string{"job-1"}, f.client.cancelled)
}

func TestGenerationService_Cancel_MissingJob(t *testing.T) {
	f := newGenerationFixture(t)
	err := f.service.Cancel(context.Background(), "user123", "nope")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))
}

func TestGenerationService_Cancel_TerminalJobConflicts(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	seedJob(t, f.gallery, "user123", "job-1")

	job := f.gallery.mustGet("user123", "job-1")
	job.Fail("done already")
	require.NoError(t, f.gallery.Upsert(ctx, "user123", job))

	err := f.service.Cancel(ctx, "user123", "job-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))
	assert.Empty(t, f.client.cancelled)
}

func TestGenerationService_Resume_TracksOnlyActiveJobs(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	f.client.statusFn = func(jobID string) (*ports.GenerationStatus, error) {
		return &ports.GenerationStatus{JobID: jobID, Status: "started", Progress: 75}, nil
	}

	seedJob(t, f.gallery, "user123", "job-active")
	finished, err := gallery.NewJob("job-done", "done", valueobjects.OutputFormatVideo)
	require.NoError(t, err)
	require.True(t, finished.Apply(gallery.StatusUpdate{Status: gallery.JobStatusFinished, Progress: 100, ReceivedAt: time.Now()}))
	require.NoError(t, f.gallery.Upsert(ctx, "user123", finished))

	require.NoError(t, f.service.Resume(ctx, "user123"))

	assert.Eventually(t, func() bool {
		return f.gallery.mustGet("user123", "job-active").Progress == 75
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 100, f.gallery.mustGet("user123", "job-done").Progress)
}
