package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/domain/gallery"
	"careflow-backend/pkg/metrics"
)

// DefaultPollInterval is how often a tracked job is polled while its push
// channel stays quiet
const DefaultPollInterval = 5 * time.Second

// maxConsecutivePollFailures is the escalation threshold: past it the job
// is marked failed locally, because three silent misses in a row means the
// backend is unreachable, not slow.
const maxConsecutivePollFailures = 3

// pollFailureMessage is what the gallery shows when polling escalates
const pollFailureMessage = "Failed to check generation status"

// ProgressTracker follows active generation jobs over two redundant
// channels: an unsolicited push stream and a steady poll loop. Both feed
// the same reducer, so updates are idempotent and last-write-wins; losing
// either channel degrades freshness, never correctness. Tracking tears
// itself down the moment a terminal status lands.
type ProgressTracker struct {
	client      ports.GenerationClient
	dialer      ports.PushDialer
	gallery     ports.GalleryRepository
	broadcaster ports.Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger

	pollInterval time.Duration

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewProgressTracker creates a tracker. The dialer may be nil, in which
// case jobs are followed by polling alone.
func NewProgressTracker(
	client ports.GenerationClient,
	dialer ports.PushDialer,
	galleryRepo ports.GalleryRepository,
	broadcaster ports.Broadcaster,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ProgressTracker {
	return &ProgressTracker{
		client:       client,
		dialer:       dialer,
		gallery:      galleryRepo,
		broadcaster:  broadcaster,
		metrics:      m,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		active:       make(map[string]context.CancelFunc),
	}
}

// SetBroadcaster wires the client push channel in after construction
func (t *ProgressTracker) SetBroadcaster(b ports.Broadcaster) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcaster = b
}

// SetPollInterval overrides the poll cadence
func (t *ProgressTracker) SetPollInterval(d time.Duration) {
	t.pollInterval = d
}

func trackKey(userID, jobID string) string {
	return userID + "/" + jobID
}

// Track starts following a job. Tracking the same job twice is a no-op.
func (t *ProgressTracker) Track(userID, jobID string) {
	key := trackKey(userID, jobID)

	t.mu.Lock()
	if _, exists := t.active[key]; exists {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.active[key] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go t.follow(ctx, userID, jobID)
}

// Untrack stops following a job
func (t *ProgressTracker) Untrack(userID, jobID string) {
	key := trackKey(userID, jobID)

	t.mu.Lock()
	cancel, exists := t.active[key]
	if exists {
		delete(t.active, key)
	}
	t.mu.Unlock()

	if exists {
		cancel()
	}
}

// Close stops all tracking and waits for the follower goroutines to exit
func (t *ProgressTracker) Close() {
	t.mu.Lock()
	for key, cancel := range t.active {
		cancel()
		delete(t.active, key)
	}
	t.mu.Unlock()

	t.wg.Wait()
}

// follow is the single writer for one job's gallery record. Push and poll
// updates funnel into this goroutine's select, so the reducer never races
// itself.
func (t *ProgressTracker) follow(ctx context.Context, userID, jobID string) {
	defer t.wg.Done()
	defer t.Untrack(userID, jobID)

	var pushCh <-chan ports.GenerationStatus
	var stream ports.StatusStream
	if t.dialer != nil {
		s, err := t.dialer.Dial(ctx, jobID)
		if err != nil {
			t.logger.Debug("push channel unavailable, polling only",
				zap.String("job_id", jobID),
				zap.Error(err))
		} else {
			stream = s
			pushCh = s.Updates()
		}
	}
	if stream != nil {
		defer stream.Close()
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	pollFailures := 0

	for {
		select {
		case <-ctx.Done():
			return

		case status, ok := <-pushCh:
			if !ok {
				// remote hung up; keep polling
				pushCh = nil
				continue
			}
			t.metrics.JobStatusUpdates.WithLabelValues("push").Inc()
			if t.applyStatus(userID, jobID, status) {
				return
			}

		case <-ticker.C:
			status, err := t.client.Status(ctx, jobID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				pollFailures++
				t.metrics.JobPollFailures.Inc()
				t.logger.Warn("job status poll failed",
					zap.String("job_id", jobID),
					zap.Int("consecutive", pollFailures),
					zap.Error(err))
				if pollFailures >= maxConsecutivePollFailures {
					t.escalate(userID, jobID)
					return
				}
				continue
			}
			pollFailures = 0
			t.metrics.JobStatusUpdates.WithLabelValues("poll").Inc()
			if t.applyStatus(userID, jobID, *status) {
				return
			}
		}
	}
}

// applyStatus merges one observation into the gallery record. Returns true
// when the job reached a terminal status and tracking should stop.
func (t *ProgressTracker) applyStatus(userID, jobID string, status ports.GenerationStatus) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := t.gallery.Get(ctx, userID, jobID)
	if err != nil {
		t.logger.Error("failed to load gallery job",
			zap.String("job_id", jobID),
			zap.Error(err))
		return false
	}
	if job == nil {
		// record vanished; nothing left to update
		return true
	}

	update := gallery.StatusUpdate{
		Status:       gallery.JobStatus(status.Status),
		Progress:     status.Progress,
		CurrentStep:  status.CurrentStep,
		DownloadURL:  status.DownloadURL,
		ThumbnailURL: status.ThumbnailURL,
		Duration:     status.Duration,
		FileSize:     status.FileSize,
		Error:        status.Error,
		ReceivedAt:   time.Now(),
	}

	if job.Apply(update) {
		t.persistAndBroadcast(ctx, userID, job)
	}
	return job.Status.Terminal()
}

// escalate marks the job failed after repeated silent polling misses
func (t *ProgressTracker) escalate(userID, jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := t.gallery.Get(ctx, userID, jobID)
	if err != nil || job == nil {
		return
	}
	if job.Status.Terminal() {
		return
	}

	job.Fail(pollFailureMessage)
	t.persistAndBroadcast(ctx, userID, job)
}

func (t *ProgressTracker) persistAndBroadcast(ctx context.Context, userID string, job *gallery.Job) {
	if err := t.gallery.Upsert(ctx, userID, job); err != nil {
		t.logger.Error("failed to persist gallery job",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
	if t.broadcaster != nil {
		t.broadcaster.BroadcastJob(userID, job)
	}
}
