package services

import (
	"context"
	"sync"

	"careflow-backend/application/ports"
	"careflow-backend/application/queries"
	"careflow-backend/domain/core/aggregates"
	"careflow-backend/domain/events"
	"careflow-backend/domain/gallery"
)

// fakePipelineRepo keeps pipelines in memory and counts saves
type fakePipelineRepo struct {
	mu        sync.Mutex
	saved     map[string]*aggregates.Pipeline
	saveCount int
	loadErr   error
}

func newFakePipelineRepo() *fakePipelineRepo {
	return &fakePipelineRepo{saved: make(map[string]*aggregates.Pipeline)}
}

func (r *fakePipelineRepo) Load(ctx context.Context, userID string) (*aggregates.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if p, ok := r.saved[userID]; ok {
		return p, nil
	}
	return aggregates.NewPipeline(userID)
}

func (r *fakePipelineRepo) Save(ctx context.Context, pipeline *aggregates.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[pipeline.UserID()] = pipeline
	r.saveCount++
	return nil
}

func (r *fakePipelineRepo) saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCount
}

// fakePublisher records published events
type fakePublisher struct {
	mu        sync.Mutex
	published []events.DomainEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, batch...)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// fakeBroadcaster records pushed views and jobs
type fakeBroadcaster struct {
	mu    sync.Mutex
	views []*queries.PipelineView
	jobs  []*gallery.Job
}

func (b *fakeBroadcaster) BroadcastPipeline(userID string, view *queries.PipelineView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.views = append(b.views, view)
}

func (b *fakeBroadcaster) BroadcastJob(userID string, job *gallery.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = append(b.jobs, job)
}

func (b *fakeBroadcaster) viewCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.views)
}

func (b *fakeBroadcaster) jobCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// fakeGalleryRepo is an in-memory gallery keyed by user and job id
type fakeGalleryRepo struct {
	mu   sync.Mutex
	jobs map[string]map[string]*gallery.Job
}

func newFakeGalleryRepo() *fakeGalleryRepo {
	return &fakeGalleryRepo{jobs: make(map[string]map[string]*gallery.Job)}
}

func (r *fakeGalleryRepo) List(ctx context.Context, userID string) ([]*gallery.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*gallery.Job{}
	for _, job := range r.jobs[userID] {
		copied := *job
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeGalleryRepo) Get(ctx context.Context, userID, jobID string) (*gallery.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[userID][jobID]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *fakeGalleryRepo) Upsert(ctx context.Context, userID string, job *gallery.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs[userID] == nil {
		r.jobs[userID] = make(map[string]*gallery.Job)
	}
	copied := *job
	r.jobs[userID][job.ID] = &copied
	return nil
}

func (r *fakeGalleryRepo) mustGet(userID, jobID string) *gallery.Job {
	job, _ := r.Get(context.Background(), userID, jobID)
	return job
}

// fakeGenerationClient answers Submit/Status/Cancel from configurable funcs
type fakeGenerationClient struct {
	mu         sync.Mutex
	submitFn   func(request ports.GenerationRequest) (*ports.GenerationStatus, error)
	statusFn   func(jobID string) (*ports.GenerationStatus, error)
	cancelErr  error
	statusCall int
	cancelled  []string
}

func (c *fakeGenerationClient) Submit(ctx context.Context, request ports.GenerationRequest) (*ports.GenerationStatus, error) {
	c.mu.Lock()
	fn := c.submitFn
	c.mu.Unlock()
	if fn == nil {
		return &ports.GenerationStatus{JobID: "job-1", Status: "queued"}, nil
	}
	return fn(request)
}

func (c *fakeGenerationClient) Status(ctx context.Context, jobID string) (*ports.GenerationStatus, error) {
	c.mu.Lock()
	c.statusCall++
	fn := c.statusFn
	c.mu.Unlock()
	if fn == nil {
		return &ports.GenerationStatus{JobID: jobID, Status: "queued"}, nil
	}
	return fn(jobID)
}

func (c *fakeGenerationClient) Cancel(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, jobID)
	return c.cancelErr
}

func (c *fakeGenerationClient) statusCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCall
}

// fakeStream hands out a caller-fed update channel
type fakeStream struct {
	updates   chan ports.GenerationStatus
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		updates: make(chan ports.GenerationStatus, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeStream) Updates() <-chan ports.GenerationStatus { return s.updates }

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// fakeDialer returns a prepared stream, or an error when dialErr is set
type fakeDialer struct {
	stream  *fakeStream
	dialErr error
}

func (d *fakeDialer) Dial(ctx context.Context, jobID string) (ports.StatusStream, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.stream, nil
}
