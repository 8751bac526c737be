// Package services holds the application orchestration layer: the per-user
// session cache, the canvas reconciler, the generation orchestrator, and the
// progress tracker.
package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/application/queries"
	"careflow-backend/domain/config"
	"careflow-backend/domain/core/aggregates"
)

// session is one user's cached pipeline behind its own lock. All mutations
// for a user serialize through this lock, which is what makes the aggregate's
// atomic-transition guarantees hold across concurrent canvas events.
type session struct {
	mu       sync.Mutex
	pipeline *aggregates.Pipeline
}

// SessionManager owns the per-user pipeline sessions. It is the single write
// path to pipeline state: handlers and the reconciler mutate through it, and
// it takes care of persistence, event publication, and client broadcast.
type SessionManager struct {
	repo        ports.PipelineRepository
	publisher   ports.EventPublisher
	broadcaster ports.Broadcaster
	logger      *zap.Logger
	domainCfg   func() *config.DomainConfig

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionManager creates a session manager. The broadcaster may be nil;
// mutations then persist and publish without pushing to clients.
func NewSessionManager(
	repo ports.PipelineRepository,
	publisher ports.EventPublisher,
	broadcaster ports.Broadcaster,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		repo:        repo,
		publisher:   publisher,
		broadcaster: broadcaster,
		logger:      logger,
		sessions:    make(map[string]*session),
	}
}

// SetBroadcaster wires the client push channel in after construction, which
// breaks the dependency cycle between the session manager and the hub that
// needs it to route inbound canvas events.
func (m *SessionManager) SetBroadcaster(b ports.Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcaster = b
}

// SetDomainConfigSource makes reset pipelines pick up live domain rules.
// Already-loaded sessions keep the rules they were built with.
func (m *SessionManager) SetDomainConfigSource(fn func() *config.DomainConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainCfg = fn
}

func (m *SessionManager) getSession(userID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{}
		m.sessions[userID] = s
	}
	return s
}

// ensureLoaded loads the pipeline from storage on first touch. Must be
// called with the session lock held.
func (m *SessionManager) ensureLoaded(ctx context.Context, userID string, s *session) error {
	if s.pipeline != nil {
		return nil
	}
	pipeline, err := m.repo.Load(ctx, userID)
	if err != nil {
		return err
	}
	s.pipeline = pipeline
	return nil
}

// Read runs fn against the user's pipeline under the session lock. fn must
// not retain references to mutable aggregate internals past its return.
func (m *SessionManager) Read(ctx context.Context, userID string, fn func(p *aggregates.Pipeline) error) error {
	s := m.getSession(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := m.ensureLoaded(ctx, userID, s); err != nil {
		return err
	}
	return fn(s.pipeline)
}

// Mutate runs fn against the user's pipeline under the session lock. When fn
// succeeds the pipeline is saved, its domain events published, and the full
// view pushed to the user's clients. When fn fails nothing is persisted or
// broadcast; the aggregate rejected the transition before applying it.
func (m *SessionManager) Mutate(ctx context.Context, userID string, fn func(p *aggregates.Pipeline) error) error {
	s := m.getSession(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := m.ensureLoaded(ctx, userID, s); err != nil {
		return err
	}

	if err := fn(s.pipeline); err != nil {
		return err
	}

	m.afterMutation(ctx, userID, s.pipeline)
	return nil
}

// Reset discards the user's pipeline and recreates the default canvas
func (m *SessionManager) Reset(ctx context.Context, userID string) error {
	s := m.getSession(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg *config.DomainConfig
	if m.domainCfg != nil {
		cfg = m.domainCfg()
	}
	pipeline, err := aggregates.NewPipelineWithConfig(userID, cfg)
	if err != nil {
		return err
	}
	s.pipeline = pipeline
	m.afterMutation(ctx, userID, pipeline)
	return nil
}

// View projects the user's pipeline into its read model
func (m *SessionManager) View(ctx context.Context, userID string) (*queries.PipelineView, error) {
	var view *queries.PipelineView
	err := m.Read(ctx, userID, func(p *aggregates.Pipeline) error {
		view = queries.NewPipelineView(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// afterMutation persists, publishes, and broadcasts. Persistence failures
// are logged, not returned: the in-memory state already transitioned and the
// write-behind layer retries on the next save anyway.
func (m *SessionManager) afterMutation(ctx context.Context, userID string, pipeline *aggregates.Pipeline) {
	if err := m.repo.Save(ctx, pipeline); err != nil {
		m.logger.Error("failed to schedule pipeline save",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	if events := pipeline.GetUncommittedEvents(); len(events) > 0 {
		if err := m.publisher.PublishBatch(ctx, events); err != nil {
			m.logger.Warn("failed to publish domain events",
				zap.String("user_id", userID),
				zap.Int("count", len(events)),
				zap.Error(err))
		}
		pipeline.MarkEventsAsCommitted()
	}

	if m.broadcaster != nil {
		m.broadcaster.BroadcastPipeline(userID, queries.NewPipelineView(pipeline))
	}
}
