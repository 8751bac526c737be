package di

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"careflow-backend/application/commands/bus"
	"careflow-backend/application/ports"
	querybus "careflow-backend/application/queries/bus"
	"careflow-backend/application/services"
	domainconfig "careflow-backend/domain/config"
	"careflow-backend/infrastructure/config"
	"careflow-backend/infrastructure/messaging"
	"careflow-backend/infrastructure/persistence"
	"careflow-backend/pkg/auth"
	"careflow-backend/pkg/metrics"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Store        *persistence.WriteBehindStore
	PipelineRepo ports.PipelineRepository
	GalleryRepo  ports.GalleryRepository
	Publisher    *messaging.InProcessPublisher
	Sessions     *services.SessionManager
	Reconciler   *services.CanvasReconciler
	Generation   *services.GenerationService
	Tracker      *services.ProgressTracker
	Analyzer     ports.StyleAnalyzer
	Transcript   ports.TranscriptProvider
	JWTValidator *auth.JWTValidator
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
}

// InitializeContainer wires the full dependency graph
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}

	registry := ProvideRegistry()
	m := ProvideMetrics(registry)

	store, err := ProvideKeyValueStore(ctx, cfg, m, logger)
	if err != nil {
		return nil, err
	}
	pipelineRepo := ProvidePipelineRepository(store, logger)
	galleryRepo := ProvideGalleryRepository(store, logger)

	publisher := ProvideEventPublisher(logger)
	sessions := ProvideSessionManager(pipelineRepo, publisher, logger)
	reconciler := ProvideCanvasReconciler(sessions, m, logger)

	generationClient := ProvideGenerationClient(cfg, m, logger)
	pushDialer := ProvidePushDialer(cfg, logger)
	tracker := ProvideProgressTracker(generationClient, pushDialer, galleryRepo, cfg, m, logger)
	generation := ProvideGenerationService(generationClient, galleryRepo, tracker, sessions, logger)

	analyzer := ProvideStyleAnalyzer(cfg, m, logger)
	transcript := ProvideTranscriptProvider(cfg, m, logger)

	validator, err := ProvideJWTValidator(cfg)
	if err != nil {
		return nil, err
	}

	commandBus, err := ProvideCommandBus(sessions, logger)
	if err != nil {
		return nil, err
	}
	queryBus, err := ProvideQueryBus(sessions, galleryRepo)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Registry:     registry,
		Metrics:      m,
		Store:        store,
		PipelineRepo: pipelineRepo,
		GalleryRepo:  galleryRepo,
		Publisher:    publisher,
		Sessions:     sessions,
		Reconciler:   reconciler,
		Generation:   generation,
		Tracker:      tracker,
		Analyzer:     analyzer,
		Transcript:   transcript,
		JWTValidator: validator,
		CommandBus:   commandBus,
		QueryBus:     queryBus,
	}, nil
}

// SetBroadcaster plugs the client push channel into every service that
// needs it, once the hub is running
func (c *Container) SetBroadcaster(b ports.Broadcaster) {
	c.Sessions.SetBroadcaster(b)
	c.Tracker.SetBroadcaster(b)
	c.Generation.SetBroadcaster(b)
}

// SetDomainRules points pipeline creation at a live source of domain
// limits, typically backed by the dynamic config watcher
func (c *Container) SetDomainRules(fn func() *domainconfig.DomainConfig) {
	if repo, ok := c.PipelineRepo.(*persistence.PipelineRepository); ok {
		repo.SetDomainConfigSource(fn)
	}
	c.Sessions.SetDomainConfigSource(fn)
}

// Shutdown flushes buffered writes and stops background work
func (c *Container) Shutdown(ctx context.Context) error {
	c.Tracker.Close()
	return c.Store.Close(ctx)
}
