// Package di assembles the application's dependency graph.
package di

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"careflow-backend/application/commands"
	"careflow-backend/application/commands/bus"
	commandhandlers "careflow-backend/application/commands/handlers"
	"careflow-backend/application/ports"
	"careflow-backend/application/queries"
	querybus "careflow-backend/application/queries/bus"
	queryhandlers "careflow-backend/application/queries/handlers"
	"careflow-backend/application/services"
	"careflow-backend/infrastructure/acl"
	"careflow-backend/infrastructure/config"
	"careflow-backend/infrastructure/messaging"
	"careflow-backend/infrastructure/persistence"
	dynamodbstore "careflow-backend/infrastructure/persistence/dynamodb"
	"careflow-backend/infrastructure/persistence/memory"
	"careflow-backend/pkg/auth"
	"careflow-backend/pkg/metrics"
)

// ProvideLogger creates the service logger
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideRegistry creates the Prometheus registry
func ProvideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

// ProvideMetrics registers the service collectors
func ProvideMetrics(registry *prometheus.Registry) *metrics.Metrics {
	return metrics.New(registry)
}

// ProvideKeyValueStore selects the storage backend and wraps it with the
// write-behind buffer
func ProvideKeyValueStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*persistence.WriteBehindStore, error) {
	var inner ports.KeyValueStore
	switch cfg.StorageBackend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := awsdynamodb.NewFromConfig(awsCfg)
		inner = dynamodbstore.NewKVStore(client, cfg.DynamoDBTable, logger)
	case "memory":
		inner = memory.NewKVStore()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return persistence.NewWriteBehindStore(inner, cfg.WriteDebounce, m, logger), nil
}

// ProvidePipelineRepository creates the pipeline repository
func ProvidePipelineRepository(store *persistence.WriteBehindStore, logger *zap.Logger) ports.PipelineRepository {
	return persistence.NewPipelineRepository(store, logger)
}

// ProvideGalleryRepository creates the gallery repository
func ProvideGalleryRepository(store *persistence.WriteBehindStore, logger *zap.Logger) ports.GalleryRepository {
	return persistence.NewGalleryRepository(store, logger)
}

// ProvideEventPublisher creates the in-process event publisher
func ProvideEventPublisher(logger *zap.Logger) *messaging.InProcessPublisher {
	return messaging.NewInProcessPublisher(logger)
}

// ProvideSessionManager creates the session manager. The broadcaster is
// wired in later, after the hub exists.
func ProvideSessionManager(repo ports.PipelineRepository, publisher *messaging.InProcessPublisher, logger *zap.Logger) *services.SessionManager {
	return services.NewSessionManager(repo, publisher, nil, logger)
}

// ProvideCanvasReconciler creates the canvas reconciler
func ProvideCanvasReconciler(sessions *services.SessionManager, m *metrics.Metrics, logger *zap.Logger) *services.CanvasReconciler {
	return services.NewCanvasReconciler(sessions, m, logger)
}

// ProvideGenerationClient creates the generation backend client
func ProvideGenerationClient(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) ports.GenerationClient {
	return acl.NewGenerationClient(cfg.GenerationBaseURL, cfg.GenerationAPIKey, m, logger)
}

// ProvidePushDialer creates the push channel dialer
func ProvidePushDialer(cfg *config.Config, logger *zap.Logger) ports.PushDialer {
	return acl.NewPushDialer(cfg.GenerationWSURL, cfg.GenerationAPIKey, logger)
}

// ProvideStyleAnalyzer creates the style-analysis client
func ProvideStyleAnalyzer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) ports.StyleAnalyzer {
	return acl.NewStyleClient(cfg.StyleAnalysisURL, m, logger)
}

// ProvideTranscriptProvider creates the transcript client
func ProvideTranscriptProvider(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) ports.TranscriptProvider {
	return acl.NewTranscriptClient(cfg.TranscriptBaseURL, m, logger)
}

// ProvideProgressTracker creates the generation progress tracker
func ProvideProgressTracker(
	client ports.GenerationClient,
	dialer ports.PushDialer,
	galleryRepo ports.GalleryRepository,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *services.ProgressTracker {
	tracker := services.NewProgressTracker(client, dialer, galleryRepo, nil, m, logger)
	tracker.SetPollInterval(cfg.PollInterval)
	return tracker
}

// ProvideGenerationService creates the generation orchestrator
func ProvideGenerationService(
	client ports.GenerationClient,
	galleryRepo ports.GalleryRepository,
	tracker *services.ProgressTracker,
	sessions *services.SessionManager,
	logger *zap.Logger,
) *services.GenerationService {
	return services.NewGenerationService(client, galleryRepo, tracker, sessions, logger)
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" && cfg.IsDevelopment() {
		secret = "development-secret-change-in-production"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      []string{cfg.JWTAudience},
	})
}

// ProvideCommandBus creates the command bus with all handlers registered
func ProvideCommandBus(sessions *services.SessionManager, logger *zap.Logger) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus()
	commandBus.Use(bus.LoggingMiddleware(logger))

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.AddNodeCommand{}, commandhandlers.NewAddNodeHandler(sessions)},
		{commands.MoveNodeCommand{}, commandhandlers.NewMoveNodeHandler(sessions)},
		{commands.DeleteNodeCommand{}, commandhandlers.NewDeleteNodeHandler(sessions)},
		{commands.AddConnectionCommand{}, commandhandlers.NewAddConnectionHandler(sessions)},
		{commands.DeleteConnectionCommand{}, commandhandlers.NewDeleteConnectionHandler(sessions)},
		{commands.UpdatePayloadCommand{}, commandhandlers.NewUpdatePayloadHandler(sessions)},
		{commands.ClearPayloadCommand{}, commandhandlers.NewClearPayloadHandler(sessions)},
		{commands.SetCustomPromptCommand{}, commandhandlers.NewSetCustomPromptHandler(sessions)},
		{commands.ResetPipelineCommand{}, commandhandlers.NewResetPipelineHandler(sessions)},
	}
	for _, reg := range registrations {
		if err := commandBus.Register(reg.cmd, reg.handler); err != nil {
			return nil, err
		}
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus with all handlers registered
func ProvideQueryBus(sessions *services.SessionManager, galleryRepo ports.GalleryRepository) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetPipelineQuery{}, queryhandlers.NewGetPipelineHandler(sessions)},
		{queries.GetPromptQuery{}, queryhandlers.NewGetPromptHandler(sessions)},
		{queries.ListGalleryQuery{}, queryhandlers.NewListGalleryHandler(galleryRepo)},
		{queries.GetJobQuery{}, queryhandlers.NewGetJobHandler(galleryRepo)},
	}
	for _, reg := range registrations {
		if err := queryBus.Register(reg.query, reg.handler); err != nil {
			return nil, err
		}
	}
	return queryBus, nil
}
