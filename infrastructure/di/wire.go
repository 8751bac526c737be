//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"careflow-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideKeyValueStore,
	ProvidePipelineRepository,
	ProvideGalleryRepository,
	ProvideEventPublisher,
	ProvideSessionManager,
	ProvideCanvasReconciler,
	ProvideGenerationClient,
	ProvidePushDialer,
	ProvideStyleAnalyzer,
	ProvideTranscriptProvider,
	ProvideProgressTracker,
	ProvideGenerationService,
	ProvideJWTValidator,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainerWire builds the container through Wire; the checked-in
// InitializeContainer mirrors this set by hand.
func InitializeContainerWire(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
