// Package rest wires the HTTP surface: routing, middleware, and handlers.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"careflow-backend/application/commands/bus"
	"careflow-backend/application/ports"
	querybus "careflow-backend/application/queries/bus"
	"careflow-backend/application/services"
	"careflow-backend/infrastructure/config"
	"careflow-backend/interfaces/http/rest/handlers"
	"careflow-backend/interfaces/http/rest/middleware"
	"careflow-backend/pkg/auth"
	pkgerrors "careflow-backend/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg        *config.Config
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	generation *services.GenerationService
	analyzer   ports.StyleAnalyzer
	transcript ports.TranscriptProvider
	validator  *auth.JWTValidator
	registry   *prometheus.Registry
	wsHandler  http.Handler
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	generation *services.GenerationService,
	analyzer ports.StyleAnalyzer,
	transcript ports.TranscriptProvider,
	validator *auth.JWTValidator,
	registry *prometheus.Registry,
	wsHandler http.Handler,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:        cfg,
		commandBus: commandBus,
		queryBus:   queryBus,
		generation: generation,
		analyzer:   analyzer,
		transcript: transcript,
		validator:  validator,
		registry:   registry,
		wsHandler:  wsHandler,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.careflow.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	if rt.cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	}

	errorHandler := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.cfg.RateLimitPerIP, rt.cfg.RateLimitPerUser))

		pipelineHandler := handlers.NewPipelineHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/", pipelineHandler.GetPipeline)
			r.Post("/reset", pipelineHandler.ResetPipeline)
		})

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", pipelineHandler.CreateNode)
			r.Put("/{nodeID}/position", pipelineHandler.MoveNode)
			r.Delete("/{nodeID}", pipelineHandler.DeleteNode)
		})

		r.Route("/connections", func(r chi.Router) {
			r.Post("/", pipelineHandler.CreateConnection)
			r.Delete("/{connectionID}", pipelineHandler.DeleteConnection)
		})

		r.Route("/prompt", func(r chi.Router) {
			r.Get("/", pipelineHandler.GetPrompt)
			r.Put("/custom", pipelineHandler.SetCustomPrompt)
		})

		payloadHandler := handlers.NewPayloadHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
		r.Route("/payloads", func(r chi.Router) {
			r.Put("/{kind}", payloadHandler.UpdatePayload)
			r.Delete("/{kind}", payloadHandler.ClearPayload)
		})

		generationHandler := handlers.NewGenerationHandler(rt.generation, rt.queryBus, errorHandler, rt.logger)
		r.Post("/generate", generationHandler.Generate)
		r.Route("/gallery", func(r chi.Router) {
			r.Get("/", generationHandler.ListGallery)
			r.Get("/{jobID}", generationHandler.GetJob)
			r.Post("/{jobID}/cancel", generationHandler.CancelJob)
		})

		analysisHandler := handlers.NewAnalysisHandler(rt.analyzer, rt.transcript, errorHandler, rt.logger)
		r.Post("/style/analyze", analysisHandler.AnalyzeStyle)
		r.Get("/transcripts/{videoID}", analysisHandler.GetTranscript)
		r.Get("/videos/search", analysisHandler.SearchVideos)

		// canvas session socket; auth runs here like every API route
		r.Handle("/ws", rt.wsHandler)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
