package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	domainconfig "careflow-backend/domain/config"
	"careflow-backend/infrastructure/config"
	"careflow-backend/infrastructure/di"
	"careflow-backend/interfaces/http/rest"
	"careflow-backend/interfaces/websocket"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer container.Logger.Sync()

	// Canvas socket hub; the broadcaster closes the loop from services
	// back to connected clients
	hub := websocket.NewHub(container.Metrics, container.Logger)
	go hub.Run()
	container.SetBroadcaster(websocket.NewHubBroadcaster(hub, container.Logger))

	wsServer := websocket.NewServer(hub, container.Reconciler, nil, container.Logger)

	// Live-reloaded operational limits; absent path runs with defaults
	var watcher *config.ConfigWatcher
	if cfg.DynamicConfigPath != "" {
		watcher, err = config.NewConfigWatcher(cfg.DynamicConfigPath, container.Logger)
		if err != nil {
			container.Logger.Warn("dynamic config unavailable, using defaults",
				zap.String("path", cfg.DynamicConfigPath), zap.Error(err))
			watcher = nil
		}
	}
	if watcher != nil {
		container.SetDomainRules(func() *domainconfig.DomainConfig {
			return watcher.Current().DomainRules()
		})
		hub.SetMaxConnectionsPerUser(watcher.Current().WebSocket.MaxConnectionsPerUser)
		watcher.OnChange(func(d *config.DynamicConfig) {
			hub.SetMaxConnectionsPerUser(d.WebSocket.MaxConnectionsPerUser)
		})
		watcher.Start()
	}

	router := rest.NewRouter(
		cfg,
		container.CommandBus,
		container.QueryBus,
		container.Generation,
		container.Analyzer,
		container.Transcript,
		container.JWTValidator,
		container.Registry,
		wsServer,
		container.Logger,
	)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Logger.Info("starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.StorageBackend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("server shutdown error", zap.Error(err))
	}

	if watcher != nil {
		watcher.Stop()
	}
	hub.Stop()

	// flush buffered writes last; nothing mutates after the server stops
	if err := container.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("shutdown flush error", zap.Error(err))
	}

	container.Logger.Info("shutdown complete")
}
