package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tecchey18-jpg/downloading-website/internal/cache"
	"github.com/tecchey18-jpg/downloading-website/internal/config"
	"github.com/tecchey18-jpg/downloading-website/internal/connector"
	"github.com/tecchey18-jpg/downloading-website/internal/logging"
	"github.com/tecchey18-jpg/downloading-website/internal/merger"
	"github.com/tecchey18-jpg/downloading-website/internal/metrics"
	"github.com/tecchey18-jpg/downloading-website/internal/pipeline"
	"github.com/tecchey18-jpg/downloading-website/internal/tracing"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.Init(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer closer.Close()
	}

	// Initialize the descriptor reference store
	store, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer store.Close()

	// Connectors share one HTTP client for page and API fetches
	pageClient := &http.Client{Timeout: cfg.Fetcher.FetchTimeout}
	registry := connector.NewRegistry(
		connector.NewYouTube(pageClient, cfg.Fetcher.UserAgent),
		connector.NewInstagram(pageClient, cfg.Fetcher.UserAgent),
		connector.NewFacebook(pageClient, cfg.Fetcher.UserAgent),
	)

	// Delivery pipeline
	fetcher := pipeline.NewFetcher(cfg.Fetcher)
	ffmpeg := merger.NewFFmpeg(cfg.Merger.FFmpegPath, cfg.Merger.MergeTimeout)
	workspaces := pipeline.NewWorkspaceFactory(cfg.Merger.WorkDir)
	pipe := pipeline.New(fetcher, ffmpeg, workspaces, logger)
	batch := pipeline.NewBatchCoordinator(pipe, cfg.Batch.Workers, logger)

	api := &API{
		registry: registry,
		store:    store,
		pipeline: pipe,
		batch:    batch,
		logger:   logger,
	}

	router := setupRouter(api, logger, cfg.RateLimit)

	// Metrics server on its own port
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			logger.Info().Int("port", cfg.Metrics.Port).Msg("Starting metrics server")
			if err := metricsSrv.Start(); err != nil {
				logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Strs("platforms", registry.Platforms()).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Metrics server forced to shutdown")
		}
	}

	logger.Info().Msg("Server stopped")
}
