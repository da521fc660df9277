// Package main is the entrypoint for the FluxADM API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Soba101/FluxADM/internal/analysis"
	"github.com/Soba101/FluxADM/internal/api"
	"github.com/Soba101/FluxADM/internal/api/handler"
	mw "github.com/Soba101/FluxADM/internal/api/middleware"
	"github.com/Soba101/FluxADM/internal/cache"
	"github.com/Soba101/FluxADM/internal/config"
	"github.com/Soba101/FluxADM/internal/intake"
	"github.com/Soba101/FluxADM/internal/llm"
	"github.com/Soba101/FluxADM/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "model", cfg.LLM.Model, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and model client
	pgStore := store.NewPostgresStore(pool)

	modelClient := llm.NewHTTPClient(llm.Options{
		Endpoint:    cfg.LLM.Endpoint,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})

	// Model unavailability is not fatal: analysis degrades to rule-based
	// results, so only log it.
	if err := modelClient.Ready(ctx); err != nil {
		slog.Warn("model endpoint not ready, enrichment will use fallback rules",
			"endpoint", cfg.LLM.Endpoint, "error", err)
	} else {
		slog.Info("model endpoint ready", "endpoint", cfg.LLM.Endpoint, "model", cfg.LLM.Model)
	}

	// 6. Build the analysis pipeline and intake service
	analyzer := analysis.New(analysis.Options{
		Client:     modelClient,
		Recorder:   intake.NewAttemptRecorder(pgStore),
		MaxRetries: cfg.LLM.MaxRetries,
		RetryBase:  cfg.LLM.RetryBase,
	})
	svc := intake.NewService(pgStore, redisCache, analyzer)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler:      handler.NewHealthHandler(pgStore, redisCache, modelClient),
		SubmitHandler:      handler.NewSubmitHandler(svc),
		GetChangeRequest:   handler.NewGetChangeRequestHandler(pgStore),
		ListChangeRequests: handler.NewListChangeRequestsHandler(pgStore),
		DecisionHandler:    handler.NewDecisionHandler(svc),
		PollJobHandler:     handler.NewPollJobHandler(svc),
		DashboardHandler:   handler.NewDashboardHandler(pgStore, redisCache),
		CreateKeyHandler:   handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:    handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:   handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
