package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/lorrc/status-relay/internal/adapters/primary/bridge"
	httpAdapter "github.com/lorrc/status-relay/internal/adapters/primary/http"
	mw "github.com/lorrc/status-relay/internal/adapters/primary/http/middleware"
	"github.com/lorrc/status-relay/internal/config"
	"github.com/lorrc/status-relay/internal/core/relay"
	"github.com/lorrc/status-relay/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting relay",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Core Components
	registry := relay.NewRegistry(logger)
	engine := relay.NewEngine(registry, logger)
	go engine.Run()

	// 4. Start the Internal Bridge Listener
	bridgeListener := bridge.New(bridge.Config{
		Addr:            cfg.Bridge.Addr,
		ReadTimeout:     cfg.Bridge.ReadTimeout,
		MaxRequestBytes: cfg.Bridge.MaxRequestBytes,
	}, engine, logger)

	if err := bridgeListener.Start(); err != nil {
		logger.Error("failed to start bridge listener", "error", err)
		os.Exit(1)
	}

	// 5. Initialize Rate Limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	// 6. Handlers (Primary Adapters)
	wsHandler := httpAdapter.NewWebSocketHandler(registry, engine, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(registry, bridgeListener, cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		AllowedMethods: []string{"GET"},
	}))

	// Apply rate limiting if enabled
	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware)
	}

	// Health check endpoints (standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// Client-facing WebSocket endpoint
	r.Get("/ws", wsHandler.ServeHTTP)

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting bridge connections first so no new broadcasts arrive
	if err := bridgeListener.Shutdown(); err != nil {
		logger.Error("bridge shutdown error", "error", err)
	}

	// Graceful shutdown of the client-facing server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("relay shutdown complete")
}
