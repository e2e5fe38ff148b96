// Package main is the entry point for the PropNet property network
// simulator. The application runs a globally synchronized network
// clock: every participant sees the same countdown, all intents queue
// for the same tick, and each tick advances the whole network by one
// simulated month.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - HTTP handlers for API endpoints, SSE/WebSocket for streaming
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nedlands/propnet/internal/config"
	"github.com/nedlands/propnet/internal/di"
	"github.com/nedlands/propnet/pkg/logger"
)

// main orchestrates the startup sequence:
//  1. Loads configuration from environment variables
//  2. Initializes logging
//  3. Wires all dependencies via the DI container (database, store,
//     simulation engine, clock, backups, HTTP server)
//  4. Ensures the NPC roster exists
//  5. Starts the clock loop, maintenance scheduler, and HTTP server
//  6. Waits for shutdown signal and performs graceful shutdown
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails so the error is visible.
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting PropNet")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// The NPC roster is created once and reused across restarts; the
	// call is idempotent on display name.
	created, err := container.NPCs.EnsureParticipants(container.Store.DB())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize NPC roster")
	}
	if created > 0 {
		log.Info().Int("created", created).Msg("NPC roster initialized")
	}

	// The clock loop is the only caller of the tick pipeline. It runs
	// until Stop or process exit.
	container.Clock.Start(ctx)
	log.Info().Int("month", container.Clock.CurrentMonth()).Msg("Network clock started")

	// Maintenance scheduler: hourly WAL checkpoint, nightly integrity
	// check + backup.
	container.Scheduler.Start()
	log.Info().Msg("Maintenance scheduler started")

	go func() {
		if err := container.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the clock first so no tick is mid-flight when the store
	// closes. Stop blocks until the loop goroutine exits.
	container.Clock.Stop()
	log.Info().Msg("Network clock stopped")

	container.Scheduler.Stop()
	log.Info().Msg("Maintenance scheduler stopped")

	// In-flight requests get up to 10 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := container.Server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
