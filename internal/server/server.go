// Package server provides the HTTP server and routing for the property
// network simulator.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/actions"
	"github.com/nedlands/propnet/internal/clock"
	"github.com/nedlands/propnet/internal/config"
	"github.com/nedlands/propnet/internal/database"
	"github.com/nedlands/propnet/internal/events"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/metrics"
	"github.com/nedlands/propnet/internal/narrator"
	"github.com/nedlands/propnet/internal/npc"
	"github.com/nedlands/propnet/internal/pipeline"
	"github.com/nedlands/propnet/internal/reliability"
	"github.com/nedlands/propnet/internal/store"
)

// Config holds everything the server serves from.
type Config struct {
	Log         zerolog.Logger
	Config      *config.Config
	DB          *database.DB
	Store       *store.Store
	Clock       *clock.Clock
	Bus         *events.Bus
	Processor   *actions.Processor
	NPCs        *npc.Engine
	Narrator    *narrator.Narrator
	Metrics     *metrics.Service
	Pipeline    *pipeline.Pipeline
	Calibration *market.Calibration
	Backups     *reliability.BackupService
	Cloud       *reliability.CloudBackupService // nil when not configured
}

// Server is the HTTP front of the simulator. All simulation state
// mutation still goes through the clock and pipeline; handlers either
// read committed state or queue intents.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	clockHandlers   *ClockHandlers
	networkHandlers *NetworkHandlers
	actionHandlers  *ActionHandlers
	systemHandlers  *SystemHandlers
	streamHandler   *StreamHandler
}

// New creates the HTTP server and wires all routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
	}

	s.clockHandlers = NewClockHandlers(cfg.Clock, cfg.Log)
	s.networkHandlers = NewNetworkHandlers(cfg.Store, cfg.Clock, cfg.Pipeline, cfg.Metrics, cfg.NPCs, cfg.Narrator, cfg.Calibration, cfg.Log)
	s.actionHandlers = NewActionHandlers(cfg.Store, cfg.Processor, cfg.Clock, cfg.Log)
	s.systemHandlers = NewSystemHandlers(cfg.Config, cfg.DB, cfg.Bus, cfg.Backups, cfg.Cloud, cfg.Log)
	s.streamHandler = NewStreamHandler(cfg.Bus, cfg.Clock, cfg.Log)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE/WS streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	origins := []string{"*"}
	if s.cfg.CORSOrigins != "" && s.cfg.CORSOrigins != "*" {
		origins = strings.Split(s.cfg.CORSOrigins, ",")
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/clock", func(r chi.Router) {
			// Streams first so they are not wrapped by the timeout
			// middleware applied to the JSON endpoints below.
			r.Get("/stream", s.streamHandler.HandleSSE)
			r.Get("/ws", s.streamHandler.HandleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Get("/status", s.clockHandlers.HandleStatus)
				r.Get("/presets", s.clockHandlers.HandlePresets)
				r.Get("/pending-actions", s.clockHandlers.HandlePendingActions)
				r.Post("/preset", s.clockHandlers.HandleSetPreset)
				r.Post("/interval", s.clockHandlers.HandleSetInterval)
				r.Post("/mode", s.clockHandlers.HandleSetMode)
				r.Post("/start", s.clockHandlers.HandleStart)
				r.Post("/stop", s.clockHandlers.HandleStop)
				r.Post("/pause", s.clockHandlers.HandlePause)
				r.Post("/resume", s.clockHandlers.HandleResume)
				r.Post("/force-tick", s.clockHandlers.HandleForceTick)
				r.Post("/reset", s.clockHandlers.HandleReset)
				r.Post("/queue-action", s.clockHandlers.HandleQueueAction)
				r.Delete("/queue-action/{id}", s.clockHandlers.HandleRemoveAction)
				r.Delete("/queue-actions", s.clockHandlers.HandleClearActions)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/network", func(r chi.Router) {
				r.Get("/state", s.networkHandlers.HandleState)
				r.Get("/properties", s.networkHandlers.HandleProperties)
				r.Get("/properties/{id}", s.networkHandlers.HandleProperty)
				r.Get("/participants", s.networkHandlers.HandleParticipants)
				r.Get("/participants/{id}", s.networkHandlers.HandleParticipant)
				r.Get("/history/snapshots", s.networkHandlers.HandleSnapshots)
				r.Get("/history/events", s.networkHandlers.HandleEvents)
				r.Get("/history/metrics", s.networkHandlers.HandleMetrics)
				r.Get("/feed", s.networkHandlers.HandleFeed)
				r.Get("/news/{month}", s.networkHandlers.HandleNews)
				r.Get("/economy", s.networkHandlers.HandleEconomy)
				r.Post("/events/generate", s.networkHandlers.HandleGenerateEvents)
				r.Post("/governor/chat", s.networkHandlers.HandleGovernorChat)

				r.Get("/npcs", s.networkHandlers.HandleNPCs)
				r.Get("/npcs/{id}", s.networkHandlers.HandleNPC)
				r.Post("/npcs/initialize", s.networkHandlers.HandleInitializeNPCs)
			})

			r.Route("/actions", func(r chi.Router) {
				r.Post("/execute", s.actionHandlers.HandleExecute)
				r.Post("/buy-tokens", s.actionHandlers.HandleBuyTokens)
				r.Post("/sell-tokens", s.actionHandlers.HandleSellTokens)
				r.Post("/pay-rent", s.actionHandlers.HandlePayRent)
			})

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/disk", s.systemHandlers.HandleDiskUsage)
				r.Post("/backup", s.systemHandlers.HandleBackup)
			})
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
