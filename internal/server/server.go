// Package server exposes a window's read-only action diagnostics over
// HTTP: registered names and scopes, plus a live tap of local firings.
// It is opt-in tooling and never sits on the dispatch path.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:0",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// Server is the diagnostics HTTP server for one window.
type Server struct {
	config   *Config
	router   *chi.Mux
	httpSrv  *http.Server
	registry *action.Registry
	windowID string
	main     bool
	started  time.Time
	log      zerolog.Logger
}

// New creates a diagnostics server over the window's registry.
func New(cfg *Config, registry *action.Registry, windowID string, main bool) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		registry: registry,
		windowID: windowID,
		main:     main,
		started:  time.Now(),
		log:      logging.Component("server").With().Str("window", windowID).Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.health)
	s.router.Get("/actions", s.listActions)
	s.router.Get("/events", s.events)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Str("addr", s.config.Addr).Msg("diagnostics listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router, used by tests and by the serve command
// to mount the surface on an existing listener.
func (s *Server) Router() *chi.Mux {
	return s.router
}
