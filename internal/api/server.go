// Package api serves the dbwarden HTTP API on gin: health and metrics at the
// root, threshold management and evaluation under /api/v1.
//
//	srv := api.NewServer(cfg.Server, api.Dependencies{...})
//	err := srv.Start()
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"dbwarden/internal/checks"
	"dbwarden/internal/config"
	"dbwarden/internal/core"
	"dbwarden/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Dependencies are the components the handlers serve.
type Dependencies struct {
	Storage  *storage.Storage
	Store    *storage.ThresholdStore
	Engine   *core.Engine
	Registry *checks.Registry

	// Cache is nil when resolution caching is disabled
	Cache *core.Cache

	Version string
}

// Server is the gin router behind an http.Server.
type Server struct {
	config config.ServerConfig
	deps   Dependencies
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP API server instance.
//
// Parameters:
//   - cfg: Server configuration containing address, timeout and batch settings
//   - deps: Storage, store, engine and registry served by the handlers
//
// The router is built immediately; nothing listens until Start or Serve.
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config: cfg,
		deps:   deps,
		router: gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	server.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("Starting HTTP server")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("HTTP server draining")
	return s.server.Shutdown(ctx)
}

// setupMiddleware installs the global chain. RequestID runs first so every
// later log line and error body carries the id.
func (s *Server) setupMiddleware() {
	s.router.Use(
		RequestID(),
		PanicRecovery(),
		Metrics(),
		ContentType(),
		LoggerMiddleware(),
	)
}
