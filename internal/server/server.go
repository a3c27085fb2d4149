// Package server provides the main server orchestration for dbwarden.
//
// This package coordinates the startup and shutdown of all core components:
//   - Threshold storage initialization and migration
//   - Resolution cache and change bus wiring
//   - Evaluation engine construction
//   - HTTP API server management
//   - Graceful shutdown handling
//
// The server follows a structured lifecycle:
//  1. Storage initialization
//  2. Cache and change bus wiring
//  3. Engine construction
//  4. HTTP API server launch
//  5. Signal handling and graceful shutdown
package server

import (
	"context"
	"errors"
	"fmt"

	"dbwarden/internal/api"
	"dbwarden/internal/bus"
	"dbwarden/internal/checks"
	"dbwarden/internal/config"
	"dbwarden/internal/core"
	"dbwarden/internal/storage"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Server represents the main dbwarden server orchestrator.
//
// It owns the lifecycle of storage, cache, change bus, engine and HTTP API,
// ensures proper initialization order and shuts them down in reverse.
type Server struct {
	// cfg holds the application configuration
	cfg     *config.Config
	version string

	registry *checks.Registry
	storage  *storage.Storage
	store    *storage.ThresholdStore
	cache    *core.Cache
	bus      *bus.Bus
	sub      *nats.Subscription
	engine   *core.Engine
	api      *api.Server
}

// New creates a new server instance with the provided configuration.
//
// Nothing is opened until Init or Start is called.
func New(cfg *config.Config, version string) *Server {
	return &Server{
		cfg:      cfg,
		version:  version,
		registry: checks.Default(),
	}
}

// Init opens storage and wires the cache, change bus and engine.
//
// It is called by Start, and directly by commands that need the engine or the
// store without serving HTTP. Call Close to release what Init opened.
func (s *Server) Init(ctx context.Context) error {
	if s.engine != nil {
		return nil
	}

	// Phase 1: Initialize storage
	// This must happen first as all other components depend on it
	st, err := storage.New(ctx, s.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.storage = st
	s.store = storage.NewThresholdStore(st, s.registry)

	// Phase 2: Wire the resolution cache and the change bus
	var reader core.ChainReader = s.store
	if s.cfg.Cache.Enabled {
		s.cache = core.NewCache(s.store, s.cfg.Cache.Size, s.cfg.Cache.TTL)
		s.store.OnChange(func(c storage.Change) {
			s.cache.Invalidate(c.Reference)
		})
		reader = s.cache
	}

	if s.cfg.Bus.Enabled {
		if err := s.connectBus(); err != nil {
			s.Close()
			return err
		}
	}

	// Phase 3: Build the evaluation engine
	s.engine = core.NewEngine(reader, s.registry, s.cfg.Engine.Workers)

	log.Info().
		Str("driver", s.cfg.Storage.Driver).
		Bool("cache", s.cache != nil).
		Bool("bus", s.bus != nil).
		Int("workers", s.cfg.Engine.Workers).
		Msg("Components initialized")

	return nil
}

// connectBus publishes local changes and invalidates the cache on remote ones.
func (s *Server) connectBus() error {
	b, err := bus.Connect(s.cfg.Bus)
	if err != nil {
		return fmt.Errorf("failed to initialize change bus: %w", err)
	}
	s.bus = b
	s.store.OnChange(b.PublishChange)
	if s.cache != nil {
		b.OnReconnect(s.cache.Purge)
	}

	sub, err := b.Subscribe(func(e bus.Event) {
		log.Debug().
			Str("reference", string(e.Reference)).
			Str("scope", e.Scope).
			Str("origin", e.Origin).
			Msg("Remote threshold change")
		if s.cache != nil {
			s.cache.Invalidate(e.Reference)
		}
	})
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Start initializes all components and serves HTTP until ctx is cancelled.
//
// This method blocks until:
//   - A fatal error occurs during startup
//   - The provided context is cancelled (shutdown signal)
//   - The HTTP server encounters an unrecoverable error
//
// Returns an error if any component fails to start or stop gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	defer s.Close()

	// Phase 4: Initialize HTTP API server
	s.api = api.NewServer(s.cfg.Server, api.Dependencies{
		Storage:  s.storage,
		Store:    s.store,
		Engine:   s.engine,
		Registry: s.registry,
		Cache:    s.cache,
		Version:  s.version,
	})

	// Start HTTP server in a separate goroutine to avoid blocking
	// We use a buffered channel to prevent goroutine leaks
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.api.Start()
	}()

	// Phase 5: Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server first to stop accepting new requests
	if err := s.api.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	if err := <-serverErrors; err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}

// Close releases the bus connection and the database, in that order.
func (s *Server) Close() error {
	var errs []error
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
		s.sub = nil
	}
	if s.bus != nil {
		s.bus.Close()
		s.bus = nil
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, err)
		}
		s.storage = nil
	}
	s.engine = nil
	return errors.Join(errs...)
}

// Registry returns the check table.
func (s *Server) Registry() *checks.Registry {
	return s.registry
}

// Storage returns the opened storage, or nil before Init.
func (s *Server) Storage() *storage.Storage {
	return s.storage
}

// Store returns the threshold store, or nil before Init.
func (s *Server) Store() *storage.ThresholdStore {
	return s.store
}

// Engine returns the evaluation engine, or nil before Init.
func (s *Server) Engine() *core.Engine {
	return s.engine
}

// Cache returns the resolution cache, or nil when caching is disabled.
func (s *Server) Cache() *core.Cache {
	return s.cache
}
