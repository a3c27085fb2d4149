package api

import (
	v1 "dbwarden/internal/api/v1"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Initialize handlers
	baseHandler := NewHandler(s.deps)

	// Prometheus exposition
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Base api router group
	apiGroup := s.router.Group("/api")

	// Base endpoints
	apiGroup.GET("/ping", baseHandler.Ping)
	apiGroup.GET("/health", baseHandler.Health)

	// API v1 routes
	v1Group := apiGroup.Group("/v1")
	v1.SetupRoutes(v1Group, v1.Dependencies{
		Store:    s.deps.Store,
		Engine:   s.deps.Engine,
		Registry: s.deps.Registry,
		MaxBatch: s.config.MaxBatch,
	})

	s.router.NoRoute(baseHandler.NotFound)
}
