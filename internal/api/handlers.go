package api

import (
	"context"
	"net/http"
	"time"

	"dbwarden/internal/api/types"

	"github.com/gin-gonic/gin"
)

// Handler serves the unversioned endpoints: ping, health and the
// not-found fallback.
type Handler struct {
	deps      Dependencies
	startTime time.Time
}

// NewHandler returns a handler reporting on deps. Any dependency may be nil.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		deps:      deps,
		startTime: time.Now(),
	}
}

// Ping handles GET /ping with {"message": "pong"}.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Health handles GET /health
//
// Reports database connectivity and latency, the state of the resolution cache
// and the size of the check table. Overall status is "healthy" only if the
// database answers; otherwise it is "degraded" and the response is 503 so
// load balancers take the node out of rotation.
//
// Response:
//   - 200 OK with detailed health report
//   - 503 Service Unavailable with the same report when degraded
func (h *Handler) Health(c *gin.Context) {
	db, rtt := h.databaseHealth(c.Request.Context())

	cache := gin.H{"enabled": false, "entries": 0}
	if h.deps.Cache != nil {
		cache = gin.H{"enabled": true, "entries": h.deps.Cache.Len()}
	}

	checksLoaded := 0
	if h.deps.Registry != nil {
		checksLoaded = len(h.deps.Registry.References())
	}

	overall, code := "healthy", http.StatusOK
	if db != "healthy" {
		overall, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).String(),
		"version":   h.deps.Version,
		"components": gin.H{
			"database": gin.H{
				"status":           db,
				"response_time_ms": rtt,
			},
			"cache": cache,
			"checks": gin.H{
				"loaded": checksLoaded,
			},
		},
	})
}

// NotFound answers unmatched routes with the error envelope.
func (h *Handler) NotFound(c *gin.Context) {
	types.AbortWithError(c, types.NotFoundError("route "+c.Request.URL.Path))
}

// databaseHealth reports "healthy" with the ping round trip in
// milliseconds, or "unhealthy" and 0.
func (h *Handler) databaseHealth(ctx context.Context) (string, int64) {
	if h.deps.Storage == nil {
		return "unhealthy", 0
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	rtt, err := h.deps.Storage.Ping(ctx)
	if err != nil {
		return "unhealthy", 0
	}
	return "healthy", rtt.Milliseconds()
}
