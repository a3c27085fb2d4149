// Package checks implements HTTP handlers for the static check table.
package checks

import (
	"net/http"

	"dbwarden/internal/api/types"
	checktable "dbwarden/internal/checks"

	"github.com/gin-gonic/gin"
)

// Handler serves the check table.
type Handler struct {
	registry *checktable.Registry
}

// NewHandler creates a new check handler instance.
func NewHandler(registry *checktable.Registry) *Handler {
	return &Handler{registry: registry}
}

// List handles GET /api/v1/checks
//
// Returns every known check ordered by reference.
//
// Returns:
//   - 200 OK with the check definitions
func (h *Handler) List(c *gin.Context) {
	defs := h.registry.Definitions()
	responses := make([]CheckResponse, 0, len(defs))
	for _, def := range defs {
		responses = append(responses, newCheckResponse(def))
	}
	c.JSON(http.StatusOK, types.SuccessResponse(responses))
}

// Get handles GET /api/v1/checks/:reference
//
// Returns:
//   - 200 OK with the check definition
//   - 404 Not Found for an unknown reference
func (h *Handler) Get(c *gin.Context) {
	ref := checktable.Reference(c.Param("reference"))
	def, ok := h.registry.Lookup(ref)
	if !ok {
		types.AbortWithError(c, types.NotFoundError("check "+string(ref)))
		return
	}
	c.JSON(http.StatusOK, types.SuccessResponse(newCheckResponse(def)))
}
