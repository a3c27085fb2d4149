// Package thresholds implements HTTP handlers for reading and writing
// threshold configuration.
//
// Writes go through the threshold store, which validates them and drives
// cache invalidation and change broadcasting. Reads of a single scope report
// both the stored row and the effective configuration after inheritance.
package thresholds

import (
	"net/http"

	"dbwarden/internal/api/types"
	"dbwarden/internal/checks"
	"dbwarden/internal/core"
	"dbwarden/internal/storage"
	"dbwarden/internal/threshold"

	"github.com/gin-gonic/gin"
)

// Handler manages threshold endpoints.
type Handler struct {
	store    *storage.ThresholdStore
	resolver *core.Resolver
	registry *checks.Registry
}

// NewHandler creates a new threshold handler instance.
//
// Parameters:
//   - store: Threshold store used for listing and writes
//   - resolver: Resolver used for effective configs, usually the cached one of the engine
//   - registry: Static check table
func NewHandler(store *storage.ThresholdStore, resolver *core.Resolver, registry *checks.Registry) *Handler {
	return &Handler{
		store:    store,
		resolver: resolver,
		registry: registry,
	}
}

// reference reads the :reference path parameter and checks it is known.
func (h *Handler) reference(c *gin.Context) (checks.Reference, bool) {
	ref := checks.Reference(c.Param("reference"))
	if _, ok := h.registry.Lookup(ref); !ok {
		types.AbortWithError(c, types.NotFoundError("check "+string(ref)))
		return "", false
	}
	return ref, true
}

// ListAll handles GET /api/v1/thresholds
//
// Returns every stored row ordered by reference and scope.
//
// Query parameters:
//   - page (default: 1, min: 1)
//   - page_size (default: 100, max: 500)
//
// Returns:
//   - 200 OK with paginated rows
//   - 400 Bad Request for invalid pagination parameters
//   - 503 Service Unavailable when the store fails
func (h *Handler) ListAll(c *gin.Context) {
	h.list(c, "")
}

// List handles GET /api/v1/thresholds/:reference
//
// Returns the stored rows of one check ordered by scope.
//
// Returns:
//   - 200 OK with paginated rows
//   - 404 Not Found for an unknown reference
//   - 503 Service Unavailable when the store fails
func (h *Handler) List(c *gin.Context) {
	ref, ok := h.reference(c)
	if !ok {
		return
	}
	h.list(c, ref)
}

func (h *Handler) list(c *gin.Context, ref checks.Reference) {
	var pagination types.PaginationRequest
	if err := c.ShouldBindQuery(&pagination); err != nil {
		types.AbortWithError(c, types.ValidationError(err.Error()))
		return
	}
	pagination.Defaults()

	rows, err := h.store.ListConfigs(c.Request.Context(), ref)
	if err != nil {
		types.AbortWithError(c, err)
		return
	}

	start, end := pagination.Window(len(rows))
	c.JSON(http.StatusOK, types.SuccessResponseWithPagination(
		rows[start:end],
		types.NewPagination(pagination, len(rows)),
	))
}

// Get handles GET /api/v1/thresholds/:reference/scope
//
// Query parameters select the scope, see types.ScopeQuery. The response holds
// the row stored at exactly that scope (null when absent) and the effective
// configuration after inheritance.
//
// Returns:
//   - 200 OK with stored and effective configuration
//   - 400 Bad Request for an invalid scope
//   - 404 Not Found for an unknown reference
//   - 409 Conflict when a row on the chain is corrupt
//   - 503 Service Unavailable when the store fails
func (h *Handler) Get(c *gin.Context) {
	ref, ok := h.reference(c)
	if !ok {
		return
	}

	var query types.ScopeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		types.AbortWithError(c, types.ValidationError(err.Error()))
		return
	}
	key, err := query.Key()
	if err != nil {
		types.AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	stored, err := h.store.GetConfig(ctx, ref, key)
	if err != nil {
		types.AbortWithError(c, err)
		return
	}
	eff, err := h.resolver.Resolve(ctx, ref, key)
	if err != nil {
		types.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse(ScopeResponse{
		Reference: ref,
		Scope:     key,
		Stored:    stored,
		Effective: eff,
		Inherited: eff.Inherited(key),
	}))
}

// Put handles PUT /api/v1/thresholds/:reference
//
// Creates or replaces the row at the body's scope. Mode inherit stores an
// explicit inherit row, which resolves exactly like an absent one.
//
// Returns:
//   - 200 OK with the stored row
//   - 400 Bad Request for invalid scope, mode, check type or thresholds
//   - 404 Not Found for an unknown reference
//   - 503 Service Unavailable when the store fails
func (h *Handler) Put(c *gin.Context) {
	ref, ok := h.reference(c)
	if !ok {
		return
	}

	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		types.AbortWithError(c, types.ValidationError(err.Error()))
		return
	}
	mode, err := threshold.ParseMode(req.Mode)
	if err != nil {
		types.AbortWithError(c, err)
		return
	}

	stored, err := h.store.UpsertConfig(c.Request.Context(), threshold.Config{
		Reference: ref,
		Scope:     req.Scope,
		Mode:      mode,
		CheckType: req.CheckType,
		Warning:   req.Warning,
		Critical:  req.Critical,
	})
	if err != nil {
		types.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse(stored))
}

// Delete handles DELETE /api/v1/thresholds/:reference/scope
//
// Removes the row at the selected scope, which reverts it to inherit.
//
// Returns:
//   - 200 OK when a row was removed
//   - 400 Bad Request for an invalid scope
//   - 404 Not Found for an unknown reference or when no row exists at the scope
//   - 503 Service Unavailable when the store fails
func (h *Handler) Delete(c *gin.Context) {
	ref, ok := h.reference(c)
	if !ok {
		return
	}

	var query types.ScopeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		types.AbortWithError(c, types.ValidationError(err.Error()))
		return
	}
	key, err := query.Key()
	if err != nil {
		types.AbortWithError(c, err)
		return
	}

	deleted, err := h.store.DeleteConfig(c.Request.Context(), ref, key)
	if err != nil {
		types.AbortWithError(c, err)
		return
	}
	if !deleted {
		types.AbortWithError(c, types.NotFoundError("threshold "+string(ref)+" at "+key.String()))
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse(DeleteResponse{
		Reference: ref,
		Scope:     key,
		Deleted:   true,
	}))
}
