// Package evaluate implements the batch evaluation endpoint.
package evaluate

import (
	"fmt"
	"net/http"

	"dbwarden/internal/api/types"
	"dbwarden/internal/core"
	"dbwarden/internal/status"
	"dbwarden/internal/threshold"

	"github.com/gin-gonic/gin"
)

// Handler evaluates batches of samples.
type Handler struct {
	engine   *core.Engine
	maxBatch int
}

// NewHandler creates a new evaluation handler. maxBatch <= 0 disables the
// batch size limit.
func NewHandler(engine *core.Engine, maxBatch int) *Handler {
	return &Handler{engine: engine, maxBatch: maxBatch}
}

// Evaluate handles POST /api/v1/evaluate
//
// Resolves and classifies every sample, then reports per-sample results, the
// composite status of the batch and the worst status per scope. A sample that
// fails (unknown check, missing or invalid scope, store failure) is reported NA with its
// error and does not fail the request.
//
// Returns:
//   - 200 OK with the batch report
//   - 400 Bad Request for an empty or malformed batch
//   - 413 Request Entity Too Large when the batch exceeds server.max_batch
func (h *Handler) Evaluate(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		types.AbortWithError(c, types.ValidationError(err.Error()))
		return
	}
	if len(req.Samples) == 0 {
		types.AbortWithError(c, types.ValidationError("samples must not be empty"))
		return
	}
	if h.maxBatch > 0 && len(req.Samples) > h.maxBatch {
		types.AbortWithError(c, types.PayloadTooLargeError(
			fmt.Sprintf("batch of %d samples exceeds the limit of %d", len(req.Samples), h.maxBatch),
		))
		return
	}

	// Samples without a scope skip the engine and fail on their own.
	scoped := make([]threshold.Sample, 0, len(req.Samples))
	for _, in := range req.Samples {
		if in.Scope != nil {
			scoped = append(scoped, in.sample())
		}
	}
	report := h.engine.EvaluateAll(c.Request.Context(), scoped)

	resp := Response{
		Results: make([]Result, 0, len(req.Samples)),
		Rollup:  make(map[string]status.Status),
	}
	statuses := make([]status.Status, 0, len(req.Samples))
	next := 0
	for _, in := range req.Samples {
		out := Result{Sample: in, Status: status.NotApplicable}
		if in.Scope == nil {
			out.Effective = threshold.Unconfigured(in.Reference)
			out.Error = fmt.Errorf("%w: scope is required", threshold.ErrInvalidScope).Error()
		} else {
			res := report.Results[next]
			next++
			out.Effective, out.Status = res.Effective, res.Status
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
		}
		if out.Error != "" {
			resp.Failed++
		}
		statuses = append(statuses, out.Status)
		resp.Results = append(resp.Results, out)
	}
	resp.Status = status.Aggregate(statuses...)
	resp.Summary = status.Summarize(statuses)

	for key, st := range core.Rollup(report.Results) {
		resp.Rollup[key.String()] = st
	}

	c.JSON(http.StatusOK, types.SuccessResponse(resp))
}
