// Package evaluate defines API request/response types for batch evaluation.
package evaluate

import (
	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
	"dbwarden/internal/status"
	"dbwarden/internal/threshold"
)

// Request is the body of POST /api/v1/evaluate.
type Request struct {
	Samples []Sample `json:"samples" binding:"required"`
}

// Sample is a posted sample. Scope has no default: a sample without one is
// reported as failed instead of being evaluated at Root.
type Sample struct {
	Scope     *scope.Key       `json:"scope"`
	Reference checks.Reference `json:"reference"`
	Value     float64          `json:"value"`
	CheckType checks.CheckType `json:"check_type,omitempty"`
}

func (s Sample) sample() threshold.Sample {
	out := threshold.Sample{Reference: s.Reference, Value: s.Value, CheckType: s.CheckType}
	if s.Scope != nil {
		out.Scope = *s.Scope
	}
	return out
}

// Result is the outcome of one sample. Error is set when the sample could not
// be evaluated, in which case Status is NA.
type Result struct {
	Sample    Sample              `json:"sample"`
	Effective threshold.Effective `json:"effective"`
	Status    status.Status       `json:"status"`
	Error     string              `json:"error,omitempty"`
}

// Response is the outcome of a batch.
type Response struct {
	Results []Result                 `json:"results"`
	Status  status.Status            `json:"status"`
	Summary status.Summary           `json:"summary"`
	Failed  int                      `json:"failed"`
	Rollup  map[string]status.Status `json:"rollup"`
}
