// Package thresholds defines API request/response types for threshold endpoints.
package thresholds

import (
	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
	"dbwarden/internal/threshold"
)

// UpsertRequest is the body of PUT /api/v1/thresholds/:reference.
//
// Scope accepts the object form {"instance_id":3,"database_id":7} or the
// string form "database:3/7"; omitted means root. Warning and critical are
// required for enabled rows and must be absent otherwise.
type UpsertRequest struct {
	Scope     scope.Key        `json:"scope"`
	Mode      string           `json:"mode" binding:"required"`
	CheckType checks.CheckType `json:"check_type"`
	Warning   *float64         `json:"warning"`
	Critical  *float64         `json:"critical"`
}

// ScopeResponse reports the stored row and the effective config at one scope.
type ScopeResponse struct {
	Reference checks.Reference    `json:"reference"`
	Scope     scope.Key           `json:"scope"`
	Stored    *threshold.Config   `json:"stored"`
	Effective threshold.Effective `json:"effective"`
	Inherited bool                `json:"inherited"`
}

// DeleteResponse reports a removed row.
type DeleteResponse struct {
	Reference checks.Reference `json:"reference"`
	Scope     scope.Key        `json:"scope"`
	Deleted   bool             `json:"deleted"`
}
