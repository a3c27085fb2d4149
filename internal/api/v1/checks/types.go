// Package checks defines API response types for the check table endpoints.
package checks

import checktable "dbwarden/internal/checks"

// CheckResponse represents a check definition in API responses.
type CheckResponse struct {
	Reference        checktable.Reference   `json:"reference"`
	Description      string                 `json:"description"`
	Sense            checktable.Sense       `json:"sense"`
	CheckTypes       []checktable.CheckType `json:"check_types"`
	DefaultCheckType checktable.CheckType   `json:"default_check_type"`
	MaxLevel         string                 `json:"max_level"`
}

func newCheckResponse(def checktable.Definition) CheckResponse {
	return CheckResponse{
		Reference:        def.Reference,
		Description:      def.Description,
		Sense:            def.Sense,
		CheckTypes:       def.CheckTypes,
		DefaultCheckType: def.DefaultCheckType(),
		MaxLevel:         def.MaxLevel.String(),
	}
}
