// Package threshold defines the persisted threshold configuration, the
// effective configuration produced by resolution, and metric samples.
package threshold

import (
	"fmt"
	"math"
	"strings"
	"time"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
)

// Mode is the tri-state setting stored for a check at one scope.
type Mode string

// Threshold modes.
const (
	// ModeInherit defers to the parent scope. It behaves exactly like an absent row.
	ModeInherit Mode = "inherit"
	// ModeEnabled applies the row's own warning and critical thresholds.
	ModeEnabled Mode = "enabled"
	// ModeDisabled turns the check off at this scope.
	ModeDisabled Mode = "disabled"
)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInherit, ModeEnabled, ModeDisabled:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidThresholds, s)
	}
}

// Config is a persisted threshold row for one (reference, scope) pair.
type Config struct {
	Reference checks.Reference `json:"reference"`
	Scope     scope.Key        `json:"scope"`
	Mode      Mode             `json:"mode"`
	CheckType checks.CheckType `json:"check_type,omitempty"`
	Warning   *float64         `json:"warning"`
	Critical  *float64         `json:"critical"`
	UpdatedAt time.Time        `json:"updated_at,omitzero"`
}

// Effective is the configuration that applies at a scope after inheritance.
//
// It is either disabled (Enabled=false, thresholds meaningless) or enabled
// with the warning and critical thresholds of the scope it was resolved at.
type Effective struct {
	Reference checks.Reference `json:"reference"`
	Enabled   bool             `json:"enabled"`
	Warning   float64          `json:"warning"`
	Critical  float64          `json:"critical"`
	CheckType checks.CheckType `json:"check_type,omitempty"`

	// ResolvedAt is the scope whose row decided the result. It is Root when
	// Configured is false.
	ResolvedAt scope.Key `json:"resolved_at"`

	// Configured is false when no row on the chain decided the result and the
	// check is off by default.
	Configured bool `json:"configured"`
}

// Inherited reports whether the effective value came from an ancestor of requested.
func (e Effective) Inherited(requested scope.Key) bool {
	return e.Configured && e.ResolvedAt != requested
}

// Unconfigured returns the off-by-default result for ref.
func Unconfigured(ref checks.Reference) Effective {
	return Effective{Reference: ref}
}

// DisabledAt returns a disabled result decided by the row at key.
func DisabledAt(ref checks.Reference, key scope.Key) Effective {
	return Effective{Reference: ref, ResolvedAt: key, Configured: true}
}

// EnabledFrom returns the enabled result carried by cfg. The caller must have
// validated cfg first.
func EnabledFrom(cfg Config) Effective {
	return Effective{
		Reference:  cfg.Reference,
		Enabled:    true,
		Warning:    *cfg.Warning,
		Critical:   *cfg.Critical,
		CheckType:  cfg.CheckType,
		ResolvedAt: cfg.Scope,
		Configured: true,
	}
}

// Sample is a single live metric value handed in by the collection pipeline.
type Sample struct {
	Scope     scope.Key        `json:"scope"`
	Reference checks.Reference `json:"reference"`
	Value     float64          `json:"value"`
	CheckType checks.CheckType `json:"check_type,omitempty"`
}

// Valid reports whether the sample carries a usable number.
func (s Sample) Valid() bool {
	return !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// Float returns a pointer to v, for building Config literals.
func Float(v float64) *float64 {
	return &v
}
