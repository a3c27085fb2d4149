package threshold

import (
	"fmt"
	"math"

	"dbwarden/internal/checks"
)

// ValidateWrite checks cfg before it is persisted and normalizes its check type.
//
// A write is rejected, never clamped, when:
//   - the scope is malformed or deeper than the check allows
//   - the mode is unknown
//   - an enabled row misses a threshold, or a non-enabled row carries one
//   - the check type is not supported by the check
//   - warning is not strictly less severe than critical
//   - a threshold is negative, not finite, or a percentage outside 0..100
func ValidateWrite(def checks.Definition, cfg *Config) error {
	if cfg.Reference != def.Reference {
		return fmt.Errorf("%w: config for %s validated against %s", ErrInvalidThresholds, cfg.Reference, def.Reference)
	}

	if err := cfg.Scope.Validate(); err != nil {
		return err
	}
	if cfg.Scope.Level() > def.MaxLevel {
		return fmt.Errorf("%w: %s cannot be configured below %s level (got %s)",
			ErrInvalidScope, def.Reference, def.MaxLevel, cfg.Scope)
	}

	switch cfg.Mode {
	case ModeEnabled:
		if cfg.CheckType == "" {
			cfg.CheckType = def.DefaultCheckType()
		}
		if reason := checkThresholds(def, *cfg); reason != "" {
			return fmt.Errorf("%w: %s at %s: %s", ErrInvalidThresholds, cfg.Reference, cfg.Scope, reason)
		}
		return nil
	case ModeInherit, ModeDisabled:
		if cfg.Warning != nil || cfg.Critical != nil {
			return fmt.Errorf("%w: %s rows cannot carry thresholds", ErrInvalidThresholds, cfg.Mode)
		}
		if cfg.CheckType != "" && !def.Supports(cfg.CheckType) {
			return fmt.Errorf("%w: %s does not support check type %q", ErrInvalidThresholds, def.Reference, cfg.CheckType)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidThresholds, cfg.Mode)
	}
}

// ValidateStored checks a row read back from the store.
//
// A row of any mode is corrupt below the check's deepest level, and an enabled
// row must carry usable thresholds. It returns a *CorruptConfigError describing
// the first problem, or nil. An empty check type is read as the check's default.
func ValidateStored(def checks.Definition, cfg Config) error {
	if cfg.Scope.Level() > def.MaxLevel {
		return &CorruptConfigError{
			Reference: cfg.Reference,
			Scope:     cfg.Scope,
			Reason:    fmt.Sprintf("%s cannot be configured below %s level", def.Reference, def.MaxLevel),
		}
	}
	if cfg.Mode != ModeEnabled {
		return nil
	}
	if cfg.CheckType == "" {
		cfg.CheckType = def.DefaultCheckType()
	}
	if reason := checkThresholds(def, cfg); reason != "" {
		return &CorruptConfigError{Reference: cfg.Reference, Scope: cfg.Scope, Reason: reason}
	}
	return nil
}

// Normalize fills defaults a stored enabled row may omit.
func Normalize(def checks.Definition, cfg Config) Config {
	if cfg.Mode == ModeEnabled && cfg.CheckType == "" {
		cfg.CheckType = def.DefaultCheckType()
	}
	return cfg
}

// checkThresholds returns why an enabled config is unusable, or "".
func checkThresholds(def checks.Definition, cfg Config) string {
	if !def.Supports(cfg.CheckType) {
		return fmt.Sprintf("check type %q is not supported", cfg.CheckType)
	}
	if cfg.Warning == nil || cfg.Critical == nil {
		return "enabled without both warning and critical thresholds"
	}

	warning, critical := *cfg.Warning, *cfg.Critical
	for _, v := range []float64{warning, critical} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "thresholds must be finite"
		}
		if v < 0 {
			return fmt.Sprintf("threshold %g is negative", v)
		}
		if cfg.CheckType == checks.Percent && v > 100 {
			return fmt.Sprintf("percentage threshold %g exceeds 100", v)
		}
	}

	if !def.Worse(critical, warning) {
		if def.Sense == checks.DescendingBad {
			return fmt.Sprintf("warning %g must be greater than critical %g", warning, critical)
		}
		return fmt.Sprintf("warning %g must be less than critical %g", warning, critical)
	}
	return ""
}
