package threshold

import (
	"errors"
	"fmt"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
)

var (
	// ErrInvalidScope is returned for a scope key outside the four valid shapes,
	// or a write below the check's deepest configurable level.
	ErrInvalidScope = scope.ErrInvalidScope

	// ErrUnknownCheck is returned for a reference missing from the check table.
	ErrUnknownCheck = errors.New("unknown check reference")

	// ErrInvalidThresholds is returned when a write violates the threshold rules.
	ErrInvalidThresholds = errors.New("invalid thresholds")

	// ErrCorruptConfig is returned when a stored enabled row cannot be applied.
	ErrCorruptConfig = errors.New("corrupt threshold config")

	// ErrStoreUnavailable wraps transient failures reading the threshold store.
	// Resolution is a pure read and safe to retry.
	ErrStoreUnavailable = errors.New("threshold store unavailable")
)

// CorruptConfigError identifies a stored row that failed read-time validation.
// Callers should treat the scope as disabled and report the error.
type CorruptConfigError struct {
	Reference checks.Reference
	Scope     scope.Key
	Reason    string
}

// Error implements the error interface.
func (e *CorruptConfigError) Error() string {
	return fmt.Sprintf("%s: %s at %s: %s", ErrCorruptConfig, e.Reference, e.Scope, e.Reason)
}

// Unwrap lets errors.Is match ErrCorruptConfig.
func (e *CorruptConfigError) Unwrap() error {
	return ErrCorruptConfig
}
