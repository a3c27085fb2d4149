// Package core provides the threshold resolution and status classification engine.
//
// The engine is responsible for:
//   - Resolving the effective threshold configuration of a check at a scope
//   - Classifying metric samples against an effective configuration
//   - Evaluating batches of samples and rolling statuses up the hierarchy
//
// Nothing in this package mutates shared state. Resolvers, classifiers and
// engines can be shared by any number of goroutines without coordination.
package core

import (
	"context"
	"errors"
	"fmt"

	"dbwarden/internal/checks"
	"dbwarden/internal/metrics"
	"dbwarden/internal/scope"
	"dbwarden/internal/threshold"

	"github.com/rs/zerolog/log"
)

// ChainReader reads the stored rows of one check along an ancestor chain.
//
// Implementations must return the rows from a single consistent read. A key
// missing from the result has no row, which is the ordinary inherit case.
type ChainReader interface {
	GetChain(ctx context.Context, ref checks.Reference, chain []scope.Key) (map[scope.Key]threshold.Config, error)
}

// Resolver computes effective threshold configurations.
type Resolver struct {
	store    ChainReader
	registry *checks.Registry
}

// NewResolver creates a resolver reading rows from store.
//
// Parameters:
//   - store: Threshold row source (possibly cached)
//   - registry: Static check table
//
// Returns:
//   - *Resolver: Initialized resolver
func NewResolver(store ChainReader, registry *checks.Registry) *Resolver {
	return &Resolver{store: store, registry: registry}
}

// Resolve returns the effective configuration of ref at key.
//
// The walk starts at key and moves towards Root:
//   - a disabled row ends the walk with a disabled result
//   - an enabled row ends the walk with that row's thresholds
//   - an inherit row, or no row, moves to the parent
//
// Reaching Root without a decision yields the unconfigured (disabled) result.
// Only rows on the path from key to Root are read.
//
// Errors:
//   - ErrInvalidScope for a malformed key
//   - ErrUnknownCheck for a reference missing from the check table
//   - ErrStoreUnavailable wrapping the store failure
//   - *CorruptConfigError, returned together with a disabled result resolved at
//     the corrupt scope
func (r *Resolver) Resolve(ctx context.Context, ref checks.Reference, key scope.Key) (threshold.Effective, error) {
	if err := key.Validate(); err != nil {
		return threshold.Effective{}, err
	}

	def, ok := r.registry.Lookup(ref)
	if !ok {
		return threshold.Effective{}, fmt.Errorf("%w: %s", threshold.ErrUnknownCheck, ref)
	}

	chain := key.Ancestors()
	rows, err := r.store.GetChain(ctx, ref, chain)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues(string(ref), "error").Inc()
		if errors.Is(err, threshold.ErrStoreUnavailable) {
			return threshold.Effective{}, err
		}
		return threshold.Effective{}, fmt.Errorf("%w: %w", threshold.ErrStoreUnavailable, err)
	}

	eff, err := walk(def, chain, rows)
	r.observe(ref, key, eff, err)
	return eff, err
}

// walk applies the inheritance rules to rows read for chain.
func walk(def checks.Definition, chain []scope.Key, rows map[scope.Key]threshold.Config) (threshold.Effective, error) {
	for _, k := range chain {
		row, ok := rows[k]
		if !ok {
			continue
		}

		row.Scope = k
		row = threshold.Normalize(def, row)
		if err := threshold.ValidateStored(def, row); err != nil {
			return threshold.DisabledAt(def.Reference, k), err
		}

		switch row.Mode {
		case threshold.ModeDisabled:
			return threshold.DisabledAt(def.Reference, k), nil
		case threshold.ModeEnabled:
			return threshold.EnabledFrom(row), nil
		case threshold.ModeInherit:
			continue
		default:
			return threshold.DisabledAt(def.Reference, k), &threshold.CorruptConfigError{
				Reference: def.Reference,
				Scope:     k,
				Reason:    fmt.Sprintf("unknown mode %q", row.Mode),
			}
		}
	}
	return threshold.Unconfigured(def.Reference), nil
}

// observe records the outcome of one resolution.
func (r *Resolver) observe(ref checks.Reference, key scope.Key, eff threshold.Effective, err error) {
	outcome := "unconfigured"
	switch {
	case err != nil:
		outcome = "corrupt"
		log.Warn().
			Err(err).
			Str("reference", string(ref)).
			Stringer("scope", key).
			Stringer("resolved_at", eff.ResolvedAt).
			Msg("Corrupt threshold config treated as disabled")
	case eff.Enabled:
		outcome = "enabled"
	case eff.Configured:
		outcome = "disabled"
	}
	metrics.ResolutionsTotal.WithLabelValues(string(ref), outcome).Inc()

	log.Debug().
		Str("reference", string(ref)).
		Stringer("scope", key).
		Str("outcome", outcome).
		Stringer("resolved_at", eff.ResolvedAt).
		Msg("Threshold resolved")
}
