package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dbwarden/internal/checks"
	"dbwarden/internal/metrics"
	"dbwarden/internal/scope"
	"dbwarden/internal/threshold"

	"github.com/rs/zerolog/log"
)

// Op names a kind of threshold write.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Change describes one committed threshold write.
type Change struct {
	Reference checks.Reference `json:"reference"`
	Scope     scope.Key        `json:"scope"`
	Mode      threshold.Mode   `json:"mode"`
	Op        Op               `json:"op"`
	At        time.Time        `json:"at"`
}

// ThresholdStore reads and writes threshold rows.
//
// It implements core.ChainReader. All methods are safe for concurrent use.
type ThresholdStore struct {
	repo     *Repository[ThresholdRow]
	registry *checks.Registry
	now      func() time.Time

	mu    sync.RWMutex
	hooks []func(Change)
}

// NewThresholdStore creates a store over s validating writes against registry.
func NewThresholdStore(s *Storage, registry *checks.Registry) *ThresholdStore {
	return &ThresholdStore{
		repo:     NewRepository[ThresholdRow](s.orm),
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers fn to run after every committed write.
// Hooks run synchronously on the writing goroutine.
func (ts *ThresholdStore) OnChange(fn func(Change)) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.hooks = append(ts.hooks, fn)
}

func (ts *ThresholdStore) notify(c Change) {
	ts.mu.RLock()
	hooks := ts.hooks
	ts.mu.RUnlock()

	for _, fn := range hooks {
		fn(c)
	}
}

// scopeCondition matches the row stored at key.
const scopeCondition = "instance_id = ? AND database_id = ? AND file_id = ?"

func scopeArgs(key scope.Key) []any {
	i, d, f := key.Columns()
	return []any{i, d, f}
}

// GetChain returns the rows of ref stored at any key of chain, read with a
// single statement. Keys without a row are absent from the map.
func (ts *ThresholdStore) GetChain(ctx context.Context, ref checks.Reference, chain []scope.Key) (map[scope.Key]threshold.Config, error) {
	out := make(map[scope.Key]threshold.Config, len(chain))
	if len(chain) == 0 {
		return out, nil
	}

	conditions := make([]string, len(chain))
	var args []any
	for i, key := range chain {
		conditions[i] = "(" + scopeCondition + ")"
		args = append(args, scopeArgs(key)...)
	}

	start := time.Now()
	rows, err := ts.repo.Select().
		Where("reference = ?", string(ref)).
		Where(strings.Join(conditions, " OR "), args...).
		All(ctx)
	metrics.StoreReadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", threshold.ErrStoreUnavailable, err)
	}

	for _, row := range rows {
		cfg, err := row.Config()
		if err != nil {
			// Cannot happen for rows matched by an exact scope tuple.
			return nil, err
		}
		out[cfg.Scope] = cfg
	}
	return out, nil
}

// GetConfig returns the row of ref stored exactly at key, or nil when absent.
func (ts *ThresholdStore) GetConfig(ctx context.Context, ref checks.Reference, key scope.Key) (*threshold.Config, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	row, err := ts.repo.First(ctx, "reference = ? AND "+scopeCondition, append([]any{string(ref)}, scopeArgs(key)...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", threshold.ErrStoreUnavailable, err)
	}

	cfg, err := row.Config()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListConfigs returns the rows of ref ordered from Root downwards, or every
// row when ref is empty. Rows with an impossible scope shape are skipped.
func (ts *ThresholdStore) ListConfigs(ctx context.Context, ref checks.Reference) ([]threshold.Config, error) {
	q := ts.repo.Select().OrderBy("reference, instance_id, database_id, file_id")
	if ref != "" {
		q = q.Where("reference = ?", string(ref))
	}

	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", threshold.ErrStoreUnavailable, err)
	}

	out := make([]threshold.Config, 0, len(rows))
	for _, row := range rows {
		cfg, err := row.Config()
		if err != nil {
			log.Warn().Err(err).Str("reference", row.Reference).Msg("Skipping threshold row with invalid scope")
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

// UpsertConfig validates cfg and writes it, replacing any row at the same
// (reference, scope). It returns the stored config.
//
// Errors:
//   - ErrUnknownCheck for a reference missing from the check table
//   - ErrInvalidScope and ErrInvalidThresholds from validation
//   - ErrStoreUnavailable wrapping database failures
func (ts *ThresholdStore) UpsertConfig(ctx context.Context, cfg threshold.Config) (threshold.Config, error) {
	def, ok := ts.registry.Lookup(cfg.Reference)
	if !ok {
		return threshold.Config{}, fmt.Errorf("%w: %s", threshold.ErrUnknownCheck, cfg.Reference)
	}
	if err := threshold.ValidateWrite(def, &cfg); err != nil {
		return threshold.Config{}, err
	}

	cfg.UpdatedAt = ts.now()
	row := newThresholdRow(cfg, cfg.UpdatedAt)
	if err := validateThresholdRow(row); err != nil {
		return threshold.Config{}, fmt.Errorf("%w: %w", threshold.ErrInvalidThresholds, err)
	}

	if err := ts.repo.Upsert(ctx, row); err != nil {
		return threshold.Config{}, fmt.Errorf("%w: %w", threshold.ErrStoreUnavailable, err)
	}

	metrics.StoreWritesTotal.WithLabelValues(string(cfg.Reference), string(OpUpsert)).Inc()
	log.Info().
		Str("reference", string(cfg.Reference)).
		Stringer("scope", cfg.Scope).
		Str("mode", string(cfg.Mode)).
		Msg("Threshold stored")

	ts.notify(Change{Reference: cfg.Reference, Scope: cfg.Scope, Mode: cfg.Mode, Op: OpUpsert, At: cfg.UpdatedAt})
	return cfg, nil
}

// DeleteConfig removes the row of ref at key, reverting that scope to inherit.
// It reports whether a row existed.
func (ts *ThresholdStore) DeleteConfig(ctx context.Context, ref checks.Reference, key scope.Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}

	n, err := ts.repo.DeleteWhere(ctx, "reference = ? AND "+scopeCondition, append([]any{string(ref)}, scopeArgs(key)...)...)
	if err != nil {
		return false, fmt.Errorf("%w: %w", threshold.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return false, nil
	}

	metrics.StoreWritesTotal.WithLabelValues(string(ref), string(OpDelete)).Inc()
	log.Info().
		Str("reference", string(ref)).
		Stringer("scope", key).
		Msg("Threshold deleted")

	ts.notify(Change{Reference: ref, Scope: key, Mode: threshold.ModeInherit, Op: OpDelete, At: ts.now()})
	return true, nil
}
