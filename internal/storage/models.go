// Package storage persists threshold configuration rows.
//
// All models use struct tags to define database column mappings.
//
// Struct Tag Format:
//
//	`db:"column_name,constraint1,constraint2"`
//
// Supported constraints:
//   - primary: Marks the field as part of the primary key
//   - not_null: Adds NOT NULL constraint
package storage

import (
	"strings"
	"time"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
	"dbwarden/internal/threshold"
)

// thresholdsTable is the table holding ThresholdRow records.
const thresholdsTable = "thresholds"

// ThresholdRow is one persisted threshold configuration.
//
// A level that does not apply is stored as -1 in its id column, so a Root row
// is (-1, -1, -1) and a database row is (instance, database, -1).
type ThresholdRow struct {
	// Reference is the check kind this row configures
	Reference string `db:"reference,primary,not_null"`

	// InstanceID is the SQL Server instance or -1
	InstanceID int32 `db:"instance_id,primary,not_null"`

	// DatabaseID is the database within the instance or -1
	DatabaseID int32 `db:"database_id,primary,not_null"`

	// FileID is the data space within the database or -1
	FileID int32 `db:"file_id,primary,not_null"`

	// Mode is inherit, enabled or disabled
	Mode string `db:"mode,not_null"`

	// CheckType is the measurement unit; NULL means the check's default
	CheckType *string `db:"check_type"`

	// WarningThreshold is NULL unless Mode is enabled
	WarningThreshold *float64 `db:"warning_threshold"`

	// CriticalThreshold is NULL unless Mode is enabled
	CriticalThreshold *float64 `db:"critical_threshold"`

	// UpdatedAt is the time of the last write
	UpdatedAt time.Time `db:"updated_at,not_null"`
}

// TableName returns the table name for ThresholdRow.
func (ThresholdRow) TableName() string {
	return thresholdsTable
}

// newThresholdRow converts a validated config for storage.
func newThresholdRow(cfg threshold.Config, now time.Time) ThresholdRow {
	i, d, f := cfg.Scope.Columns()
	row := ThresholdRow{
		Reference:         string(cfg.Reference),
		InstanceID:        i,
		DatabaseID:        d,
		FileID:            f,
		Mode:              string(cfg.Mode),
		WarningThreshold:  cfg.Warning,
		CriticalThreshold: cfg.Critical,
		UpdatedAt:         now,
	}
	if cfg.CheckType != "" {
		ct := string(cfg.CheckType)
		row.CheckType = &ct
	}
	return row
}

// Key returns the row's scope, or an error for an impossible column shape.
func (r ThresholdRow) Key() (scope.Key, error) {
	return scope.FromColumns(r.InstanceID, r.DatabaseID, r.FileID)
}

// Config converts a stored row into a threshold config.
//
// The mode is normalized but not checked; resolution reports unknown modes as corrupt.
// An impossible scope column shape is returned as *threshold.CorruptConfigError.
func (r ThresholdRow) Config() (threshold.Config, error) {
	ref := checks.Reference(r.Reference)

	key, err := r.Key()
	if err != nil {
		return threshold.Config{}, &threshold.CorruptConfigError{
			Reference: ref,
			Scope:     scope.Root(),
			Reason:    err.Error(),
		}
	}

	cfg := threshold.Config{
		Reference: ref,
		Scope:     key,
		Mode:      threshold.Mode(strings.ToLower(strings.TrimSpace(r.Mode))),
		Warning:   r.WarningThreshold,
		Critical:  r.CriticalThreshold,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CheckType != nil {
		cfg.CheckType = checks.CheckType(strings.TrimSpace(*r.CheckType))
	}
	return cfg, nil
}
