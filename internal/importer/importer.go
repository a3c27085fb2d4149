// Package importer loads threshold configuration from YAML documents.
//
// A document lists rows under a top-level thresholds key:
//
//	thresholds:
//	  - reference: FreeSpace
//	    scope: root
//	    mode: enabled
//	    warning: 20
//	    critical: 10
//	  - reference: FreeSpace
//	    instance_id: 3
//	    database_id: 7
//	    file_id: -1
//	    warning: null
//	    critical: null
//
// Rows may name their scope with a scope string or with the legacy id
// columns, where -1 means the level does not apply. When mode is omitted it is
// inferred the way the legacy repository stored it: inherit: true is inherit,
// two null thresholds are disabled, and two set thresholds are enabled.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
	"dbwarden/internal/threshold"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Writer persists validated threshold rows.
type Writer interface {
	UpsertConfig(ctx context.Context, cfg threshold.Config) (threshold.Config, error)
}

// Document is the top level of an import file.
type Document struct {
	Thresholds []Row `yaml:"thresholds"`
}

// Row is one threshold entry of an import file.
type Row struct {
	Reference  string   `yaml:"reference"`
	Scope      *string  `yaml:"scope"`
	InstanceID *int32   `yaml:"instance_id"`
	DatabaseID *int32   `yaml:"database_id"`
	FileID     *int32   `yaml:"file_id"`
	Mode       string   `yaml:"mode"`
	CheckType  string   `yaml:"check_type"`
	Warning    *float64 `yaml:"warning"`
	Critical   *float64 `yaml:"critical"`
	Inherit    bool     `yaml:"inherit"`

	// line is the source line of the row, for error messages
	line int
}

// UnmarshalYAML records the row's source line.
func (r *Row) UnmarshalYAML(node *yaml.Node) error {
	type plain Row
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Row(p)
	r.line = node.Line
	return nil
}

// Result summarizes an import.
type Result struct {
	Imported int            `json:"imported"`
	ByMode   map[string]int `json:"by_mode"`
}

// RowError reports the row that stopped an import.
type RowError struct {
	Index int // zero-based position in the thresholds list
	Line  int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("threshold %d (line %d): %v", e.Index, e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ErrAmbiguousRow is returned for a legacy row without a mode that sets only
// one of its two thresholds.
var ErrAmbiguousRow = errors.New("exactly one threshold set without an explicit mode")

// Parse decodes an import document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse import document: %w", err)
	}
	return &doc, nil
}

// Config converts the row into a threshold config without validating thresholds.
func (r Row) Config() (threshold.Config, error) {
	key, err := r.key()
	if err != nil {
		return threshold.Config{}, err
	}

	mode, err := r.mode()
	if err != nil {
		return threshold.Config{}, err
	}

	cfg := threshold.Config{
		Reference: checks.Reference(r.Reference),
		Scope:     key,
		Mode:      mode,
		CheckType: checks.CheckType(r.CheckType),
	}
	if mode == threshold.ModeEnabled {
		cfg.Warning = r.Warning
		cfg.Critical = r.Critical
	}
	return cfg, nil
}

// key resolves the row's scope from the scope string or the legacy columns.
func (r Row) key() (scope.Key, error) {
	legacy := r.InstanceID != nil || r.DatabaseID != nil || r.FileID != nil
	if r.Scope != nil {
		if legacy {
			return scope.Key{}, fmt.Errorf("%w: both scope and id columns given", scope.ErrInvalidScope)
		}
		return scope.Parse(*r.Scope)
	}

	column := func(v *int32) int32 {
		if v == nil {
			return scope.Unset
		}
		return *v
	}
	return scope.FromColumns(column(r.InstanceID), column(r.DatabaseID), column(r.FileID))
}

// mode returns the explicit mode or infers it from the legacy shape.
func (r Row) mode() (threshold.Mode, error) {
	if r.Mode != "" {
		if r.Inherit {
			return "", fmt.Errorf("%w: both mode and inherit given", threshold.ErrInvalidThresholds)
		}
		return threshold.ParseMode(r.Mode)
	}

	switch {
	case r.Inherit:
		return threshold.ModeInherit, nil
	case r.Warning == nil && r.Critical == nil:
		return threshold.ModeDisabled, nil
	case r.Warning != nil && r.Critical != nil:
		return threshold.ModeEnabled, nil
	default:
		return "", fmt.Errorf("%w: %w", threshold.ErrInvalidThresholds, ErrAmbiguousRow)
	}
}

// Import writes every row of doc through w, in order.
//
// The import stops at the first row that fails to convert or write and
// returns a *RowError for it; rows before it stay written.
func Import(ctx context.Context, w Writer, doc *Document) (Result, error) {
	res := Result{ByMode: make(map[string]int)}

	for i, row := range doc.Thresholds {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		cfg, err := row.Config()
		if err != nil {
			return res, &RowError{Index: i, Line: row.line, Err: err}
		}

		stored, err := w.UpsertConfig(ctx, cfg)
		if err != nil {
			return res, &RowError{Index: i, Line: row.line, Err: err}
		}

		res.Imported++
		res.ByMode[string(stored.Mode)]++
	}

	log.Info().
		Int("imported", res.Imported).
		Interface("by_mode", res.ByMode).
		Msg("Thresholds imported")

	return res, nil
}

// ImportReader parses r and imports it through w.
func ImportReader(ctx context.Context, w Writer, r io.Reader) (Result, error) {
	doc, err := Parse(r)
	if err != nil {
		return Result{}, err
	}
	return Import(ctx, w, doc)
}
