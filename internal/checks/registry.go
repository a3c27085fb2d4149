// Package checks holds the static policy table for every threshold check kind.
//
// Each check kind is identified by a Reference and carries the properties that
// are fixed by what it measures rather than by where it is configured:
//
//   - Sense: whether a larger or a smaller value is worse
//   - CheckTypes: the measurement units the check can be configured in
//   - MaxLevel: the deepest scope the check may be configured at
//
// The table ships with the binary. It is never persisted and never edited at
// runtime; resolution and classification consult it by reference.
//
// Example usage:
//
//	registry := checks.Default()
//	def, ok := registry.Lookup(checks.FreeSpace)
package checks

import (
	"fmt"
	"slices"
	"sort"

	"dbwarden/internal/scope"

	"github.com/rs/zerolog/log"
)

// Reference names a check kind. Distinct references are independent.
type Reference string

// Built-in check references.
const (
	FreeSpace         Reference = "FreeSpace"
	PctMaxSize        Reference = "PctMaxSize"
	FilegroupAutogrow Reference = "FilegroupAutogrow"
	FileSnapshotAge   Reference = "FileSnapshotAge"
	CollectionAge     Reference = "CollectionAge"
)

// Sense is the direction in which a metric value gets worse.
type Sense int

const (
	// AscendingBad checks get worse as the value grows (age, percent used).
	AscendingBad Sense = iota
	// DescendingBad checks get worse as the value shrinks (percent free, MB remaining).
	DescendingBad
)

// String returns the sense name.
func (s Sense) String() string {
	if s == DescendingBad {
		return "descending"
	}
	return "ascending"
}

// MarshalText implements encoding.TextMarshaler.
func (s Sense) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckType is the measurement unit a check is evaluated in.
type CheckType string

// Supported check types. The single-letter values match the discriminators the
// dashboard repository has always persisted.
const (
	Percent   CheckType = "%"
	Megabytes CheckType = "M"
	Minutes   CheckType = "mins"
)

// Definition describes one check kind.
type Definition struct {
	// Reference is the stable check name
	Reference Reference `json:"reference"`

	// Description is a one-line human-readable summary
	Description string `json:"description"`

	// Sense is the comparison direction used by classification
	Sense Sense `json:"sense"`

	// CheckTypes lists the units the check supports; the first is the default
	CheckTypes []CheckType `json:"check_types"`

	// MaxLevel is the deepest scope a threshold row may be written at
	MaxLevel scope.Level `json:"-"`
}

// DefaultCheckType returns the unit used when none is given.
func (d Definition) DefaultCheckType() CheckType {
	if len(d.CheckTypes) == 0 {
		return ""
	}
	return d.CheckTypes[0]
}

// Supports reports whether the check can be measured in t.
func (d Definition) Supports(t CheckType) bool {
	return slices.Contains(d.CheckTypes, t)
}

// Worse reports whether value a is strictly worse than value b for this check.
func (d Definition) Worse(a, b float64) bool {
	if d.Sense == DescendingBad {
		return a < b
	}
	return a > b
}

// Registry maps references to their definitions.
type Registry struct {
	defs map[Reference]Definition
}

// NewRegistry builds a registry from the given definitions.
//
// Returns an error when a definition has no reference, no check types, or a
// reference that was already registered.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[Reference]Definition, len(defs))}
	for _, def := range defs {
		if err := r.register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// register adds one definition to the registry.
func (r *Registry) register(def Definition) error {
	if def.Reference == "" {
		return fmt.Errorf("check definition has no reference")
	}
	if len(def.CheckTypes) == 0 {
		return fmt.Errorf("check %s declares no check types", def.Reference)
	}
	if _, exists := r.defs[def.Reference]; exists {
		return fmt.Errorf("check %s registered twice", def.Reference)
	}
	r.defs[def.Reference] = def
	log.Debug().Str("reference", string(def.Reference)).Str("sense", def.Sense.String()).Msg("Check registered")
	return nil
}

// Lookup returns the definition for ref.
func (r *Registry) Lookup(ref Reference) (Definition, bool) {
	def, ok := r.defs[ref]
	return def, ok
}

// References returns all registered references in sorted order.
func (r *Registry) References() []Reference {
	refs := make([]Reference, 0, len(r.defs))
	for ref := range r.defs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// Definitions returns all definitions ordered by reference.
func (r *Registry) Definitions() []Definition {
	refs := r.References()
	defs := make([]Definition, 0, len(refs))
	for _, ref := range refs {
		defs = append(defs, r.defs[ref])
	}
	return defs
}

// builtin is the table shipped with the engine.
var builtin = []Definition{
	{
		Reference:   FreeSpace,
		Description: "Free space remaining in a filegroup or file",
		Sense:       DescendingBad,
		CheckTypes:  []CheckType{Percent, Megabytes},
		MaxLevel:    scope.LevelFile,
	},
	{
		Reference:   PctMaxSize,
		Description: "Percent of the configured maximum file size in use",
		Sense:       AscendingBad,
		CheckTypes:  []CheckType{Percent},
		MaxLevel:    scope.LevelFile,
	},
	{
		Reference:   FilegroupAutogrow,
		Description: "Autogrow headroom left before a filegroup reaches its maximum size",
		Sense:       DescendingBad,
		CheckTypes:  []CheckType{Percent},
		MaxLevel:    scope.LevelFile,
	},
	{
		Reference:   FileSnapshotAge,
		Description: "Minutes since file sizes were last collected",
		Sense:       AscendingBad,
		CheckTypes:  []CheckType{Minutes},
		MaxLevel:    scope.LevelDatabase,
	},
	{
		Reference:   CollectionAge,
		Description: "Minutes since an instance's collections last reported",
		Sense:       AscendingBad,
		CheckTypes:  []CheckType{Minutes},
		MaxLevel:    scope.LevelInstance,
	},
}

// Default returns a registry holding the built-in check table.
func Default() *Registry {
	r, err := NewRegistry(builtin...)
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return r
}
