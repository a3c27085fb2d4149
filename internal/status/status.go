// Package status defines the ordered classification result shared by every
// display and alerting consumer, and the policy for combining several of them.
package status

import (
	"fmt"
	"strings"
)

// Status is the outcome of classifying a metric sample.
//
// Values are totally ordered NotApplicable < OK < Warning < Critical for
// aggregation. NotApplicable means "no opinion", not "best": it only wins when
// nothing else has an opinion.
type Status int

// Status values in severity order.
const (
	NotApplicable Status = iota
	OK
	Warning
	Critical
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case NotApplicable:
		return "NA"
	case OK:
		return "OK"
	case Warning:
		return "Warning"
	case Critical:
		return "Critical"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Parse converts a display name back to a Status. Matching is case-insensitive.
func Parse(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "na", "n/a", "notapplicable", "not_applicable":
		return NotApplicable, nil
	case "ok":
		return OK, nil
	case "warning":
		return Warning, nil
	case "critical":
		return Critical, nil
	default:
		return NotApplicable, fmt.Errorf("unknown status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < NotApplicable || s > Critical {
		return nil, fmt.Errorf("cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// Aggregate returns the most severe status present, or NotApplicable for no input.
//
// Aggregate is associative and commutative, so statuses may be rolled up in
// stages (per filegroup, then per database) with the same result as one flat call.
func Aggregate(statuses ...Status) Status {
	worst := NotApplicable
	for _, s := range statuses {
		worst = Worst(worst, s)
	}
	return worst
}

// Summary counts statuses by value.
type Summary struct {
	Total         int `json:"total"`
	NotApplicable int `json:"na"`
	OK            int `json:"ok"`
	Warning       int `json:"warning"`
	Critical      int `json:"critical"`
}

// Summarize counts the given statuses.
func Summarize(statuses []Status) Summary {
	s := Summary{Total: len(statuses)}
	for _, st := range statuses {
		switch st {
		case NotApplicable:
			s.NotApplicable++
		case OK:
			s.OK++
		case Warning:
			s.Warning++
		case Critical:
			s.Critical++
		}
	}
	return s
}

// Overall returns the aggregate status represented by the summary.
func (s Summary) Overall() Status {
	switch {
	case s.Critical > 0:
		return Critical
	case s.Warning > 0:
		return Warning
	case s.OK > 0:
		return OK
	default:
		return NotApplicable
	}
}
