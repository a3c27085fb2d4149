package core

import (
	"dbwarden/internal/checks"
	"dbwarden/internal/metrics"
	"dbwarden/internal/status"
	"dbwarden/internal/threshold"
)

// Classifier turns a sample and its effective configuration into a status.
type Classifier struct {
	registry *checks.Registry
}

// NewClassifier creates a classifier consulting registry for comparison sense.
func NewClassifier(registry *checks.Registry) *Classifier {
	return &Classifier{registry: registry}
}

// Classify returns the status of sample under eff. It has no side effects
// beyond metrics, so equal inputs always give equal outputs.
//
// NotApplicable is returned when the check is disabled, when the sample and
// configuration belong to different references, when the sample is measured in
// a check type other than the one in effect, or when the value is not a finite
// number.
//
// Ascending-bad checks: value >= critical is Critical, else value >= warning is
// Warning, else OK. Descending-bad checks mirror this with <=.
func (c *Classifier) Classify(eff threshold.Effective, sample threshold.Sample) status.Status {
	st := c.classify(eff, sample)
	metrics.ClassificationsTotal.WithLabelValues(string(sample.Reference), st.String()).Inc()
	return st
}

func (c *Classifier) classify(eff threshold.Effective, sample threshold.Sample) status.Status {
	if !eff.Enabled || eff.Reference != sample.Reference || !sample.Valid() {
		return status.NotApplicable
	}

	def, ok := c.registry.Lookup(sample.Reference)
	if !ok {
		return status.NotApplicable
	}

	sampleType := sample.CheckType
	if sampleType == "" {
		sampleType = def.DefaultCheckType()
	}
	effType := eff.CheckType
	if effType == "" {
		effType = def.DefaultCheckType()
	}
	if sampleType != effType {
		return status.NotApplicable
	}

	return compare(def.Sense, sample.Value, eff.Warning, eff.Critical)
}

// compare applies the inclusive threshold ladder for sense.
func compare(sense checks.Sense, value, warning, critical float64) status.Status {
	if sense == checks.DescendingBad {
		switch {
		case value <= critical:
			return status.Critical
		case value <= warning:
			return status.Warning
		default:
			return status.OK
		}
	}

	switch {
	case value >= critical:
		return status.Critical
	case value >= warning:
		return status.Warning
	default:
		return status.OK
	}
}
