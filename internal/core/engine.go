package core

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
	"dbwarden/internal/status"
	"dbwarden/internal/threshold"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine combines resolution and classification for live samples.
type Engine struct {
	resolver   *Resolver
	classifier *Classifier
	workers    int
}

// Result is the outcome of evaluating one sample.
type Result struct {
	Sample    threshold.Sample    `json:"sample"`
	Effective threshold.Effective `json:"effective"`
	Status    status.Status       `json:"status"`
	Err       error               `json:"-"`
}

// Report is the outcome of evaluating a batch of samples.
type Report struct {
	Results []Result       `json:"results"`
	Status  status.Status  `json:"status"`
	Summary status.Summary `json:"summary"`
}

// NewEngine creates a new evaluation engine.
//
// Parameters:
//   - store: Threshold row source
//   - registry: Static check table
//   - workers: Maximum concurrent evaluations in EvaluateAll; <= 0 uses GOMAXPROCS
//
// Returns:
//   - *Engine: Initialized engine instance
func NewEngine(store ChainReader, registry *checks.Registry, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		resolver:   NewResolver(store, registry),
		classifier: NewClassifier(registry),
		workers:    workers,
	}
}

// Resolver returns the engine's resolver.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Classifier returns the engine's classifier.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// Evaluate resolves the configuration in effect at the sample's scope and
// classifies the sample against it.
//
// A corrupt row yields a NotApplicable result together with the
// *CorruptConfigError. Any other resolution error leaves Status NotApplicable.
func (e *Engine) Evaluate(ctx context.Context, sample threshold.Sample) (Result, error) {
	res := Result{Sample: sample, Status: status.NotApplicable}

	eff, err := e.resolver.Resolve(ctx, sample.Reference, sample.Scope)
	res.Effective = eff
	if err != nil {
		res.Err = err
		return res, err
	}

	res.Status = e.classifier.Classify(eff, sample)
	return res, nil
}

// EvaluateAll evaluates samples concurrently and aggregates their statuses.
//
// Results keep the order of samples. A failing sample does not abort the
// batch; its error is kept on its Result and its status is NotApplicable.
// Only context cancellation stops the batch early, in which case the
// remaining results carry the context error.
func (e *Engine) EvaluateAll(ctx context.Context, samples []threshold.Sample) Report {
	start := time.Now()
	results := make([]Result, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, sample := range samples {
		if err := gctx.Err(); err != nil {
			results[i] = Result{Sample: sample, Status: status.NotApplicable, Err: err}
			continue
		}
		g.Go(func() error {
			res, err := e.Evaluate(gctx, sample)
			if err != nil {
				log.Debug().
					Err(err).
					Str("reference", string(sample.Reference)).
					Stringer("scope", sample.Scope).
					Msg("Sample evaluation failed")
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	statuses := make([]status.Status, len(results))
	failed := 0
	for i, res := range results {
		statuses[i] = res.Status
		if res.Err != nil {
			failed++
		}
	}

	report := Report{
		Results: results,
		Status:  status.Aggregate(statuses...),
		Summary: status.Summarize(statuses),
	}

	log.Debug().
		Int("samples", len(samples)).
		Int("failed", failed).
		Str("status", report.Status.String()).
		Dur("duration", time.Since(start)).
		Msg("Batch evaluated")

	return report
}

// Rollup returns the aggregated status of every scope that contains at least
// one result, Root included. A scope's status is the worst status among the
// results at or below it.
func Rollup(results []Result) map[scope.Key]status.Status {
	out := make(map[scope.Key]status.Status)
	for _, res := range results {
		for _, k := range res.Sample.Scope.Ancestors() {
			out[k] = status.Worst(out[k], res.Status)
		}
	}
	return out
}

// String implements fmt.Stringer for logging.
func (r Result) String() string {
	return fmt.Sprintf("%s@%s=%g:%s", r.Sample.Reference, r.Sample.Scope, r.Sample.Value, r.Status)
}
