// Package metrics declares the Prometheus collectors exported by dbwarden.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwarden_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbwarden_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Resolution metrics
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwarden_resolutions_total",
			Help: "Total number of threshold resolutions",
		},
		[]string{"reference", "outcome"}, // outcome: enabled, disabled, unconfigured, corrupt, error
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwarden_classifications_total",
			Help: "Total number of classified samples by resulting status",
		},
		[]string{"reference", "status"},
	)

	// Store metrics
	StoreReadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dbwarden_store_chain_read_duration_seconds",
			Help:    "Time taken to read a threshold ancestor chain",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwarden_store_writes_total",
			Help: "Total number of threshold writes",
		},
		[]string{"reference", "op"}, // op: upsert, delete
	)

	// Cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwarden_chain_cache_requests_total",
			Help: "Threshold chain cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)

	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbwarden_chain_cache_invalidations_total",
			Help: "Total number of chain cache entries dropped after writes",
		},
	)

	// Bus metrics
	BusEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwarden_bus_events_total",
			Help: "Threshold change events published or received",
		},
		[]string{"direction", "status"}, // direction: out, in
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbwarden_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
