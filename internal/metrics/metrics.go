// Package metrics provides Prometheus instrumentation for the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // promauto collectors are registered once per process.
var (
	// AttemptLatency tracks per-provider attempt latency in seconds.
	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_attempt_latency_seconds",
			Help:    "Latency of individual provider attempts in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "feature", "outcome"},
	)

	// AttemptsTotal counts provider attempts by outcome.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_attempts_total",
			Help: "Total provider attempts by outcome.",
		},
		[]string{"provider", "feature", "outcome"},
	)

	// UnitUsageTotal counts input/output units consumed per provider.
	UnitUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_unit_usage_total",
			Help: "Total input/output units consumed.",
		},
		[]string{"provider", "feature", "direction"}, // direction: "input" or "output"
	)

	// CacheHitsTotal counts result cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_cache_hits_total",
			Help: "Total result cache hits.",
		},
	)

	// CacheLookupsTotal counts result cache lookups.
	CacheLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_cache_lookups_total",
			Help: "Total result cache lookups.",
		},
	)
)

// ObserveAttempt records one provider attempt.
func ObserveAttempt(provider, feature, outcome string, seconds float64) {
	AttemptLatency.WithLabelValues(provider, feature, outcome).Observe(seconds)
	AttemptsTotal.WithLabelValues(provider, feature, outcome).Inc()
}

// AddUsage records unit consumption for one attempt.
func AddUsage(provider, feature string, inputUnits, outputUnits int) {
	if inputUnits > 0 {
		UnitUsageTotal.WithLabelValues(provider, feature, "input").Add(float64(inputUnits))
	}
	if outputUnits > 0 {
		UnitUsageTotal.WithLabelValues(provider, feature, "output").Add(float64(outputUnits))
	}
}
