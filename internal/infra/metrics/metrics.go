// Package metrics exposes Prometheus counters and histograms for the
// intake pipeline, instrumented the way arkiv-ingestion wraps its own
// worker loop and HTTP mux.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IntakeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_intake_total",
			Help: "Webhook intake attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_store_duration_seconds",
			Help:    "Latency of the store write, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "outcome"},
	)

	DedupCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_dedup_cache_entries",
			Help: "Current number of entries in the in-memory dedup cache",
		},
	)

	RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_retry_attempts_total",
			Help: "Retry attempts made by the retry policy",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(IntakeTotal, StoreDuration, DedupCacheSize, RetryAttempts)
}

// Outcome labels used by the intake handler.
const (
	OutcomeStored   = "stored"
	OutcomeDup      = "duplicate"
	OutcomeAuthFail = "auth_fail"
	OutcomeBadInput = "bad_input"
	OutcomeStoreErr = "store_fail"
)

// ObserveStore records the duration of a store attempt (successes and
// permanent failures alike) against a start time captured by the caller.
func ObserveStore(provider, outcome string, start time.Time) {
	StoreDuration.WithLabelValues(provider, outcome).Observe(time.Since(start).Seconds())
}
