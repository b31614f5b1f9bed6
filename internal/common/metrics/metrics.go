// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "place_provider_calls_total",
			Help: "Place provider calls by provider, operation and outcome",
		},
		[]string{"provider", "op", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "place_provider_call_duration_seconds",
			Help:    "Latency of place provider calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"provider", "op"},
	)

	DetailCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "place_detail_cache_lookups_total",
			Help: "Place detail cache lookups by result",
		},
		[]string{"result"},
	)

	DiscoveryCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_candidates_returned",
			Help:    "Number of candidates returned per discovery run",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		},
		[]string{"category", "source"},
	)

	DiscoveryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_fallbacks_total",
			Help: "Discovery runs served from the fallback index",
		},
		[]string{"category"},
	)

	MatchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_results_total",
			Help: "Match results emitted by confidence label",
		},
		[]string{"confidence"},
	)
)

// Outcome labels for ProviderCalls.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// ObserveProviderCall records one provider call started at start.
func ObserveProviderCall(provider, op string, start time.Time, err error, results int) {
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case results == 0:
		outcome = OutcomeEmpty
	}
	ProviderCalls.WithLabelValues(provider, op, outcome).Inc()
	ProviderCallDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

// TrackJob marks a job of taskType active and returns a func that records
// its completion or failure.
func TrackJob(taskType string) func(errorCode string) {
	start := time.Now()
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return func(errorCode string) {
		WorkerJobsActive.WithLabelValues(taskType).Dec()
		WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		if errorCode != "" {
			WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
			return
		}
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	}
}
