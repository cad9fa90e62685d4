package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetshelf_posts_processed_total",
			Help: "Posts run through the pipeline, by outcome",
		},
		[]string{"outcome"}, // "persisted", "failed"
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetshelf_stage_failures_total",
			Help: "Per-post failures, by pipeline stage",
		},
		[]string{"stage"},
	)

	BooksShelved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skeetshelf_books_shelved_total",
			Help: "Posts saved together with an extracted book",
		},
	)

	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skeetshelf_inference_duration_seconds",
			Help:    "Latency of outbound model calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"capability", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skeetshelf_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	StoreConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetshelf_store_conflicts_total",
			Help: "Uniqueness conflicts resolved by re-lookup",
		},
		[]string{"table"},
	)

	DigestDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetshelf_digest_messages_total",
			Help: "Digest messages sent to the chat, by status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skeetshelf_run_duration_seconds",
			Help:    "Wall time of a full batch run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// ObserveInference records a model call that started at start.
func ObserveInference(capability string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	InferenceDuration.WithLabelValues(capability, status).Observe(time.Since(start).Seconds())
}
