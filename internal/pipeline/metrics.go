package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's prometheus collectors.
type Metrics struct {
	// JobsTotal counts finished jobs by terminal status.
	JobsTotal *prometheus.CounterVec

	// LeavesExtracted counts leaf rules produced by successful extractions.
	LeavesExtracted prometheus.Counter

	// ExtractSeconds observes parse-and-extract latency by source format.
	ExtractSeconds *prometheus.HistogramVec

	// PublishRetries counts retried pathstore writes.
	PublishRetries prometheus.Counter

	// QueueDepth is the number of jobs waiting for a worker.
	QueueDepth prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "treerule",
				Name:      "jobs_total",
				Help:      "Extraction jobs by terminal status.",
			},
			[]string{"status"},
		),
		LeavesExtracted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "treerule",
				Name:      "leaves_extracted_total",
				Help:      "Leaf rules produced by successful extractions.",
			},
		),
		ExtractSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "treerule",
				Name:      "extract_duration_seconds",
				Help:      "Time to parse a tree and build its leaf rules.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"format"},
		),
		PublishRetries: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "treerule",
				Name:      "publish_retries_total",
				Help:      "Pathstore writes retried after a transient failure.",
			},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "treerule",
				Name:      "queue_depth",
				Help:      "Jobs waiting for a worker.",
			},
		),
	}
}
