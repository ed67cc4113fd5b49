package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctifeed_feed_entries_total",
			Help: "Feed entries seen, by filter decision",
		},
		[]string{"decision"},
	)

	FeedFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctifeed_feed_failures_total",
			Help: "Feed sources that could not be fetched or parsed",
		},
		[]string{"source"},
	)

	ImageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctifeed_image_outcomes_total",
			Help: "Image resolution outcomes",
		},
		[]string{"outcome"},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctifeed_persistence_failures_total",
			Help: "Best-effort persistence operations that failed",
		},
		[]string{"operation"},
	)

	RetentionDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctifeed_retention_deletions_total",
			Help: "Records removed by the retention pass",
		},
		[]string{"collection"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctifeed_ingestion_cycle_duration_seconds",
			Help:    "Wall time of a full ingestion cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctifeed_ingestion_cycles_skipped_total",
			Help: "Ingestion cycles skipped because another run held the guard",
		},
	)

	ReadFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctifeed_read_fallbacks_total",
			Help: "Read paths answered from local snapshots instead of the record store",
		},
		[]string{"stage"},
	)
)
