package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyanchor_parse_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	})

	CookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyanchor_cook_seconds",
		Help:    "Time spent cooking the concrete tree.",
		Buckets: prometheus.DefBuckets,
	})

	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyanchor_resolve_seconds",
		Help:    "Time spent resolving FQNs and collecting anchors.",
		Buckets: prometheus.DefBuckets,
	})

	AnchorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyanchor_anchors_total",
		Help: "Total number of anchors emitted, by anchor kind.",
	}, []string{"kind"})

	FilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyanchor_files_total",
		Help: "Total number of files processed, by outcome.",
	}, []string{"status"})

	DegenerateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyanchor_degenerate_files_total",
		Help: "Total number of files rejected as semantically degenerate.",
	})

	DegenerateOccurrencesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyanchor_degenerate_occurrences_total",
		Help: "Total number of binding-position occurrences tolerated as plain values.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyanchor_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherReindexTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyanchor_watcher_reindex_total",
		Help: "Total number of files re-indexed by watch mode.",
	})
)
