// Package metrics exposes Postsack's import-phase Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postsack_import_rows_total",
		Help: "Total number of email rows successfully inserted by an import.",
	})

	ImportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postsack_import_errors_total",
		Help: "Total number of per-message parse/read errors recorded during an import.",
	})

	ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "postsack_import_duration_seconds",
		Help:    "Wall-clock duration of a complete import run.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
	})

	QueriesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postsack_queries_total",
		Help: "Total queries served by the Query Link, by kind.",
	}, []string{"kind"})
)

// RecordImport records one completed import run's tallies.
func RecordImport(inserted, errors int, durationSeconds float64) {
	RowsImported.Add(float64(inserted))
	ImportErrors.Add(float64(errors))
	ImportDuration.Observe(durationSeconds)
}

// RecordQuery increments the per-kind query counter.
func RecordQuery(kind string) {
	QueriesServed.WithLabelValues(kind).Inc()
}
