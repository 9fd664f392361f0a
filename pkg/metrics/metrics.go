// Package metrics provides Prometheus metrics for pipeline runs.
//
// Counters cover runs by terminal status, rows moved per phase, and
// component errors; a histogram tracks run duration. All metrics register
// on the default registry via promauto so an embedding program only needs
// to expose promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts completed pipeline runs by terminal status.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freight_pipeline_runs_total",
		Help: "Total pipeline runs by terminal status",
	}, []string{"status"})

	// RowsProcessed counts rows moved through each pipeline phase.
	RowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freight_rows_processed_total",
		Help: "Rows processed by pipeline phase",
	}, []string{"phase"})

	// ComponentErrors counts per-component failures recorded during runs.
	ComponentErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freight_component_errors_total",
		Help: "Component failures recorded during pipeline runs",
	})

	// RunDuration tracks wall-clock run duration in seconds.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "freight_run_duration_seconds",
		Help:    "Pipeline run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// RecordRun records the outcome of one pipeline run.
func RecordRun(status string, durationSeconds float64, extractionRows, transformationRows, loadingRows, errorCount int) {
	PipelineRuns.WithLabelValues(status).Inc()
	RowsProcessed.WithLabelValues("extract").Add(float64(extractionRows))
	RowsProcessed.WithLabelValues("transform").Add(float64(transformationRows))
	RowsProcessed.WithLabelValues("load").Add(float64(loadingRows))
	ComponentErrors.Add(float64(errorCount))
	RunDuration.Observe(durationSeconds)
}
