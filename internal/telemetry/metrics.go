// Package telemetry holds the process-wide Prometheus counters and the
// OpenTelemetry tracer used by indexing and history ingestion.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// filesParsedTotal counts walked source files.
	// Labels: status (ok, failed)
	filesParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeviz",
		Subsystem: "index",
		Name:      "files_parsed_total",
		Help:      "Source files handed to the syntax walker, by outcome",
	}, []string{"status"})

	// edgesResolvedTotal counts function dependency edges produced.
	// Labels: policy (local, global)
	edgesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeviz",
		Subsystem: "index",
		Name:      "edges_resolved_total",
		Help:      "Function dependency edges produced by the resolver",
	}, []string{"policy"})

	// commitsIngestedTotal counts commit records offered to the store.
	// Labels: status (inserted, skipped)
	commitsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeviz",
		Subsystem: "history",
		Name:      "commits_total",
		Help:      "Commit records offered to the store, by outcome",
	}, []string{"status"})

	// stageDurationSeconds measures pipeline stages.
	// Labels: stage (discover, walk, resolve, store, history)
	stageDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codeviz",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of each pipeline stage",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"stage"})
)

// RecordFileParsed counts one walked file; a non-nil err counts as failed.
func RecordFileParsed(err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	filesParsedTotal.WithLabelValues(status).Inc()
}

// RecordEdges adds n resolved edges under the given policy.
func RecordEdges(policy string, n int) {
	edgesResolvedTotal.WithLabelValues(policy).Add(float64(n))
}

// RecordCommit counts one commit upsert.
func RecordCommit(inserted bool) {
	status := "inserted"
	if !inserted {
		status = "skipped"
	}
	commitsIngestedTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long a stage took since start.
func ObserveStage(stage string, start time.Time) {
	stageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteMetrics dumps every registered metric to path in the Prometheus
// text format, for node_exporter's textfile collector.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("telemetry: write metrics %s: %w", path, err)
	}
	return nil
}
