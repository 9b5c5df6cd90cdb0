package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention/executor"
)

// RunMetrics tracks deletion runs.
//
// Metrics:
//   - revkeep_runs_total: finished runs by content type, state and mode
//   - revkeep_run_duration_seconds: run duration histogram
//   - revkeep_revisions_deleted_total: revisions deleted (or that would have been, in dry runs)
//   - revkeep_revisions_skipped_total: revisions skipped because they were gone or current
//   - revkeep_chunks_total: chunks processed
//   - revkeep_run_progress_ratio: completion of the active run, 0 when idle
//   - revkeep_last_run_timestamp_seconds: end time of the last finished run
type RunMetrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	deletedTotal  *prometheus.CounterVec
	skippedTotal  *prometheus.CounterVec
	chunksTotal   *prometheus.CounterVec
	progress      prometheus.Gauge
	lastRunSecond *prometheus.GaugeVec
}

// NewRunMetrics creates and registers run metrics with the provided registry.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "runs_total",
				Help:      "Total number of deletion runs by final state",
			},
			[]string{"content_type", "state", "dry_run"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of deletion runs in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"content_type", "state"},
		),

		deletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "revisions_deleted_total",
				Help:      "Total number of revisions deleted",
			},
			[]string{"content_type", "dry_run"},
		),

		skippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "revisions_skipped_total",
				Help:      "Total number of revisions skipped during deletion",
			},
			[]string{"content_type"},
		),

		chunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "chunks_total",
				Help:      "Total number of deletion chunks processed",
			},
			[]string{"content_type"},
		),

		progress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "run_progress_ratio",
				Help:      "Completion ratio of the active run (0 when no run is active)",
			},
		),

		lastRunSecond: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time at which the last run finished",
			},
			[]string{"state"},
		),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.runDuration,
		rm.deletedTotal,
		rm.skippedTotal,
		rm.chunksTotal,
		rm.progress,
		rm.lastRunSecond,
	)

	return rm
}

// RecordProgress updates the progress gauge.
func (rm *RunMetrics) RecordProgress(p executor.Progress) {
	rm.progress.Set(p.Percentage / 100)
}

// RecordRun records a finished run under the given content type label.
func (rm *RunMetrics) RecordRun(contentType string, s *executor.Summary) {
	state := s.State.String()
	dryRun := strconv.FormatBool(s.DryRun)

	rm.runsTotal.WithLabelValues(contentType, state, dryRun).Inc()
	rm.runDuration.WithLabelValues(contentType, state).Observe(s.Duration.Seconds())
	rm.deletedTotal.WithLabelValues(contentType, dryRun).Add(float64(s.Deleted))
	rm.skippedTotal.WithLabelValues(contentType).Add(float64(s.Skipped))
	rm.chunksTotal.WithLabelValues(contentType).Add(float64(s.Chunks))

	end := s.StartedAt.Add(s.Duration)
	rm.lastRunSecond.WithLabelValues(state).Set(float64(end.Unix()))
	rm.progress.Set(0)
}
