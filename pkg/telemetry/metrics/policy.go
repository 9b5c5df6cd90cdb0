package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/revkeep/pkg/config"
)

// PolicyMetrics tracks the persisted retention state.
//
// Metrics:
//   - revkeep_policies_configured: number of content types with a policy
//   - revkeep_pending_candidates: candidate revisions found by the last plan, per content type
//   - revkeep_last_execute_timestamp_seconds: the stored last execute time
type PolicyMetrics struct {
	configured  prometheus.Gauge
	candidates  *prometheus.GaugeVec
	lastExecute prometheus.Gauge
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		configured: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "policies_configured",
				Help:      "Number of content types with a retention policy",
			},
		),

		candidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "pending_candidates",
				Help:      "Candidate revisions found by the last plan",
			},
			[]string{"content_type"},
		),

		lastExecute: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "last_execute_timestamp_seconds",
				Help:      "Unix time of the last completed deletion run (0 if never)",
			},
		),
	}

	registry.MustRegister(
		pm.configured,
		pm.candidates,
		pm.lastExecute,
	)

	return pm
}

// SetConfigured sets the number of configured policies.
func (pm *PolicyMetrics) SetConfigured(n int) {
	pm.configured.Set(float64(n))
}

// SetCandidates sets the pending candidate count for a content type.
func (pm *PolicyMetrics) SetCandidates(contentType string, n int) {
	pm.candidates.WithLabelValues(contentType).Set(float64(n))
}

// SetLastExecute sets the last execute gauge. The zero time reports 0.
func (pm *PolicyMetrics) SetLastExecute(t time.Time) {
	if t.IsZero() {
		pm.lastExecute.Set(0)
		return
	}
	pm.lastExecute.Set(float64(t.Unix()))
}
