package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention/executor"
	"mercator-hq/revkeep/pkg/retention/settings"
)

// allContentTypes labels runs that span every policy, such as scheduled runs.
const allContentTypes = "all"

// otherContentType replaces content type labels beyond the cardinality limit.
const otherContentType = "other"

// Collector owns the revkeep Prometheus registry. It implements
// executor.Sink so it can be attached to any run.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runMetrics    *RunMetrics
	policyMetrics *PolicyMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ executor.Sink = (*Collector)(nil)

// NewCollector creates a collector. If registry is nil a new registry is
// created; the process-wide default registry is never used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = config.DefaultDurationBuckets
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(500),
	}

	c.runMetrics = NewRunMetrics(cfg, registry)
	c.policyMetrics = NewPolicyMetrics(cfg, registry)

	return c
}

// Progress implements executor.Sink.
func (c *Collector) Progress(p executor.Progress) {
	if !c.config.Enabled {
		return
	}

	c.runMetrics.RecordProgress(p)
}

// Finish implements executor.Sink.
func (c *Collector) Finish(s *executor.Summary) {
	if !c.config.Enabled {
		return
	}

	c.runMetrics.RecordRun(c.contentTypeLabel(s.ContentType), s)
	if !s.CompletedAt.IsZero() {
		c.policyMetrics.SetLastExecute(s.CompletedAt)
	}
}

// RecordCandidates records the number of candidates a plan found for a
// content type.
func (c *Collector) RecordCandidates(contentType string, n int) {
	if !c.config.Enabled {
		return
	}

	c.policyMetrics.SetCandidates(c.contentTypeLabel(contentType), n)
}

// ObserveSettings refreshes the gauges derived from the persisted state.
func (c *Collector) ObserveSettings(ctx context.Context, m *settings.Manager) error {
	if !c.config.Enabled {
		return nil
	}

	policies, err := m.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list policies: %w", err)
	}
	c.policyMetrics.SetConfigured(len(policies))

	last, err := m.LastExecute(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last execute time: %w", err)
	}
	c.policyMetrics.SetLastExecute(last)

	return nil
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) contentTypeLabel(contentType string) string {
	if contentType == "" {
		return allContentTypes
	}
	if !c.cardinalityLimiter.Allow(contentType) {
		return otherContentType
	}
	return contentType
}

// CardinalityLimiter caps the number of distinct label values a collector
// will emit.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label: either it was seen
// before or the limit has not been reached yet.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
