package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mercator-hq/revkeep/pkg/retention"
)

// Defaults are the values returned when the backend has no stored value.
type Defaults struct {
	Frequency       string
	RevisionsPerRun int
	Ceilings        map[string]retention.Ceiling
}

// DefaultDefaults returns the factory settings: everyday runs, 50
// revisions per run and 12 month ceilings.
func DefaultDefaults() *Defaults {
	return &Defaults{
		Frequency:       retention.FrequencyEveryday,
		RevisionsPerRun: 50,
		Ceilings: map[string]retention.Ceiling{
			retention.FieldMinimumAgeToDelete: {MaxNumber: 12, Unit: retention.UnitMonths},
			retention.FieldWhenToDelete:       {MaxNumber: 12, Unit: retention.UnitMonths},
		},
	}
}

// Manager enforces the global rules around policies and settings on top of
// a Backend.
type Manager struct {
	backend  Backend
	defaults *Defaults
	logger   *slog.Logger
}

// NewManager creates a manager. A nil defaults uses DefaultDefaults.
func NewManager(backend Backend, defaults *Defaults) *Manager {
	if defaults == nil {
		defaults = DefaultDefaults()
	}
	return &Manager{
		backend:  backend,
		defaults: defaults,
		logger:   slog.Default().With("component", "retention.settings"),
	}
}

// Backend returns the underlying backend.
func (m *Manager) Backend() Backend {
	return m.backend
}

// GetPolicy returns the policy of a content type.
func (m *Manager) GetPolicy(ctx context.Context, contentType string) (*retention.Policy, error) {
	return m.backend.GetPolicy(ctx, contentType)
}

// ListPolicies returns every stored policy ordered by content type.
func (m *Manager) ListPolicies(ctx context.Context) ([]*retention.Policy, error) {
	return m.backend.ListPolicies(ctx)
}

// SavePolicy validates the policy against its own invariants and the global
// ceilings, then replaces the stored policy wholesale. Time criteria with an
// empty unit take the unit of their ceiling.
func (m *Manager) SavePolicy(ctx context.Context, policy *retention.Policy) error {
	p := *policy
	for _, field := range []string{retention.FieldMinimumAgeToDelete, retention.FieldWhenToDelete} {
		ceiling, err := m.Ceiling(ctx, field)
		if err != nil {
			return err
		}
		age, _ := p.TimeCriterion(field)
		if age.Unit == "" {
			age.Unit = ceiling.Unit
			p.SetTimeCriterion(field, age)
		}
		if !ceiling.Allows(age) {
			return retention.NewPolicyError(p.ContentType, field,
				fmt.Sprintf("%s exceeds the maximum of %s", age, ceiling))
		}
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if err := m.backend.SavePolicy(ctx, &p); err != nil {
		return err
	}
	*policy = p

	m.logger.Info("retention policy saved",
		"content_type", p.ContentType,
		"minimum_revisions_to_keep", p.MinimumRevisionsToKeep,
		"minimum_age_to_delete", p.MinimumAgeToDelete.String(),
		"when_to_delete", p.WhenToDelete.String(),
	)
	return nil
}

// DeletePolicy removes a policy and reports whether one existed.
func (m *Manager) DeletePolicy(ctx context.Context, contentType string) (bool, error) {
	existed, err := m.backend.DeletePolicy(ctx, contentType)
	if err != nil {
		return false, err
	}
	if existed {
		m.logger.Info("retention policy deleted", "content_type", contentType)
	}
	return existed, nil
}

// SeedPolicies saves the given policies for content types that have none
// yet. It returns the seeded content types.
func (m *Manager) SeedPolicies(ctx context.Context, policies []retention.Policy) ([]string, error) {
	var seeded []string
	for i := range policies {
		p := policies[i]
		_, err := m.backend.GetPolicy(ctx, p.ContentType)
		if err == nil {
			continue
		}
		if !errors.Is(err, retention.ErrPolicyNotFound) {
			return seeded, err
		}
		if err := m.SavePolicy(ctx, &p); err != nil {
			return seeded, fmt.Errorf("failed to seed policy %s: %w", p.ContentType, err)
		}
		seeded = append(seeded, p.ContentType)
	}
	return seeded, nil
}

// Ceiling returns the global ceiling of a time field.
func (m *Manager) Ceiling(ctx context.Context, field string) (retention.Ceiling, error) {
	if !retention.ValidTimeField(field) {
		return retention.Ceiling{}, fmt.Errorf("unknown time field %q", field)
	}
	v, ok, err := m.backend.GetSetting(ctx, keyCeilingPrefix+field)
	if err != nil {
		return retention.Ceiling{}, err
	}
	if !ok {
		if c, ok := m.defaults.Ceilings[field]; ok {
			return c, nil
		}
		return retention.Ceiling{MaxNumber: 12, Unit: retention.UnitMonths}, nil
	}
	return parseCeiling(v)
}

func parseCeiling(v string) (retention.Ceiling, error) {
	parts := strings.Fields(v)
	if len(parts) != 2 {
		return retention.Ceiling{}, fmt.Errorf("invalid stored ceiling %q", v)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return retention.Ceiling{}, fmt.Errorf("invalid stored ceiling %q: %w", v, err)
	}
	unit, err := retention.ParseUnit(parts[1])
	if err != nil {
		return retention.Ceiling{}, fmt.Errorf("invalid stored ceiling %q: %w", v, err)
	}
	return retention.Ceiling{MaxNumber: n, Unit: unit}, nil
}

// SetCeiling stores the global ceiling of a time field and clamps every
// policy above the new maximum. It returns the clamped content types.
func (m *Manager) SetCeiling(ctx context.Context, field string, ceiling retention.Ceiling) ([]string, error) {
	if !retention.ValidTimeField(field) {
		return nil, fmt.Errorf("unknown time field %q", field)
	}
	if err := ceiling.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ceiling for %s: %w", field, err)
	}

	value := fmt.Sprintf("%d %s", ceiling.MaxNumber, ceiling.Unit)
	if err := m.backend.SetSetting(ctx, keyCeilingPrefix+field, value); err != nil {
		return nil, err
	}
	m.logger.Info("global ceiling updated", "field", field, "ceiling", ceiling.String())

	return m.clamp(ctx, field, ceiling)
}

// LowerGlobalCeiling sets the maximum of a time field, keeping its unit,
// and clamps the policies above it. Each policy is saved independently; the
// failures are joined and never block the other content types.
func (m *Manager) LowerGlobalCeiling(ctx context.Context, field string, newMaximum int) ([]string, error) {
	current, err := m.Ceiling(ctx, field)
	if err != nil {
		return nil, err
	}
	current.MaxNumber = newMaximum
	return m.SetCeiling(ctx, field, current)
}

func (m *Manager) clamp(ctx context.Context, field string, ceiling retention.Ceiling) ([]string, error) {
	policies, err := m.backend.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	var (
		clamped []string
		errs    []error
	)
	for _, p := range policies {
		previous, _ := p.TimeCriterion(field)
		if ceiling.Allows(previous) {
			continue
		}
		age := ceiling.Clamp(previous)
		p.SetTimeCriterion(field, age)

		if err := m.backend.SavePolicy(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("failed to clamp %s of %s: %w", field, p.ContentType, err))
			continue
		}
		clamped = append(clamped, p.ContentType)
		m.logger.Info("retention policy clamped",
			"content_type", p.ContentType,
			"field", field,
			"from", previous.String(),
			"to", age.String(),
		)
	}
	return clamped, errors.Join(errs...)
}

// Frequency returns the scheduled-run frequency key.
func (m *Manager) Frequency(ctx context.Context) (string, error) {
	v, ok, err := m.backend.GetSetting(ctx, KeyFrequency)
	if err != nil {
		return "", err
	}
	if !ok {
		return m.defaults.Frequency, nil
	}
	return v, nil
}

// SetFrequency stores a validated frequency key.
func (m *Manager) SetFrequency(ctx context.Context, key string) error {
	if err := retention.ValidateFrequency(key); err != nil {
		return err
	}
	return m.backend.SetSetting(ctx, KeyFrequency, key)
}

// RevisionsPerRun returns how many revisions a scheduled run may delete.
func (m *Manager) RevisionsPerRun(ctx context.Context) (int, error) {
	v, ok, err := m.backend.GetSetting(ctx, KeyRevisionsPerRun)
	if err != nil {
		return 0, err
	}
	if !ok {
		return m.defaults.RevisionsPerRun, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid stored %s %q: %w", KeyRevisionsPerRun, v, err)
	}
	return n, nil
}

// SetRevisionsPerRun stores the per-run quantity. n must be at least 1.
func (m *Manager) SetRevisionsPerRun(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("revisions per run must be >= 1, got %d", n)
	}
	return m.backend.SetSetting(ctx, KeyRevisionsPerRun, strconv.Itoa(n))
}

// LastExecute returns the completion time of the last non-dry run.
func (m *Manager) LastExecute(ctx context.Context) (time.Time, error) {
	return m.backend.LastExecute(ctx)
}

// SetLastExecute records the completion time of a non-dry run.
func (m *Manager) SetLastExecute(ctx context.Context, t time.Time) error {
	return m.backend.SetLastExecute(ctx, t)
}
