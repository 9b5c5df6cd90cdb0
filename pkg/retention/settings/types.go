package settings

import (
	"context"
	"time"

	"mercator-hq/revkeep/pkg/retention"
)

// Setting keys used by the Manager.
const (
	KeyFrequency       = "frequency"
	KeyRevisionsPerRun = "revisions_per_run"
	keyCeilingPrefix   = "ceiling."
)

// PolicyStore persists retention policies keyed by content type.
// Implementations must be safe for concurrent use.
type PolicyStore interface {
	// GetPolicy returns the policy or retention.ErrPolicyNotFound.
	GetPolicy(ctx context.Context, contentType string) (*retention.Policy, error)

	// SavePolicy replaces the policy of its content type wholesale.
	SavePolicy(ctx context.Context, policy *retention.Policy) error

	// DeletePolicy removes a policy and reports whether one existed.
	DeletePolicy(ctx context.Context, contentType string) (bool, error)

	// ListPolicies returns every policy ordered by content type.
	ListPolicies(ctx context.Context) ([]*retention.Policy, error)
}

// SettingsStore persists global string settings.
type SettingsStore interface {
	// GetSetting returns the value and whether it was set.
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// RunState persists the completion time of the last non-dry run.
type RunState interface {
	// LastExecute returns the zero time when no run has completed.
	LastExecute(ctx context.Context) (time.Time, error)
	SetLastExecute(ctx context.Context, t time.Time) error
}

// Backend bundles the three stores in one persistence unit.
type Backend interface {
	PolicyStore
	SettingsStore
	RunState
	Close() error
}
