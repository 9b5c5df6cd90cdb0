package settings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/revkeep/pkg/retention"
)

// MemoryBackend implements Backend in memory. State is lost on exit.
type MemoryBackend struct {
	mu          sync.RWMutex
	policies    map[string]retention.Policy
	settings    map[string]string
	lastExecute time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		policies: make(map[string]retention.Policy),
		settings: make(map[string]string),
	}
}

func (m *MemoryBackend) GetPolicy(ctx context.Context, contentType string) (*retention.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", retention.ErrPolicyNotFound, contentType)
	}
	return &p, nil
}

func (m *MemoryBackend) SavePolicy(ctx context.Context, policy *retention.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policy.ContentType] = *policy
	return nil
}

func (m *MemoryBackend) DeletePolicy(ctx context.Context, contentType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.policies[contentType]
	delete(m.policies, contentType)
	return ok, nil
}

func (m *MemoryBackend) ListPolicies(ctx context.Context) ([]*retention.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*retention.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentType < out[j].ContentType })
	return out, nil
}

func (m *MemoryBackend) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *MemoryBackend) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryBackend) LastExecute(ctx context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastExecute, nil
}

func (m *MemoryBackend) SetLastExecute(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastExecute = t
	return nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}
