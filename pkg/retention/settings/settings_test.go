package settings

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"mercator-hq/revkeep/pkg/retention"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLiteBackend(SQLiteBackendConfig{
		DBPath: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
}

func TestBackend_Policies(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.GetPolicy(ctx, "article"); !errors.Is(err, retention.ErrPolicyNotFound) {
				t.Fatalf("GetPolicy() error = %v, want ErrPolicyNotFound", err)
			}

			want := retention.Policy{
				ContentType:            "article",
				MinimumRevisionsToKeep: 3,
				MinimumAgeToDelete:     retention.Age{Amount: 6, Unit: retention.UnitMonths},
				WhenToDelete:           retention.Age{Amount: 2, Unit: retention.UnitWeeks},
			}
			if err := b.SavePolicy(ctx, &want); err != nil {
				t.Fatalf("SavePolicy() failed: %v", err)
			}
			if err := b.SavePolicy(ctx, &retention.Policy{ContentType: "page", MinimumRevisionsToKeep: 1}); err != nil {
				t.Fatalf("SavePolicy() failed: %v", err)
			}

			got, err := b.GetPolicy(ctx, "article")
			if err != nil {
				t.Fatalf("GetPolicy() failed: %v", err)
			}
			if *got != want {
				t.Errorf("GetPolicy() = %+v, want %+v", *got, want)
			}

			// Replace wholesale.
			want.WhenToDelete = retention.Age{}
			if err := b.SavePolicy(ctx, &want); err != nil {
				t.Fatalf("SavePolicy() failed: %v", err)
			}
			got, _ = b.GetPolicy(ctx, "article")
			if got.WhenToDelete.Enabled() {
				t.Errorf("WhenToDelete = %+v, want disabled", got.WhenToDelete)
			}

			list, err := b.ListPolicies(ctx)
			if err != nil {
				t.Fatalf("ListPolicies() failed: %v", err)
			}
			if len(list) != 2 || list[0].ContentType != "article" || list[1].ContentType != "page" {
				t.Errorf("ListPolicies() = %+v, want [article page]", list)
			}

			existed, err := b.DeletePolicy(ctx, "page")
			if err != nil || !existed {
				t.Fatalf("DeletePolicy(page) = %v, %v, want true, nil", existed, err)
			}
			existed, err = b.DeletePolicy(ctx, "page")
			if err != nil || existed {
				t.Fatalf("DeletePolicy(page) again = %v, %v, want false, nil", existed, err)
			}
		})
	}
}

func TestBackend_SettingsAndLastExecute(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := b.GetSetting(ctx, KeyFrequency); err != nil || ok {
				t.Fatalf("GetSetting() = _, %v, %v, want unset", ok, err)
			}
			if err := b.SetSetting(ctx, KeyFrequency, "every_week"); err != nil {
				t.Fatalf("SetSetting() failed: %v", err)
			}
			if err := b.SetSetting(ctx, KeyFrequency, "every_hour"); err != nil {
				t.Fatalf("SetSetting() failed: %v", err)
			}
			v, ok, err := b.GetSetting(ctx, KeyFrequency)
			if err != nil || !ok || v != "every_hour" {
				t.Fatalf("GetSetting() = %q, %v, %v, want every_hour", v, ok, err)
			}

			last, err := b.LastExecute(ctx)
			if err != nil {
				t.Fatalf("LastExecute() failed: %v", err)
			}
			if !last.IsZero() {
				t.Errorf("LastExecute() = %v, want zero", last)
			}

			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			if err := b.SetLastExecute(ctx, at); err != nil {
				t.Fatalf("SetLastExecute() failed: %v", err)
			}
			last, err = b.LastExecute(ctx)
			if err != nil {
				t.Fatalf("LastExecute() failed: %v", err)
			}
			if !last.Equal(at) {
				t.Errorf("LastExecute() = %v, want %v", last, at)
			}
		})
	}
}

func TestSQLiteBackend_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	b, err := NewSQLiteBackend(SQLiteBackendConfig{DBPath: path})
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	if err := b.SavePolicy(ctx, &retention.Policy{ContentType: "article", MinimumRevisionsToKeep: 5}); err != nil {
		t.Fatalf("SavePolicy() failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}

	b, err = NewSQLiteBackend(SQLiteBackendConfig{DBPath: path})
	if err != nil {
		t.Fatalf("NewSQLiteBackend() reopen failed: %v", err)
	}
	defer b.Close()

	p, err := b.GetPolicy(ctx, "article")
	if err != nil {
		t.Fatalf("GetPolicy() failed: %v", err)
	}
	if p.MinimumRevisionsToKeep != 5 {
		t.Errorf("MinimumRevisionsToKeep = %d, want 5", p.MinimumRevisionsToKeep)
	}
}

func TestNewSQLiteBackend_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteBackend(SQLiteBackendConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func days(n int) retention.Age {
	return retention.Age{Amount: n, Unit: retention.UnitDays}
}

func TestManager_LowerGlobalCeiling(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(b, &Defaults{
				Frequency:       retention.FrequencyEveryday,
				RevisionsPerRun: 50,
				Ceilings: map[string]retention.Ceiling{
					retention.FieldMinimumAgeToDelete: {MaxNumber: 365, Unit: retention.UnitDays},
					retention.FieldWhenToDelete:       {MaxNumber: 365, Unit: retention.UnitDays},
				},
			})

			for _, p := range []retention.Policy{
				{ContentType: "article", MinimumRevisionsToKeep: 3, WhenToDelete: days(60)},
				{ContentType: "page", MinimumRevisionsToKeep: 3, WhenToDelete: days(15)},
				{ContentType: "blog", MinimumRevisionsToKeep: 3, MinimumAgeToDelete: days(90)},
			} {
				if err := m.SavePolicy(ctx, &p); err != nil {
					t.Fatalf("SavePolicy(%s) failed: %v", p.ContentType, err)
				}
			}

			clamped, err := m.LowerGlobalCeiling(ctx, retention.FieldWhenToDelete, 30)
			if err != nil {
				t.Fatalf("LowerGlobalCeiling() failed: %v", err)
			}
			if !reflect.DeepEqual(clamped, []string{"article"}) {
				t.Errorf("clamped = %v, want [article]", clamped)
			}

			article, _ := m.GetPolicy(ctx, "article")
			if article.WhenToDelete.Amount != 30 {
				t.Errorf("article when_to_delete = %d, want 30", article.WhenToDelete.Amount)
			}
			page, _ := m.GetPolicy(ctx, "page")
			if page.WhenToDelete.Amount != 15 {
				t.Errorf("page when_to_delete = %d, want 15", page.WhenToDelete.Amount)
			}
			blog, _ := m.GetPolicy(ctx, "blog")
			if blog.MinimumAgeToDelete.Amount != 90 {
				t.Errorf("blog minimum_age_to_delete = %d, want 90 (other field)", blog.MinimumAgeToDelete.Amount)
			}

			c, err := m.Ceiling(ctx, retention.FieldWhenToDelete)
			if err != nil {
				t.Fatalf("Ceiling() failed: %v", err)
			}
			if c.MaxNumber != 30 || c.Unit != retention.UnitDays {
				t.Errorf("Ceiling() = %+v, want 30 days", c)
			}
		})
	}
}

// failingBackend fails SavePolicy for selected content types.
type failingBackend struct {
	*MemoryBackend
	failFor map[string]bool
	armed   bool
}

func (f *failingBackend) SavePolicy(ctx context.Context, p *retention.Policy) error {
	if f.armed && f.failFor[p.ContentType] {
		return errors.New("disk full")
	}
	return f.MemoryBackend.SavePolicy(ctx, p)
}

func TestManager_LowerGlobalCeiling_PartialFailure(t *testing.T) {
	ctx := context.Background()
	b := &failingBackend{MemoryBackend: NewMemoryBackend(), failFor: map[string]bool{"article": true}}
	m := NewManager(b, nil)

	for _, ct := range []string{"article", "page"} {
		p := retention.Policy{ContentType: ct, WhenToDelete: retention.Age{Amount: 10, Unit: retention.UnitMonths}}
		if err := m.SavePolicy(ctx, &p); err != nil {
			t.Fatalf("SavePolicy(%s) failed: %v", ct, err)
		}
	}
	b.armed = true

	clamped, err := m.LowerGlobalCeiling(ctx, retention.FieldWhenToDelete, 6)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !strings.Contains(err.Error(), "article") {
		t.Errorf("error = %v, want mention of article", err)
	}
	if !reflect.DeepEqual(clamped, []string{"page"}) {
		t.Errorf("clamped = %v, want [page]", clamped)
	}
	page, _ := m.GetPolicy(ctx, "page")
	if page.WhenToDelete.Amount != 6 {
		t.Errorf("page when_to_delete = %d, want 6", page.WhenToDelete.Amount)
	}
}

func TestManager_SavePolicy(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), nil)

	tests := []struct {
		name    string
		policy  retention.Policy
		wantErr bool
	}{
		{
			name:   "within ceiling",
			policy: retention.Policy{ContentType: "article", MinimumAgeToDelete: retention.Age{Amount: 12, Unit: retention.UnitMonths}},
		},
		{
			name:    "above ceiling",
			policy:  retention.Policy{ContentType: "article", MinimumAgeToDelete: retention.Age{Amount: 13, Unit: retention.UnitMonths}},
			wantErr: true,
		},
		{
			name:   "days under a month ceiling",
			policy: retention.Policy{ContentType: "article", MinimumAgeToDelete: days(60)},
		},
		{
			name:    "weeks above a month ceiling",
			policy:  retention.Policy{ContentType: "article", WhenToDelete: retention.Age{Amount: 53, Unit: retention.UnitWeeks}},
			wantErr: true,
		},
		{
			name:    "negative keep",
			policy:  retention.Policy{ContentType: "article", MinimumRevisionsToKeep: -1},
			wantErr: true,
		},
		{
			name:    "missing content type",
			policy:  retention.Policy{MinimumRevisionsToKeep: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.SavePolicy(ctx, &tt.policy)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SavePolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, retention.ErrInvalidPolicy) {
				t.Errorf("error = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestManager_SetCeiling_MixedUnits(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), nil)

	weeks := func(n int) retention.Age { return retention.Age{Amount: n, Unit: retention.UnitWeeks} }
	months := func(n int) retention.Age { return retention.Age{Amount: n, Unit: retention.UnitMonths} }

	for _, p := range []retention.Policy{
		{ContentType: "article", WhenToDelete: months(5)},
		{ContentType: "blog", WhenToDelete: weeks(20)},
		{ContentType: "page", WhenToDelete: days(10)},
	} {
		if err := m.SavePolicy(ctx, &p); err != nil {
			t.Fatalf("SavePolicy(%s) failed: %v", p.ContentType, err)
		}
	}

	steps := []struct {
		ceiling     retention.Ceiling
		wantClamped []string
		want        map[string]retention.Age
	}{
		{
			ceiling:     retention.Ceiling{MaxNumber: 3, Unit: retention.UnitMonths},
			wantClamped: []string{"article", "blog"},
			want: map[string]retention.Age{
				"article": months(3),
				"blog":    months(3),
				"page":    days(10),
			},
		},
		{
			ceiling:     retention.Ceiling{MaxNumber: 30, Unit: retention.UnitDays},
			wantClamped: []string{"article", "blog"},
			want: map[string]retention.Age{
				"article": months(1),
				"blog":    months(1),
				"page":    days(10),
			},
		},
	}

	for _, step := range steps {
		clamped, err := m.SetCeiling(ctx, retention.FieldWhenToDelete, step.ceiling)
		if err != nil {
			t.Fatalf("SetCeiling(%s) failed: %v", step.ceiling, err)
		}
		if !reflect.DeepEqual(clamped, step.wantClamped) {
			t.Errorf("SetCeiling(%s) clamped = %v, want %v", step.ceiling, clamped, step.wantClamped)
		}
		for ct, want := range step.want {
			got, err := m.GetPolicy(ctx, ct)
			if err != nil {
				t.Fatalf("GetPolicy(%s) failed: %v", ct, err)
			}
			if got.WhenToDelete != want {
				t.Errorf("after %s: %s when_to_delete = %s, want %s", step.ceiling, ct, got.WhenToDelete, want)
			}
		}
	}
}

func TestManager_SavePolicy_FillsUnit(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), nil)

	p := retention.Policy{ContentType: "article", WhenToDelete: retention.Age{Amount: 4}}
	if err := m.SavePolicy(ctx, &p); err != nil {
		t.Fatalf("SavePolicy() failed: %v", err)
	}
	got, _ := m.GetPolicy(ctx, "article")
	if got.WhenToDelete.Unit != retention.UnitMonths {
		t.Errorf("unit = %q, want months", got.WhenToDelete.Unit)
	}
}

func TestManager_SeedPolicies(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), nil)

	existing := retention.Policy{ContentType: "article", MinimumRevisionsToKeep: 9}
	if err := m.SavePolicy(ctx, &existing); err != nil {
		t.Fatalf("SavePolicy() failed: %v", err)
	}

	seeded, err := m.SeedPolicies(ctx, []retention.Policy{
		{ContentType: "article", MinimumRevisionsToKeep: 1},
		{ContentType: "page", MinimumRevisionsToKeep: 2},
	})
	if err != nil {
		t.Fatalf("SeedPolicies() failed: %v", err)
	}
	if !reflect.DeepEqual(seeded, []string{"page"}) {
		t.Errorf("seeded = %v, want [page]", seeded)
	}
	article, _ := m.GetPolicy(ctx, "article")
	if article.MinimumRevisionsToKeep != 9 {
		t.Errorf("article keep = %d, want 9 (untouched)", article.MinimumRevisionsToKeep)
	}
}

func TestManager_FrequencyAndPerRun(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), nil)

	freq, err := m.Frequency(ctx)
	if err != nil || freq != retention.FrequencyEveryday {
		t.Fatalf("Frequency() = %q, %v, want default everyday", freq, err)
	}
	if err := m.SetFrequency(ctx, "every_10_days"); err != nil {
		t.Fatalf("SetFrequency() failed: %v", err)
	}
	if err := m.SetFrequency(ctx, "sometimes"); !errors.Is(err, retention.ErrUnknownFrequency) {
		t.Errorf("SetFrequency(sometimes) error = %v, want ErrUnknownFrequency", err)
	}
	freq, _ = m.Frequency(ctx)
	if freq != "every_10_days" {
		t.Errorf("Frequency() = %q, want every_10_days", freq)
	}

	n, err := m.RevisionsPerRun(ctx)
	if err != nil || n != 50 {
		t.Fatalf("RevisionsPerRun() = %d, %v, want 50", n, err)
	}
	if err := m.SetRevisionsPerRun(ctx, 0); err == nil {
		t.Error("expected error for 0 revisions per run")
	}
	if err := m.SetRevisionsPerRun(ctx, 200); err != nil {
		t.Fatalf("SetRevisionsPerRun() failed: %v", err)
	}
	n, _ = m.RevisionsPerRun(ctx)
	if n != 200 {
		t.Errorf("RevisionsPerRun() = %d, want 200", n)
	}
}

func TestManager_SetCeiling_Invalid(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend(), nil)

	if _, err := m.SetCeiling(ctx, retention.FieldMinimumRevisionsToKeep, retention.Ceiling{MaxNumber: 1, Unit: retention.UnitDays}); err == nil {
		t.Error("expected error for non-time field")
	}
	if _, err := m.SetCeiling(ctx, retention.FieldWhenToDelete, retention.Ceiling{MaxNumber: 0, Unit: retention.UnitDays}); err == nil {
		t.Error("expected error for zero maximum")
	}
}
