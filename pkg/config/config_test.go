package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/revkeep/pkg/retention"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "revkeep.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: sqlite
  sqlite:
    path: ./content.db
    busy_timeout: 2s

prune:
  chunk_size: 100
  schedule: "0 3 * * *"
  frequency: every_week

ceilings:
  when_to_delete:
    max_number: 6

policies:
  article:
    minimum_revisions_to_keep: 3
    minimum_age_to_delete: {amount: 2, unit: months}
  page:
    minimum_revisions_to_keep: 1
    when_to_delete: {amount: 4}

telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Store.SQLite.Path != "./content.db" {
		t.Errorf("Store.SQLite.Path = %q, want ./content.db", cfg.Store.SQLite.Path)
	}
	if cfg.Store.SQLite.BusyTimeout != 2*time.Second {
		t.Errorf("BusyTimeout = %v, want 2s", cfg.Store.SQLite.BusyTimeout)
	}
	if !cfg.Store.SQLite.WALMode {
		t.Error("WALMode = false, want default true")
	}
	if cfg.Prune.ChunkSize != 100 || cfg.Prune.Frequency != "every_week" {
		t.Errorf("Prune = %+v", cfg.Prune)
	}
	if cfg.Prune.Language != DefaultLanguage {
		t.Errorf("Prune.Language = %q, want default", cfg.Prune.Language)
	}

	when := cfg.Ceilings[retention.FieldWhenToDelete]
	if when.MaxNumber != 6 || when.Unit != retention.UnitMonths {
		t.Errorf("when_to_delete ceiling = %+v, want 6 months", when)
	}
	if age := cfg.Ceilings[retention.FieldMinimumAgeToDelete]; age.MaxNumber != DefaultCeilingMaxNumber {
		t.Errorf("minimum_age_to_delete ceiling = %+v, want default", age)
	}

	policies := cfg.RetentionPolicies()
	if len(policies) != 2 || policies[0].ContentType != "article" || policies[1].ContentType != "page" {
		t.Fatalf("RetentionPolicies() = %+v, want [article page]", policies)
	}
	if policies[0].MinimumAgeToDelete.Amount != 2 {
		t.Errorf("article minimum age = %+v", policies[0].MinimumAgeToDelete)
	}

	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Telemetry.Logging)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want default true")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantField string
	}{
		{
			name:      "unknown store backend",
			content:   "store: {backend: mongo}",
			wantField: "store.backend",
		},
		{
			name:      "postgres without dsn",
			content:   "store: {backend: postgres}",
			wantField: "store.postgres.dsn",
		},
		{
			name:      "negative chunk size",
			content:   "prune: {chunk_size: -1}",
			wantField: "prune.chunk_size",
		},
		{
			name:      "bad schedule",
			content:   "prune: {schedule: \"every tuesday\"}",
			wantField: "prune.schedule",
		},
		{
			name:      "unknown frequency",
			content:   "prune: {frequency: sometimes}",
			wantField: "prune.frequency",
		},
		{
			name:      "unknown ceiling field",
			content:   "ceilings: {minimum_revisions_to_keep: {max_number: 3, unit: days}}",
			wantField: "ceilings.minimum_revisions_to_keep",
		},
		{
			name:      "policy above ceiling",
			content:   "policies: {article: {when_to_delete: {amount: 13, unit: months}}}",
			wantField: "policies.article.when_to_delete",
		},
		{
			name:      "policy in weeks above month ceiling",
			content:   "policies: {article: {minimum_age_to_delete: {amount: 53, unit: weeks}}}",
			wantField: "policies.article.minimum_age_to_delete",
		},
		{
			name:      "invalid log level",
			content:   "telemetry: {logging: {level: verbose}}",
			wantField: "telemetry.logging.level",
		},
		{
			name:      "metrics path reserved for probes",
			content:   "telemetry: {metrics: {path: /ready}}",
			wantField: "telemetry.metrics.path",
		},
		{
			name:      "tracing without endpoint",
			content:   "telemetry: {tracing: {enabled: true}}",
			wantField: "telemetry.tracing.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want field %s", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestLoadConfig_PolicyInDaysUnderMonthCeiling(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "policies: {article: {minimum_revisions_to_keep: 3, minimum_age_to_delete: {amount: 60, unit: days}}}"))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if got := cfg.Policies["article"].MinimumAgeToDelete; got.Amount != 60 || got.Unit != retention.UnitDays {
		t.Errorf("minimum_age_to_delete = %+v, want 60 days", got)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "store: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "prune: {chunk_size: 10}")

	t.Setenv("REVKEEP_PRUNE_CHUNK_SIZE", "25")
	t.Setenv("REVKEEP_STORE_BACKEND", "memory")
	t.Setenv("REVKEEP_TELEMETRY_METRICS_ENABLED", "false")
	t.Setenv("REVKEEP_STORE_SQLITE_BUSY_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if cfg.Prune.ChunkSize != 25 {
		t.Errorf("ChunkSize = %d, want 25", cfg.Prune.ChunkSize)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Store.SQLite.BusyTimeout != DefaultSQLiteBusyTimeout {
		t.Errorf("BusyTimeout = %v, want default (invalid override ignored)", cfg.Store.SQLite.BusyTimeout)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("REVKEEP_PRUNE_FREQUENCY", "sometimes")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Fatal("expected validation error after override")
	}
}

func TestDataDir(t *testing.T) {
	t.Setenv("REVKEEP_DATA_DIR", "/srv/revkeep")
	if got := DataDir(); got != "/srv/revkeep" {
		t.Errorf("DataDir() = %q, want /srv/revkeep", got)
	}

	t.Setenv("REVKEEP_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	if got := DataDir(); got != filepath.Join("/tmp/xdg-data", "revkeep") {
		t.Errorf("DataDir() = %q, want /tmp/xdg-data/revkeep", got)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("REVKEEP_DATA_DIR", "/data")

	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()) failed: %v", err)
	}
	if cfg.Store.SQLite.Path != filepath.Join("/data", DefaultContentDBFile) {
		t.Errorf("Store.SQLite.Path = %q", cfg.Store.SQLite.Path)
	}
	if cfg.State.Path != filepath.Join("/data", DefaultStateDBFile) {
		t.Errorf("State.Path = %q", cfg.State.Path)
	}
}

func TestValidationError_Error(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("Error() = %q", got)
	}

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := two.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "b: worse") {
		t.Errorf("Error() = %q", got)
	}
}

func resetGlobal() {
	globalConfig = nil
	initOnce = *new(sync.Once)
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	path := writeConfig(t, "prune: {chunk_size: 7}")
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if cfg := GetConfig(); cfg == nil || cfg.Prune.ChunkSize != 7 {
		t.Fatalf("GetConfig() = %+v, want chunk size 7", cfg)
	}

	// Subsequent calls are ignored.
	if err := Initialize(writeConfig(t, "prune: {chunk_size: 9}")); err != nil {
		t.Fatalf("second Initialize() failed: %v", err)
	}
	if MustGetConfig().Prune.ChunkSize != 7 {
		t.Errorf("ChunkSize = %d, want 7", MustGetConfig().Prune.ChunkSize)
	}
}

func TestReloadConfig(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	path := writeConfig(t, "prune: {chunk_size: 7}")
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("prune: {chunk_size: 0, language: \"\"}\nstore: {backend: nope}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReloadConfig(path); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig().Prune.ChunkSize != 7 {
		t.Error("failed reload replaced the configuration")
	}

	if err := os.WriteFile(path, []byte("prune: {chunk_size: 11}"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := ReloadConfig(path)
	if err != nil {
		t.Fatalf("ReloadConfig() failed: %v", err)
	}
	if cfg.Prune.ChunkSize != 11 || GetConfig().Prune.ChunkSize != 11 {
		t.Errorf("ChunkSize = %d, want 11", GetConfig().Prune.ChunkSize)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetGlobal()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}
