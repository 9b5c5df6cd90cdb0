package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"mercator-hq/revkeep/pkg/retention"
)

// Default values for configuration fields.
const (
	// Store defaults
	DefaultStoreBackend       = "sqlite"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultPostgresMaxConns   = int32(10)
	DefaultContentDBFile      = "content.db"
	DefaultStateDBFile        = "state.db"
	DefaultStateBackend       = "sqlite"
	DefaultStateBusyTimeout   = 5 * time.Second
	DefaultDataDirName        = "revkeep"
	DefaultDataDirEnv         = "REVKEEP_DATA_DIR"

	// Prune defaults
	DefaultChunkSize       = 50
	DefaultLanguage        = "en"
	DefaultSchedule        = "@every 1h"
	DefaultRevisionsPerRun = 50
	DefaultFrequency       = retention.FrequencyEveryday

	// Ceiling defaults
	DefaultCeilingMaxNumber = 12
	DefaultCeilingUnit      = retention.UnitMonths

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Metrics defaults
	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "revkeep"

	// Tracing defaults
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingExporter    = "otlp"
	DefaultTracingServiceName = "revkeep"
	DefaultOTLPInsecure       = true
	DefaultOTLPTimeout        = 10 * time.Second
)

// DefaultDurationBuckets are the run duration histogram buckets in seconds.
var DefaultDurationBuckets = []float64{1, 5, 15, 30, 60, 300, 900, 3600}

// DataDir resolves the directory holding the default database files:
// $REVKEEP_DATA_DIR, then $XDG_DATA_HOME/revkeep, then ~/.local/share/revkeep.
func DataDir() string {
	if explicit := os.Getenv(DefaultDataDirEnv); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), DefaultDataDirName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, DefaultDataDirName)
}

// Default returns a configuration with every default applied. It is the
// base the YAML file is decoded onto, so booleans that default to true stay
// true unless the file sets them.
func Default() *Config {
	cfg := &Config{
		Store: StoreConfig{
			SQLite: SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{OTLP: OTLPConfig{Insecure: DefaultOTLPInsecure}},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default.
func ApplyDefaults(cfg *Config) {
	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = filepath.Join(DataDir(), DefaultContentDBFile)
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Store.SQLite.MaxIdleConns == 0 {
		cfg.Store.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.Postgres.MaxConns == 0 {
		cfg.Store.Postgres.MaxConns = DefaultPostgresMaxConns
	}

	// State defaults
	if cfg.State.Backend == "" {
		cfg.State.Backend = DefaultStateBackend
	}
	if cfg.State.Path == "" {
		cfg.State.Path = filepath.Join(DataDir(), DefaultStateDBFile)
	}
	if cfg.State.BusyTimeout == 0 {
		cfg.State.BusyTimeout = DefaultStateBusyTimeout
	}

	// Prune defaults
	if cfg.Prune.ChunkSize == 0 {
		cfg.Prune.ChunkSize = DefaultChunkSize
	}
	if cfg.Prune.Language == "" {
		cfg.Prune.Language = DefaultLanguage
	}
	if cfg.Prune.Schedule == "" {
		cfg.Prune.Schedule = DefaultSchedule
	}
	if cfg.Prune.RevisionsPerRun == 0 {
		cfg.Prune.RevisionsPerRun = DefaultRevisionsPerRun
	}
	if cfg.Prune.Frequency == "" {
		cfg.Prune.Frequency = DefaultFrequency
	}

	// Ceiling defaults
	if cfg.Ceilings == nil {
		cfg.Ceilings = make(map[string]retention.Ceiling)
	}
	for _, field := range []string{retention.FieldMinimumAgeToDelete, retention.FieldWhenToDelete} {
		c := cfg.Ceilings[field]
		if c.MaxNumber == 0 {
			c.MaxNumber = DefaultCeilingMaxNumber
		}
		if c.Unit == "" {
			c.Unit = DefaultCeilingUnit
		}
		cfg.Ceilings[field] = c
	}

	// Logging defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}

	// Metrics defaults
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = DefaultDurationBuckets
	}

	// Tracing defaults
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}
