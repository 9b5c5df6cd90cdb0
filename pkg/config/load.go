package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded onto the defaults, the remaining zero values are
// defaulted and the result is validated. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention REVKEEP_SECTION_FIELD (e.g., REVKEEP_PRUNE_CHUNK_SIZE) and always
// take precedence over the file.
//
// An empty path skips the file: defaults plus environment overrides.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Unparseable numeric, boolean and duration values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Store overrides
	envString("REVKEEP_STORE_BACKEND", &cfg.Store.Backend)
	envString("REVKEEP_STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	envInt("REVKEEP_STORE_SQLITE_MAX_OPEN_CONNS", &cfg.Store.SQLite.MaxOpenConns)
	envBool("REVKEEP_STORE_SQLITE_WAL_MODE", &cfg.Store.SQLite.WALMode)
	envDuration("REVKEEP_STORE_SQLITE_BUSY_TIMEOUT", &cfg.Store.SQLite.BusyTimeout)
	envString("REVKEEP_STORE_POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	if val := os.Getenv("REVKEEP_STORE_POSTGRES_MAX_CONNS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 32); err == nil {
			cfg.Store.Postgres.MaxConns = int32(i)
		}
	}
	envBool("REVKEEP_STORE_POSTGRES_CREATE_SCHEMA", &cfg.Store.Postgres.CreateSchema)

	// State overrides
	envString("REVKEEP_STATE_BACKEND", &cfg.State.Backend)
	envString("REVKEEP_STATE_PATH", &cfg.State.Path)

	// Prune overrides
	envInt("REVKEEP_PRUNE_CHUNK_SIZE", &cfg.Prune.ChunkSize)
	envString("REVKEEP_PRUNE_LANGUAGE", &cfg.Prune.Language)
	envString("REVKEEP_PRUNE_SCHEDULE", &cfg.Prune.Schedule)
	envInt("REVKEEP_PRUNE_REVISIONS_PER_RUN", &cfg.Prune.RevisionsPerRun)
	envString("REVKEEP_PRUNE_FREQUENCY", &cfg.Prune.Frequency)

	// Telemetry overrides
	envString("REVKEEP_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("REVKEEP_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("REVKEEP_TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("REVKEEP_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("REVKEEP_TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envString("REVKEEP_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("REVKEEP_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("REVKEEP_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("REVKEEP_TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := os.Getenv("REVKEEP_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
