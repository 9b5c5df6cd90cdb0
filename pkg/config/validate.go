package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/revkeep/pkg/retention"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "prune.chunk_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateState(&cfg.State)...)
	errs = append(errs, validatePrune(&cfg.Prune)...)
	errs = append(errs, validateCeilings(cfg.Ceilings)...)
	errs = append(errs, validatePolicies(cfg)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "store.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "store.sqlite.max_open_conns", Message: "must be non-negative"})
		}
		if cfg.SQLite.MaxIdleConns < 0 {
			errs = append(errs, FieldError{Field: "store.sqlite.max_idle_conns", Message: "must be non-negative"})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "store.sqlite.busy_timeout", Message: "busy timeout must be positive"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "store.postgres.dsn", Message: "dsn is required for the postgres backend"})
		}
		if cfg.Postgres.MaxConns < 1 {
			errs = append(errs, FieldError{Field: "store.postgres.max_conns", Message: "must be at least 1"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q (must be sqlite, postgres or memory)", cfg.Backend),
		})
	}

	return errs
}

func validateState(cfg *StateConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "state.path", Message: "path is required for the sqlite backend"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "state.backend",
			Message: fmt.Sprintf("invalid backend %q (must be sqlite or memory)", cfg.Backend),
		})
	}

	return errs
}

func validatePrune(cfg *PruneConfig) []FieldError {
	var errs []FieldError

	if cfg.ChunkSize < 1 {
		errs = append(errs, FieldError{
			Field:   "prune.chunk_size",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.ChunkSize),
		})
	}
	if strings.TrimSpace(cfg.Language) == "" {
		errs = append(errs, FieldError{Field: "prune.language", Message: "language is required"})
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "prune.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}
	if cfg.RevisionsPerRun < 1 {
		errs = append(errs, FieldError{
			Field:   "prune.revisions_per_run",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.RevisionsPerRun),
		})
	}
	if err := retention.ValidateFrequency(cfg.Frequency); err != nil {
		errs = append(errs, FieldError{Field: "prune.frequency", Message: err.Error()})
	}

	return errs
}

func validateCeilings(ceilings map[string]retention.Ceiling) []FieldError {
	var errs []FieldError

	for field, c := range ceilings {
		if !retention.ValidTimeField(field) {
			errs = append(errs, FieldError{
				Field:   "ceilings." + field,
				Message: "unknown time field (must be minimum_age_to_delete or when_to_delete)",
			})
			continue
		}
		if err := c.Validate(); err != nil {
			errs = append(errs, FieldError{Field: "ceilings." + field, Message: err.Error()})
		}
	}

	return errs
}

func validatePolicies(cfg *Config) []FieldError {
	var errs []FieldError

	for _, p := range cfg.RetentionPolicies() {
		prefix := "policies." + p.ContentType
		for _, field := range []string{retention.FieldMinimumAgeToDelete, retention.FieldWhenToDelete} {
			age, _ := p.TimeCriterion(field)
			c := cfg.Ceilings[field]
			if age.Unit == "" {
				age.Unit = c.Unit
				p.SetTimeCriterion(field, age)
			}
			if c.MaxNumber > 0 && !c.Allows(age) {
				errs = append(errs, FieldError{
					Field:   prefix + "." + field,
					Message: fmt.Sprintf("%s exceeds the ceiling of %s", age, c),
				})
			}
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, FieldError{Field: prefix, Message: err.Error()})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text or console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: fmt.Sprintf("invalid address %q: %v", cfg.Metrics.ListenAddress, err),
			})
		}
		switch {
		case !strings.HasPrefix(cfg.Metrics.Path, "/"):
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
		case cfg.Metrics.Path == "/health" || cfg.Metrics.Path == "/ready" || cfg.Metrics.Path == "/version":
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: fmt.Sprintf("path %s is reserved for the health probes", cfg.Metrics.Path)})
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
		}
		if cfg.Tracing.Exporter != "otlp" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("unsupported exporter %q (must be otlp)", cfg.Tracing.Exporter),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
	}

	return errs
}
