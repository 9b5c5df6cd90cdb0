package cli

import (
	"errors"
	"fmt"

	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention"
	"mercator-hq/revkeep/pkg/retention/executor"
	"mercator-hq/revkeep/pkg/retention/pruner"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUsage     = 2
	ExitNotDue    = 3
	ExitCancelled = 130
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *ConfigError
	var verr config.ValidationError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &verr),
		errors.Is(err, retention.ErrInvalidPolicy), errors.Is(err, retention.ErrUnknownFrequency):
		return ExitUsage
	case errors.Is(err, pruner.ErrNotDue):
		return ExitNotDue
	case errors.Is(err, executor.ErrCancelled):
		return ExitCancelled
	default:
		return ExitFailure
	}
}
