package retention

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolicy is returned when a policy fails validation.
	ErrInvalidPolicy = errors.New("invalid retention policy")

	// ErrPolicyNotFound is returned when no policy exists for a content type.
	ErrPolicyNotFound = errors.New("retention policy not found")

	// ErrUnknownFrequency is returned for an unrecognized frequency key.
	ErrUnknownFrequency = errors.New("unknown frequency")
)

// PolicyError represents a validation failure of a retention policy.
type PolicyError struct {
	ContentType string // Content type of the rejected policy
	Field       string // Offending field
	Message     string // Human-readable description
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	if e.ContentType == "" {
		return fmt.Sprintf("invalid retention policy [field=%s]: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid retention policy [content_type=%s, field=%s]: %s", e.ContentType, e.Field, e.Message)
}

// Unwrap returns ErrInvalidPolicy so callers can match with errors.Is.
func (e *PolicyError) Unwrap() error {
	return ErrInvalidPolicy
}

// NewPolicyError creates a new PolicyError.
func NewPolicyError(contentType, field, message string) *PolicyError {
	return &PolicyError{
		ContentType: contentType,
		Field:       field,
		Message:     message,
	}
}
