package domain

import (
	"errors"
	"fmt"
)

// ValidationError is raised locally, before any remote call, when input
// breaks an invariant.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StoreError wraps a failed document store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// AuthError is returned when the identity provider rejects a sign-in or
// account operation. Message is the provider's own text.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// ForecastError is returned when the forecast provider fails or returns a
// payload that cannot be used.
type ForecastError struct {
	Reason string
	Err    error
}

func (e *ForecastError) Error() string {
	if e.Err == nil {
		return "forecast: " + e.Reason
	}
	return fmt.Sprintf("forecast: %s: %v", e.Reason, e.Err)
}

func (e *ForecastError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
