/*
errors.go - Centralized error types for the analytics engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps them onto HTTP status codes; the engines only ever
  return these typed errors or wrapped storage errors.

ERROR CATEGORIES:
  1. Validation errors - missing or malformed input (HTTP 400)
  2. Not-found errors  - referenced resource/project does not exist (HTTP 404)
  3. Everything else   - internal, logged, never echoed verbatim (HTTP 500)

ARITHMETIC FALLBACKS ARE NOT ERRORS:
  Zero available hours, zero budget or zero planned value produce neutral
  values (0 utilization, CPI/SPI of 1). Nothing in this file is raised for them.

SEE ALSO:
  - api/handlers.go: writeServiceError maps these to status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the category of every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrDuplicateActiveAlert is returned by stores when an ACTIVE alert of the
	// same type already exists for the project.
	ErrDuplicateActiveAlert = errors.New("active alert already exists")

	// ErrInvalidTransition is returned when an alert status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a missing or malformed required parameter.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional underlying cause, e.g. ErrInvalidPeriod
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// Required builds the error for an absent required parameter.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "is required"}
}

// NotFoundError reports a reference to a row that does not exist.
type NotFoundError struct {
	Kind string // "resource", "project", "cashflow", "alert"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
