/*
errors.go - Centralized error taxonomy for the lifecycle engine

PURPOSE:
  All recoverable error kinds in one place. Domain packages wrap these
  sentinels with structured context; the API layer maps them to HTTP status
  codes with errors.Is/As.

CATEGORIES:
  1. Not found      - entity missing OR owned by another organisation
                      (indistinguishable on purpose: existence must not leak
                      across tenants)
  2. Invalid input  - validation failures, illegal state transitions,
                      illegal catalog overrides
  3. Conflicts      - alert already exists (store-level uniqueness guard)

Infrastructure errors (connectivity, unexpected constraint violations) are
never wrapped into these kinds; they propagate unchanged.
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an entity does not exist or does not
	// belong to the calling organisation.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a case action is illegal for the
	// case's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidOverride is returned when a milestone override mutation is
	// illegal (deleting a system default, or touching another org's row).
	ErrInvalidOverride = errors.New("invalid override")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrAlertExists is returned when an alert for the same (rule, case)
	// pair already exists. The evaluator treats it as success.
	ErrAlertExists = errors.New("alert already exists")

	// ErrCaseClosed is returned when an operation requires an open case.
	ErrCaseClosed = errors.New("case is closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry enough context for a specific message
// =============================================================================

// InvalidTransitionError reports an illegal action with the legal
// alternatives so the caller can render a specific message.
type InvalidTransitionError struct {
	Status    string
	Action    string
	Available []string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %s is not legal in status %s (legal: %v)",
		e.Action, e.Status, e.Available)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports a malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OverrideError reports an illegal milestone-config mutation.
type OverrideError struct {
	MilestoneKey string
	Reason       string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("milestone %s: %s", e.MilestoneKey, e.Reason)
}

func (e *OverrideError) Unwrap() error { return ErrInvalidOverride }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing (or inaccessible)
// entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether the error is the caller's fault rather than
// an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidOverride) ||
		errors.Is(err, ErrCaseClosed)
}
