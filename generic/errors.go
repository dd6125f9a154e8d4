/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The leave package wraps these with domain context; the API maps them
  to HTTP status codes with the helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Validation - malformed input, rejected before any mutation
  2. Conflict   - duplicate award run, insufficient balance, closed application
  3. Not found  - unknown employee, leave type, application, balance row
  4. Partial    - award batch finished with some per-employee failures
  5. Authority  - actor is not an assigned approver

USAGE:
    if errors.Is(err, generic.ErrConflict) {
        // surface to caller, nothing was written
    }

    var nf *generic.NotFoundError
    if errors.As(err, &nf) {
        log.Printf("missing %s %s", nf.Kind, nf.ID)
    }

SEE ALSO:
  - leave/errors.go: Domain errors (insufficient balance, duplicate year)
  - api/handlers.go: statusFor() maps errors to HTTP
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input (bad dates, bad year key).
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the request contradicts current state.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrPartialBatch is returned when a batch completed with failures.
	ErrPartialBatch = errors.New("batch completed with failures")

	// ErrUnauthorizedApprover is returned when the actor may not act on a step.
	ErrUnauthorizedApprover = errors.New("actor is not an assigned approver")

	// ErrInvalidTransition is returned when a state change is not permitted.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError describes a rejected state change.
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "employee", "leave type", "application", "balance"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ItemFailure is one failed element of a batch.
type ItemFailure struct {
	ItemID string
	Err    error
}

func (f ItemFailure) String() string {
	return fmt.Sprintf("%s: %v", f.ItemID, f.Err)
}

// PartialBatchFailure lists failed items. Items not listed succeeded and
// were committed.
type PartialBatchFailure struct {
	Operation string
	Succeeded int
	Failures  []ItemFailure
}

func (e *PartialBatchFailure) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.String()
	}
	return fmt.Sprintf("%s: %d succeeded, %d failed (%s)",
		e.Operation, e.Succeeded, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialBatchFailure) Unwrap() error { return ErrPartialBatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnauthorizedApprover) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for duplicate or state conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition)
}
