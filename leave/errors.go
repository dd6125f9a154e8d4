package leave

import (
	"errors"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// ErrInsufficientBalance matches any InsufficientBalanceError.
var ErrInsufficientBalance = errors.New("insufficient leave balance")

// InsufficientBalanceError is returned when a request exceeds the
// remaining balance. Nothing was written.
type InsufficientBalanceError struct {
	Requested int
	Remaining int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance: requested %d days, remaining %d days",
		e.Requested, e.Remaining)
}

func (e *InsufficientBalanceError) Unwrap() []error {
	return []error{generic.ErrConflict, ErrInsufficientBalance}
}

// DuplicateYearError is returned when an award run targets a financial
// year that already has ledger rows.
type DuplicateYearError struct {
	Year string
}

func (e *DuplicateYearError) Error() string {
	return fmt.Sprintf("financial year %s has already been started", e.Year)
}

func (e *DuplicateYearError) Unwrap() error { return generic.ErrConflict }

// ApproverError is returned when the actor is not assigned to the step.
type ApproverError struct {
	ApplicationID string
	Step          Step
	ActorID       string
}

func (e *ApproverError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s is not an approver of application %s", e.ActorID, e.ApplicationID)
	}
	return fmt.Sprintf("%s is not an assigned %s approver of application %s",
		e.ActorID, e.Step, e.ApplicationID)
}

func (e *ApproverError) Unwrap() error { return generic.ErrUnauthorizedApprover }

func requireActor(actorID string) error {
	if actorID == "" {
		return &generic.ValidationError{Field: "actor_id", Message: "actor is required"}
	}
	return nil
}

func closedError(a *Application) error {
	return &generic.ConflictError{
		Resource: "application",
		Message:  fmt.Sprintf("application %s is already %s", a.ID, a.Status),
	}
}
