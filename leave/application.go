package leave

import (
	"fmt"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// APPLICATION STATUS
// =============================================================================

// Status is the overall state of a leave application.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// statusTransitions lists the permitted overall status changes.
var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

func (s Status) IsValid() bool  { return validStatuses[s] }
func (s Status) String() string { return string(s) }

// AcceptsDecisions reports whether step approvals or rejections may still
// be recorded. Only pending applications do.
func (s Status) AcceptsDecisions() bool { return s == StatusPending }

// CanTransitionTo reports whether s -> to is permitted.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// =============================================================================
// APPROVAL STEPS
// =============================================================================

// Step names one stage of the hierarchical sign-off.
type Step string

const (
	StepSectionHead Step = "section_head"
	StepDeptHead    Step = "dept_head"
	// StepExecutive is signed by an HR manager or the managing director.
	StepExecutive Step = "executive"
)

// AllSteps is the fixed storage order of step fields.
var AllSteps = []Step{StepSectionHead, StepDeptHead, StepExecutive}

// ParseStep accepts the step names used on the wire.
func ParseStep(s string) (Step, error) {
	switch Step(s) {
	case StepSectionHead, StepDeptHead, StepExecutive:
		return Step(s), nil
	case "hr", "executive_approval":
		return StepExecutive, nil
	}
	return "", &generic.ValidationError{Field: "step", Message: fmt.Sprintf("unknown approval step %q", s)}
}

// StepState is the approval state of one step.
type StepState string

const (
	StepNotRequired StepState = "not_required"
	StepPending     StepState = "pending"
	StepApproved    StepState = "approved"
	StepRejected    StepState = "rejected"
)

// StepRecord holds one step's state and who may sign it.
type StepRecord struct {
	State     StepState
	Approvers []string
	DecidedBy string
	DecidedAt *time.Time
}

// IsAssigned reports whether actorID is one of the step's approvers.
func (r StepRecord) IsAssigned(actorID string) bool {
	for _, id := range r.Approvers {
		if id == actorID {
			return true
		}
	}
	return false
}

func notRequired() StepRecord { return StepRecord{State: StepNotRequired} }

// =============================================================================
// APPLICATION
// =============================================================================

// Application is a leave request moving through approval.
// Only Status, the step records and bookkeeping timestamps change after
// submission; DaysRequested is fixed when the application is created.
type Application struct {
	ID               string
	EmployeeID       string
	LeaveTypeID      string
	StartDate        generic.TimePoint
	EndDate          generic.TimePoint
	FinancialYear    string
	DaysRequested    int
	Reason           string
	EmergencyContact string
	EmergencyPhone   string

	Status              Status
	SectionHeadApproval StepRecord
	DeptHeadApproval    StepRecord
	HRApproval          StepRecord

	SubmittedBy     string
	DecisionComment string
	AppliedAt       time.Time
	DecidedAt       *time.Time
	UpdatedAt       time.Time
	Version         int
}

// Step returns the record for step, or nil for an unknown step.
func (a *Application) Step(step Step) *StepRecord {
	switch step {
	case StepSectionHead:
		return &a.SectionHeadApproval
	case StepDeptHead:
		return &a.DeptHeadApproval
	case StepExecutive:
		return &a.HRApproval
	}
	return nil
}

// RequiredSteps lists the steps that are not not_required, in storage order.
func (a *Application) RequiredSteps() []Step {
	var steps []Step
	for _, s := range AllSteps {
		if a.Step(s).State != StepNotRequired {
			steps = append(steps, s)
		}
	}
	return steps
}

// AllRequiredApproved reports whether every required step is approved.
// Order of approval is irrelevant.
func (a *Application) AllRequiredApproved() bool {
	for _, s := range a.RequiredSteps() {
		if a.Step(s).State != StepApproved {
			return false
		}
	}
	return true
}

// PendingStepsFor lists pending steps the actor is assigned to.
func (a *Application) PendingStepsFor(actorID string) []Step {
	var steps []Step
	for _, s := range AllSteps {
		rec := a.Step(s)
		if rec.State == StepPending && rec.IsAssigned(actorID) {
			steps = append(steps, s)
		}
	}
	return steps
}

// PendingApprovers returns the distinct approvers of all pending steps.
func (a *Application) PendingApprovers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range AllSteps {
		rec := a.Step(s)
		if rec.State != StepPending {
			continue
		}
		for _, id := range rec.Approvers {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Period returns the requested date range.
func (a *Application) Period() generic.Period {
	return generic.Period{Start: a.StartDate, End: a.EndDate}
}

func (a *Application) transition(to Status) error {
	if !a.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: application %s is %s, cannot become %s",
			generic.ErrInvalidTransition, a.ID, a.Status, to)
	}
	a.Status = to
	return nil
}

// ApplicationFilter narrows an application listing.
type ApplicationFilter struct {
	EmployeeID string
	Status     Status
	Limit      int
}
