/*
workflow.go - Approval workflow state machine

PURPOSE:
  Drives a leave application from submission to a terminal state. The
  required steps come from the applicant's position (roles.go); the final
  approval debits the ledger in the same transaction as the status change.

STATES:
  Application:  pending -> approved | rejected | cancelled
                approved -> cancelled (debit reversed)
  Step:         not_required | pending -> approved | rejected

  approved, rejected and cancelled accept no further step decisions.

ORDER INDEPENDENCE:
  Steps can be approved in any order. After each approval the machine asks
  "is every required step approved?" and only then debits, exactly once.

SUFFICIENCY:
  daysRequested <= remaining is checked once, at submission, and is not
  re-checked at final approval. Two pending applications can therefore
  jointly overdraw a balance.

CONCURRENCY:
  Each operation is one WithTx. GetApplicationForUpdate serializes
  decisions on the same application so the completion check sees a
  consistent snapshot.

SEE ALSO:
  - roles.go: Required steps per position
  - ledger.go: Debit / Reverse
  - daycount.go: DaysRequested
*/
package leave

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// SubmitRequest is the applicant's input.
type SubmitRequest struct {
	EmployeeID       string
	LeaveTypeID      string
	StartDate        generic.TimePoint
	EndDate          generic.TimePoint
	Reason           string
	EmergencyContact string
	EmergencyPhone   string
}

// Workflow is the approval state machine.
type Workflow struct {
	store     TxStore
	directory Directory
	types     LeaveTypes
	counter   *DayCounter
	notifier  Notifier
	clock     generic.Clock
	logger    *zap.Logger
}

// WorkflowDeps bundles the collaborators of a Workflow.
type WorkflowDeps struct {
	Store     TxStore
	Directory Directory
	Types     LeaveTypes
	Counter   *DayCounter
	Notifier  Notifier
	Clock     generic.Clock
	Logger    *zap.Logger
}

// NewWorkflow creates a workflow.
func NewWorkflow(deps WorkflowDeps) *Workflow {
	w := &Workflow{
		store:     deps.Store,
		directory: deps.Directory,
		types:     deps.Types,
		counter:   deps.Counter,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if w.notifier == nil {
		w.notifier = NopNotifier{}
	}
	if w.clock == nil {
		w.clock = generic.SystemClock{}
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	w.logger = w.logger.Named("workflow")
	if w.counter == nil {
		w.counter = NewDayCounter(w.types, nil, w.logger)
	}
	return w
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitLeaveApplication validates, counts and creates an application.
// Applicants whose position needs no approval are approved and debited
// immediately.
func (w *Workflow) SubmitLeaveApplication(ctx context.Context, req SubmitRequest, actorID string) (*Application, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if req.EmployeeID == "" {
		return nil, &generic.ValidationError{Field: "employee_id", Message: "is required"}
	}
	if req.LeaveTypeID == "" {
		return nil, &generic.ValidationError{Field: "leave_type_id", Message: "is required"}
	}
	period, err := generic.NewPeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	emp, err := w.directory.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive() {
		return nil, &generic.ConflictError{
			Resource: "employee",
			Message:  fmt.Sprintf("employee %s is not active", emp.ID),
		}
	}
	if _, err := w.types.GetLeaveType(ctx, req.LeaveTypeID); err != nil {
		return nil, err
	}

	count, err := w.counter.CalculateLeaveDays(ctx, period.Start, period.End, req.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if count.Days == 0 {
		return nil, &generic.ValidationError{
			Field:   "end_date",
			Message: fmt.Sprintf("no chargeable days between %s and %s", period.Start, period.End),
		}
	}

	steps, approvers, err := w.resolveApprovers(ctx, emp)
	if err != nil {
		return nil, err
	}

	now := w.clock.Now()
	app := Application{
		ID:                  uuid.NewString(),
		EmployeeID:          emp.ID,
		LeaveTypeID:         req.LeaveTypeID,
		StartDate:           period.Start,
		EndDate:             period.End,
		FinancialYear:       generic.FinancialYearOf(period.Start).String(),
		DaysRequested:       count.Days,
		Reason:              req.Reason,
		EmergencyContact:    req.EmergencyContact,
		EmergencyPhone:      req.EmergencyPhone,
		Status:              StatusPending,
		SectionHeadApproval: notRequired(),
		DeptHeadApproval:    notRequired(),
		HRApproval:          notRequired(),
		SubmittedBy:         actorID,
		AppliedAt:           now,
		UpdatedAt:           now,
		Version:             1,
	}
	for _, step := range steps {
		*app.Step(step) = StepRecord{State: StepPending, Approvers: approvers[step]}
	}

	err = w.store.WithTx(ctx, func(tx Store) error {
		ledger := NewLedger(tx, w.clock)
		balance, err := ledger.GetBalance(ctx, app.balanceKey())
		if err != nil {
			return err
		}
		if app.DaysRequested > balance.Remaining {
			return &InsufficientBalanceError{Requested: app.DaysRequested, Remaining: balance.Remaining}
		}

		if len(steps) == 0 {
			if err := app.transition(StatusApproved); err != nil {
				return err
			}
			app.DecidedAt = &now
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return fmt.Errorf("create application: %w", err)
		}
		if app.Status == StatusApproved {
			if _, err := ledger.Debit(ctx, app.balanceKey(), app.DaysRequested); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("employee_id", app.EmployeeID),
		zap.Int("days", app.DaysRequested),
		zap.String("status", string(app.Status)))

	if app.Status == StatusApproved {
		w.notifyApplicant(ctx, &app, ReasonApproved, "Your leave application has been approved.")
	} else {
		w.notifyApprovers(ctx, &app, emp)
	}
	return &app, nil
}

// resolveApprovers maps each required step to its approvers. The
// applicant is never an approver of their own application.
func (w *Workflow) resolveApprovers(ctx context.Context, emp *Employee) ([]Step, map[Step][]string, error) {
	steps := RequiredSteps(emp.Position)
	approvers := make(map[Step][]string, len(steps))

	for _, step := range steps {
		var candidates []Employee
		switch step {
		case StepSectionHead:
			head, err := w.directory.SectionHeadOf(ctx, emp.DepartmentID, emp.SectionID)
			if err != nil {
				return nil, nil, fmt.Errorf("resolve section head: %w", err)
			}
			if head != nil {
				candidates = append(candidates, *head)
			}
		case StepDeptHead:
			head, err := w.directory.DepartmentHeadOf(ctx, emp.DepartmentID)
			if err != nil {
				return nil, nil, fmt.Errorf("resolve department head: %w", err)
			}
			if head != nil {
				candidates = append(candidates, *head)
			}
		case StepExecutive:
			execs, err := w.directory.ExecutivesOf(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("resolve executives: %w", err)
			}
			candidates = execs
		}

		var ids []string
		for _, c := range candidates {
			if c.ID != emp.ID && c.IsActive() {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) == 0 {
			return nil, nil, &generic.NotFoundError{
				Kind: string(step) + " approver",
				ID:   approverScope(step, emp),
			}
		}
		approvers[step] = ids
	}
	return steps, approvers, nil
}

func approverScope(step Step, emp *Employee) string {
	switch step {
	case StepSectionHead:
		return emp.DepartmentID + "/" + emp.SectionID
	case StepDeptHead:
		return emp.DepartmentID
	}
	return "organization"
}

// =============================================================================
// DECISIONS
// =============================================================================

// ApproveStep records actorID's approval of step. When it completes the
// last required step, the application is approved and debited.
func (w *Workflow) ApproveStep(ctx context.Context, applicationID string, step Step, actorID string) (*Application, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	var app *Application
	err := w.store.WithTx(ctx, func(tx Store) error {
		var err error
		app, err = tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if !app.Status.AcceptsDecisions() {
			return closedError(app)
		}

		rec := app.Step(step)
		if rec == nil {
			return &generic.ValidationError{Field: "step", Message: fmt.Sprintf("unknown approval step %q", step)}
		}
		switch rec.State {
		case StepNotRequired:
			return &generic.ValidationError{
				Field:   "step",
				Message: fmt.Sprintf("step %s is not required for application %s", step, app.ID),
			}
		case StepApproved:
			return &generic.ConflictError{
				Resource: "application",
				Message:  fmt.Sprintf("step %s of application %s is already approved", step, app.ID),
			}
		}
		if !rec.IsAssigned(actorID) {
			return &ApproverError{ApplicationID: app.ID, Step: step, ActorID: actorID}
		}

		now := w.clock.Now()
		rec.State = StepApproved
		rec.DecidedBy = actorID
		rec.DecidedAt = &now
		app.UpdatedAt = now

		if app.AllRequiredApproved() {
			if err := app.transition(StatusApproved); err != nil {
				return err
			}
			app.DecidedAt = &now
			if _, err := NewLedger(tx, w.clock).Debit(ctx, app.balanceKey(), app.DaysRequested); err != nil {
				return err
			}
		}
		return w.save(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("step approved",
		zap.String("application_id", app.ID),
		zap.String("step", string(step)),
		zap.String("actor", actorID),
		zap.String("status", string(app.Status)))

	if app.Status == StatusApproved {
		w.notifyApplicant(ctx, app, ReasonApproved, "Your leave application has been approved.")
	}
	return app, nil
}

// RejectApplication rejects the first pending step assigned to actorID
// and closes the application. Nothing is debited.
func (w *Workflow) RejectApplication(ctx context.Context, applicationID, actorID, comment string) (*Application, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	var app *Application
	err := w.store.WithTx(ctx, func(tx Store) error {
		var err error
		app, err = tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if !app.Status.AcceptsDecisions() {
			return closedError(app)
		}

		steps := app.PendingStepsFor(actorID)
		if len(steps) == 0 {
			return &ApproverError{ApplicationID: app.ID, ActorID: actorID}
		}

		now := w.clock.Now()
		rec := app.Step(steps[0])
		rec.State = StepRejected
		rec.DecidedBy = actorID
		rec.DecidedAt = &now

		if err := app.transition(StatusRejected); err != nil {
			return err
		}
		app.DecisionComment = comment
		app.DecidedAt = &now
		app.UpdatedAt = now
		return w.save(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("application rejected",
		zap.String("application_id", app.ID),
		zap.String("actor", actorID))

	msg := "Your leave application has been rejected."
	if comment != "" {
		msg += " Comment: " + comment
	}
	w.notifyApplicant(ctx, app, ReasonRejected, msg)
	return app, nil
}

// CancelApplication withdraws a pending or approved application. Only the
// applicant or an executive may cancel. Cancelling an approved
// application reverses its debit.
func (w *Workflow) CancelApplication(ctx context.Context, applicationID, actorID string) (*Application, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	executive := false
	if actor, err := w.directory.GetEmployee(ctx, actorID); err == nil {
		executive = actor.IsActive() && actor.Position.CanApproveExecutive()
	} else if !generic.IsNotFound(err) {
		return nil, err
	}

	var (
		app      *Application
		approved bool
		notify   []string
	)
	err := w.store.WithTx(ctx, func(tx Store) error {
		var err error
		app, err = tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if actorID != app.EmployeeID && !executive {
			return &ApproverError{ApplicationID: app.ID, ActorID: actorID}
		}
		if !app.Status.CanTransitionTo(StatusCancelled) {
			return closedError(app)
		}

		approved = app.Status == StatusApproved
		notify = app.PendingApprovers()

		now := w.clock.Now()
		if err := app.transition(StatusCancelled); err != nil {
			return err
		}
		app.DecidedAt = &now
		app.UpdatedAt = now

		if approved {
			if _, err := NewLedger(tx, w.clock).Reverse(ctx, app.balanceKey(), app.DaysRequested); err != nil {
				return err
			}
		}
		return w.save(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("application cancelled",
		zap.String("application_id", app.ID),
		zap.String("actor", actorID),
		zap.Bool("reversed", approved))

	if actorID != app.EmployeeID {
		w.notifyApplicant(ctx, app, ReasonCancelled, "Your leave application has been cancelled.")
	}
	w.notifyEach(ctx, app, notify, ReasonCancelled,
		fmt.Sprintf("Leave application %s awaiting your approval was cancelled.", app.ID))
	return app, nil
}

func (w *Workflow) save(ctx context.Context, tx Store, app *Application) error {
	if err := tx.UpdateApplication(ctx, *app); err != nil {
		return fmt.Errorf("update application %s: %w", app.ID, err)
	}
	app.Version++
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (w *Workflow) GetApplication(ctx context.Context, id string) (*Application, error) {
	return w.store.GetApplication(ctx, id)
}

func (w *Workflow) ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error) {
	return w.store.ListApplications(ctx, filter)
}

// PendingFor lists pending applications with a step awaiting approverID.
func (w *Workflow) PendingFor(ctx context.Context, approverID string) ([]Application, error) {
	apps, err := w.store.ListApplications(ctx, ApplicationFilter{Status: StatusPending})
	if err != nil {
		return nil, err
	}
	var out []Application
	for _, a := range apps {
		if len(a.PendingStepsFor(approverID)) > 0 {
			out = append(out, a)
		}
	}
	return out, nil
}

// =============================================================================
// NOTIFICATIONS - Dispatched after commit; failures are only logged
// =============================================================================

func (w *Workflow) notifyApprovers(ctx context.Context, app *Application, applicant *Employee) {
	msg := fmt.Sprintf("%s requested %d day(s) of leave from %s to %s.",
		applicant.Name, app.DaysRequested, app.StartDate, app.EndDate)
	w.notifyEach(ctx, app, app.PendingApprovers(), ReasonApprovalRequested, msg)
}

func (w *Workflow) notifyApplicant(ctx context.Context, app *Application, reason, msg string) {
	w.notifyEach(ctx, app, []string{app.EmployeeID}, reason, msg)
}

func (w *Workflow) notifyEach(ctx context.Context, app *Application, recipients []string, reason, msg string) {
	if len(recipients) == 0 {
		return
	}
	batch := make([]Notification, 0, len(recipients))
	for _, id := range recipients {
		n := Notification{
			RecipientID:   id,
			Subject:       subjectFor(reason),
			Message:       msg,
			Reason:        reason,
			ApplicationID: app.ID,
		}
		if emp, err := w.directory.GetEmployee(ctx, id); err == nil {
			n.Email = emp.Email
		}
		batch = append(batch, n)
	}
	if err := w.notifier.Notify(ctx, batch); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("application_id", app.ID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func subjectFor(reason string) string {
	switch reason {
	case ReasonApprovalRequested:
		return "Leave approval requested"
	case ReasonApproved:
		return "Leave application approved"
	case ReasonRejected:
		return "Leave application rejected"
	case ReasonCancelled:
		return "Leave application cancelled"
	}
	return "Leave notification"
}

func (a *Application) balanceKey() BalanceKey {
	return BalanceKey{EmployeeID: a.EmployeeID, LeaveTypeID: a.LeaveTypeID, FinancialYear: a.FinancialYear}
}

