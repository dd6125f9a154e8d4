package leave_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// A Monday-Friday week: 5 business days.
const (
	weekStart = "2024-07-08"
	weekEnd   = "2024-07-12"
)

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_Officer_TwoPendingSteps(t *testing.T) {
	f := newFixture(t)
	f.startYear(t)

	app := f.submit(t, officerID, weekStart, weekEnd)

	assert.Equal(t, leave.StatusPending, app.Status)
	assert.Equal(t, 5, app.DaysRequested)
	assert.Equal(t, year2024, app.FinancialYear)
	assert.Equal(t, leave.StepPending, app.SectionHeadApproval.State)
	assert.Equal(t, []string{sectionHeadID}, app.SectionHeadApproval.Approvers)
	assert.Equal(t, leave.StepPending, app.DeptHeadApproval.State)
	assert.Equal(t, []string{deptHeadID}, app.DeptHeadApproval.Approvers)
	assert.Equal(t, leave.StepNotRequired, app.HRApproval.State)

	// Nothing is debited until final approval
	assert.Equal(t, 0, f.balance(t, officerID, annualID).Used)

	// Both approvers are asked at once
	assert.Len(t, f.notifier.For(sectionHeadID), 1)
	assert.Len(t, f.notifier.For(deptHeadID), 1)
	assert.Equal(t, leave.ReasonApprovalRequested, f.notifier.For(deptHeadID)[0].Reason)
	assert.Equal(t, deptHeadID+"@example.com", f.notifier.For(deptHeadID)[0].Email)
}

func TestSubmit_RoleTable_Routing(t *testing.T) {
	tests := []struct {
		applicant string
		section   leave.StepState
		dept      leave.StepState
		exec      leave.StepState
		execBy    []string
	}{
		{sectionHeadID, leave.StepNotRequired, leave.StepPending, leave.StepNotRequired, nil},
		{deptHeadID, leave.StepNotRequired, leave.StepNotRequired, leave.StepPending, []string{hrID, mdID}},
		{managerID, leave.StepNotRequired, leave.StepNotRequired, leave.StepPending, []string{hrID, mdID}},
		{mdID, leave.StepNotRequired, leave.StepNotRequired, leave.StepPending, []string{hrID}},
	}
	for _, tt := range tests {
		t.Run(tt.applicant, func(t *testing.T) {
			f := newFixture(t)
			f.startYear(t)

			app := f.submit(t, tt.applicant, weekStart, weekEnd)

			assert.Equal(t, leave.StatusPending, app.Status)
			assert.Equal(t, tt.section, app.SectionHeadApproval.State)
			assert.Equal(t, tt.dept, app.DeptHeadApproval.State)
			assert.Equal(t, tt.exec, app.HRApproval.State)
			if tt.execBy != nil {
				assert.ElementsMatch(t, tt.execBy, app.HRApproval.Approvers)
			}
		})
	}
}

func TestSubmit_HRManager_AutoApprovedAndDebited(t *testing.T) {
	f := newFixture(t)
	f.startYear(t)

	app := f.submit(t, hrID, weekStart, weekEnd)

	assert.Equal(t, leave.StatusApproved, app.Status)
	assert.Empty(t, app.RequiredSteps())
	assert.NotNil(t, app.DecidedAt)
	b := f.balance(t, hrID, annualID)
	assert.Equal(t, 5, b.Used)
	assert.Equal(t, 25, b.Remaining)

	sent := f.notifier.For(hrID)
	require.NotEmpty(t, sent)
	assert.Equal(t, leave.ReasonApproved, sent[len(sent)-1].Reason)
}

func TestSubmit_InsufficientBalance_Conflict(t *testing.T) {
	// GIVEN: the new hire has 25 days
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)

	// WHEN: requesting 6 weeks
	_, err := f.workflow.SubmitLeaveApplication(ctx, leave.SubmitRequest{
		EmployeeID: newHireID, LeaveTypeID: annualID,
		StartDate: date("2024-07-08"), EndDate: date("2024-08-16"),
	}, newHireID)

	// THEN: requested vs remaining is stated, nothing is created
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrConflict))
	assert.True(t, errors.Is(err, leave.ErrInsufficientBalance))
	var insufficient *leave.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 30, insufficient.Requested)
	assert.Equal(t, 25, insufficient.Remaining)
	assert.Contains(t, err.Error(), "requested 30 days, remaining 25 days")

	apps, err := f.workflow.ListApplications(ctx, leave.ApplicationFilter{EmployeeID: newHireID})
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestSubmit_NoBalanceRow_Conflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.SubmitLeaveApplication(context.Background(), leave.SubmitRequest{
		EmployeeID: officerID, LeaveTypeID: annualID,
		StartDate: date(weekStart), EndDate: date(weekEnd),
	}, officerID)

	assert.True(t, errors.Is(err, leave.ErrInsufficientBalance))
}

func TestSubmit_InvalidRequests(t *testing.T) {
	f := newFixture(t)
	f.startYear(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   leave.SubmitRequest
		actor string
		check func(error) bool
	}{
		{
			name:  "end before start",
			req:   leave.SubmitRequest{EmployeeID: officerID, LeaveTypeID: annualID, StartDate: date("2024-07-12"), EndDate: date("2024-07-08")},
			actor: officerID,
			check: func(err error) bool { return errors.Is(err, generic.ErrValidation) },
		},
		{
			name:  "missing leave type",
			req:   leave.SubmitRequest{EmployeeID: officerID, StartDate: date(weekStart), EndDate: date(weekEnd)},
			actor: officerID,
			check: func(err error) bool { return errors.Is(err, generic.ErrValidation) },
		},
		{
			name:  "weekend only",
			req:   leave.SubmitRequest{EmployeeID: officerID, LeaveTypeID: annualID, StartDate: date("2024-07-13"), EndDate: date("2024-07-14")},
			actor: officerID,
			check: func(err error) bool { return errors.Is(err, generic.ErrValidation) },
		},
		{
			name:  "missing actor",
			req:   leave.SubmitRequest{EmployeeID: officerID, LeaveTypeID: annualID, StartDate: date(weekStart), EndDate: date(weekEnd)},
			check: func(err error) bool { return errors.Is(err, generic.ErrValidation) },
		},
		{
			name:  "unknown leave type",
			req:   leave.SubmitRequest{EmployeeID: officerID, LeaveTypeID: "sabbatical", StartDate: date(weekStart), EndDate: date(weekEnd)},
			actor: officerID,
			check: generic.IsNotFound,
		},
		{
			name:  "unknown employee",
			req:   leave.SubmitRequest{EmployeeID: "nobody", LeaveTypeID: annualID, StartDate: date(weekStart), EndDate: date(weekEnd)},
			actor: "nobody",
			check: generic.IsNotFound,
		},
		{
			name:  "inactive employee",
			req:   leave.SubmitRequest{EmployeeID: inactiveID, LeaveTypeID: annualID, StartDate: date(weekStart), EndDate: date(weekEnd)},
			actor: inactiveID,
			check: generic.IsConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workflow.SubmitLeaveApplication(ctx, tt.req, tt.actor)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestSubmit_NoDepartmentHead_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)

	head := employee(deptHeadID, leave.PositionDeptHead, "2015-06-01")
	head.Status = leave.StatusInactive
	require.NoError(t, f.store.SaveEmployee(ctx, head))

	_, err := f.workflow.SubmitLeaveApplication(ctx, leave.SubmitRequest{
		EmployeeID: officerID, LeaveTypeID: annualID,
		StartDate: date(weekStart), EndDate: date(weekEnd),
	}, officerID)

	require.Error(t, err)
	assert.True(t, generic.IsNotFound(err))
	assert.Contains(t, err.Error(), "dept_head approver")
}

// =============================================================================
// APPROVAL
// =============================================================================

func TestApprove_OrderIndependent_DeptHeadFirst(t *testing.T) {
	// GIVEN: an officer's pending application
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	// WHEN: the department head approves before the section head
	got, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepDeptHead, deptHeadID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status)
	assert.Equal(t, 0, f.balance(t, officerID, annualID).Used)

	got, err = f.workflow.ApproveStep(ctx, app.ID, leave.StepSectionHead, sectionHeadID)
	require.NoError(t, err)

	// THEN: approved, debited exactly once
	assert.Equal(t, leave.StatusApproved, got.Status)
	b := f.balance(t, officerID, annualID)
	assert.Equal(t, 5, b.Used)
	assert.Equal(t, 25, b.Remaining)

	stored, err := f.workflow.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, stored.Status)
	assert.Equal(t, deptHeadID, stored.DeptHeadApproval.DecidedBy)
	assert.Equal(t, sectionHeadID, stored.SectionHeadApproval.DecidedBy)
	assert.Equal(t, got.Version, stored.Version)

	// AND: the applicant hears about it
	sent := f.notifier.For(officerID)
	require.Len(t, sent, 1)
	assert.Equal(t, leave.ReasonApproved, sent[0].Reason)
}

func TestApprove_SectionHeadFirst_SameOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	_, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepSectionHead, sectionHeadID)
	require.NoError(t, err)
	got, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepDeptHead, deptHeadID)
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, 5, f.balance(t, officerID, annualID).Used)
}

func TestApprove_ExecutiveStep_EitherExecutiveSatisfies(t *testing.T) {
	for _, approver := range []string{hrID, mdID} {
		t.Run(approver, func(t *testing.T) {
			f := newFixture(t)
			f.startYear(t)
			app := f.submit(t, managerID, weekStart, weekEnd)

			got, err := f.workflow.ApproveStep(context.Background(), app.ID, leave.StepExecutive, approver)

			require.NoError(t, err)
			assert.Equal(t, leave.StatusApproved, got.Status)
			assert.Equal(t, 5, f.balance(t, managerID, annualID).Used)
		})
	}
}

func TestApprove_UnassignedActor_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	for _, actor := range []string{officerID, hrID, managerID} {
		_, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepSectionHead, actor)
		assert.True(t, errors.Is(err, generic.ErrUnauthorizedApprover), actor)
	}

	stored, err := f.workflow.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StepPending, stored.SectionHeadApproval.State)
}

func TestApprove_StepTwice_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	_, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepSectionHead, sectionHeadID)
	require.NoError(t, err)
	_, err = f.workflow.ApproveStep(ctx, app.ID, leave.StepSectionHead, sectionHeadID)

	assert.True(t, errors.Is(err, generic.ErrConflict))
}

func TestApprove_NotRequiredOrUnknownStep_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	_, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepExecutive, hrID)
	assert.True(t, errors.Is(err, generic.ErrValidation))

	_, err = f.workflow.ApproveStep(ctx, app.ID, leave.Step("board"), hrID)
	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestApprove_UnknownApplication_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.ApproveStep(context.Background(), "missing", leave.StepDeptHead, deptHeadID)

	assert.True(t, generic.IsNotFound(err))
}

func TestApprove_AfterApproved_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, sectionHeadID, weekStart, weekEnd)

	_, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepDeptHead, deptHeadID)
	require.NoError(t, err)

	_, err = f.workflow.ApproveStep(ctx, app.ID, leave.StepDeptHead, deptHeadID)
	assert.True(t, errors.Is(err, generic.ErrConflict))
	_, err = f.workflow.RejectApplication(ctx, app.ID, deptHeadID, "changed my mind")
	assert.True(t, errors.Is(err, generic.ErrConflict))
	assert.Equal(t, 5, f.balance(t, sectionHeadID, annualID).Used)
}

func TestApprove_DebitFails_NothingPersisted(t *testing.T) {
	// GIVEN: a store whose balance writes fail
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, sectionHeadID, weekStart, weekEnd)

	faulty := leave.NewWorkflow(leave.WorkflowDeps{
		Store:     &faultyStore{TxStore: f.store, failPut: true},
		Directory: f.store,
		Types:     f.store,
		Counter:   f.counter,
		Clock:     f.clock,
	})

	// WHEN: the final approval cannot debit
	_, err := faulty.ApproveStep(ctx, app.ID, leave.StepDeptHead, deptHeadID)

	// THEN: status and step are rolled back with the debit
	assert.ErrorIs(t, err, errInjected)
	stored, err := f.workflow.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, stored.Status)
	assert.Equal(t, leave.StepPending, stored.DeptHeadApproval.State)
	assert.Equal(t, 0, f.balance(t, sectionHeadID, annualID).Used)
}

// =============================================================================
// REJECTION
// =============================================================================

func TestReject_IsTerminal_NoDebitEver(t *testing.T) {
	// GIVEN: the section head rejects
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	got, err := f.workflow.RejectApplication(ctx, app.ID, sectionHeadID, "short staffed")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, leave.StepRejected, got.SectionHeadApproval.State)
	assert.Equal(t, "short staffed", got.DecisionComment)

	// WHEN: the department head tries to approve anyway
	_, err = f.workflow.ApproveStep(ctx, app.ID, leave.StepDeptHead, deptHeadID)

	// THEN: refused, status unchanged, nothing debited
	assert.True(t, errors.Is(err, generic.ErrConflict))
	stored, err := f.workflow.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, stored.Status)
	assert.Equal(t, leave.StepPending, stored.DeptHeadApproval.State)
	assert.Equal(t, 0, f.balance(t, officerID, annualID).Used)

	sent := f.notifier.For(officerID)
	require.Len(t, sent, 1)
	assert.Equal(t, leave.ReasonRejected, sent[0].Reason)
	assert.Contains(t, sent[0].Message, "short staffed")
}

func TestReject_AfterPartialApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	_, err := f.workflow.ApproveStep(ctx, app.ID, leave.StepSectionHead, sectionHeadID)
	require.NoError(t, err)
	got, err := f.workflow.RejectApplication(ctx, app.ID, deptHeadID, "")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, leave.StepRejected, got.DeptHeadApproval.State)
	assert.Equal(t, 0, f.balance(t, officerID, annualID).Used)
}

func TestReject_UnassignedActor_Unauthorized(t *testing.T) {
	f := newFixture(t)
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	_, err := f.workflow.RejectApplication(context.Background(), app.ID, mdID, "")

	assert.True(t, errors.Is(err, generic.ErrUnauthorizedApprover))
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestCancel_Approved_ReversesDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, hrID, weekStart, weekEnd)
	require.Equal(t, 5, f.balance(t, hrID, annualID).Used)

	got, err := f.workflow.CancelApplication(ctx, app.ID, hrID)

	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, got.Status)
	b := f.balance(t, hrID, annualID)
	assert.Equal(t, 0, b.Used)
	assert.Equal(t, 30, b.Remaining)
}

func TestCancel_Pending_NotifiesApprovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	got, err := f.workflow.CancelApplication(ctx, app.ID, officerID)

	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, got.Status)
	sent := f.notifier.For(deptHeadID)
	require.Len(t, sent, 2)
	assert.Equal(t, leave.ReasonCancelled, sent[1].Reason)

	_, err = f.workflow.ApproveStep(ctx, app.ID, leave.StepDeptHead, deptHeadID)
	assert.True(t, errors.Is(err, generic.ErrConflict))
}

func TestCancel_ByExecutive_Allowed(t *testing.T) {
	f := newFixture(t)
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	got, err := f.workflow.CancelApplication(context.Background(), app.ID, hrID)

	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, got.Status)
	assert.Len(t, f.notifier.For(officerID), 1)
}

func TestCancel_ByOtherEmployee_Unauthorized(t *testing.T) {
	f := newFixture(t)
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)

	_, err := f.workflow.CancelApplication(context.Background(), app.ID, newHireID)

	assert.True(t, errors.Is(err, generic.ErrUnauthorizedApprover))
}

func TestCancel_Rejected_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	app := f.submit(t, officerID, weekStart, weekEnd)
	_, err := f.workflow.RejectApplication(ctx, app.ID, sectionHeadID, "")
	require.NoError(t, err)

	_, err = f.workflow.CancelApplication(ctx, app.ID, officerID)

	assert.True(t, errors.Is(err, generic.ErrConflict))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestPendingFor_ListsOnlyAssignedPendingSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	officerApp := f.submit(t, officerID, weekStart, weekEnd)
	sectionApp := f.submit(t, sectionHeadID, weekStart, weekEnd)

	forDept, err := f.workflow.PendingFor(ctx, deptHeadID)
	require.NoError(t, err)
	assert.Len(t, forDept, 2)

	forSection, err := f.workflow.PendingFor(ctx, sectionHeadID)
	require.NoError(t, err)
	require.Len(t, forSection, 1)
	assert.Equal(t, officerApp.ID, forSection[0].ID)

	_, err = f.workflow.ApproveStep(ctx, sectionApp.ID, leave.StepDeptHead, deptHeadID)
	require.NoError(t, err)
	forDept, err = f.workflow.PendingFor(ctx, deptHeadID)
	require.NoError(t, err)
	require.Len(t, forDept, 1)
	assert.Equal(t, officerApp.ID, forDept[0].ID)
}

func TestSufficiency_NotRecheckedAtApproval(t *testing.T) {
	// GIVEN: two pending 20-day requests against a 30-day balance
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	first := f.submit(t, sectionHeadID, "2024-07-08", "2024-08-02")
	second := f.submit(t, sectionHeadID, "2024-09-02", "2024-09-27")
	require.Equal(t, 20, first.DaysRequested)
	require.Equal(t, 20, second.DaysRequested)

	// WHEN: both are approved
	_, err := f.workflow.ApproveStep(ctx, first.ID, leave.StepDeptHead, deptHeadID)
	require.NoError(t, err)
	_, err = f.workflow.ApproveStep(ctx, second.ID, leave.StepDeptHead, deptHeadID)
	require.NoError(t, err)

	// THEN: the balance is overdrawn but consistent
	b := f.balance(t, sectionHeadID, annualID)
	assert.Equal(t, 40, b.Used)
	assert.Equal(t, -10, b.Remaining)
	assert.True(t, b.Consistent())
}
