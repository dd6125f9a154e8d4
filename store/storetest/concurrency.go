package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// CONCURRENCY - Writers racing on one balance row, one application, one year
// =============================================================================

var racingClock = generic.FixedClock(time.Date(2024, time.July, 2, 9, 0, 0, 0, time.UTC))

// race runs fn n times in parallel and returns every result.
func race(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func testConcurrentDebits(t *testing.T, s leave.Backend) {
	// GIVEN: one row with 30 entitled days
	ctx := context.Background()
	require.NoError(t, s.PutBalance(ctx, balance(key, 30, 0)))
	ledger := leave.NewLedgerService(s, racingClock)

	// WHEN: four debits of 5 days land at once
	errs := race(4, func(int) error {
		_, err := ledger.Debit(ctx, key, 5)
		return err
	})

	// THEN: none was lost
	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := s.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Used)
	assert.Equal(t, 10, got.Remaining)
}

func testConcurrentCreditAndDebit(t *testing.T, s leave.Backend) {
	// GIVEN: a row with some days already used
	ctx := context.Background()
	require.NoError(t, s.PutBalance(ctx, balance(key, 30, 4)))
	ledger := leave.NewLedgerService(s, racingClock)

	// WHEN: HR raises the entitlement while a debit and a reverse run
	errs := race(3, func(i int) error {
		var err error
		switch i {
		case 0:
			_, err = ledger.Credit(ctx, key, 40)
		case 1:
			_, err = ledger.Debit(ctx, key, 5)
		default:
			_, err = ledger.Reverse(ctx, key, 2)
		}
		return err
	})

	// THEN: every write applied on top of the others
	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := s.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Entitled)
	assert.Equal(t, 7, got.Used)
	assert.Equal(t, 33, got.Remaining)
}

func seedOffice(t *testing.T, s leave.Backend) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveLeaveType(ctx, leave.LeaveType{ID: key.LeaveTypeID, Name: "Annual Leave"}))
	for _, e := range []leave.Employee{
		person("off-1", leave.PositionOfficer, "ops", "line-1"),
		person("off-2", leave.PositionOfficer, "ops", "line-1"),
		person("sh-1", leave.PositionSectionHead, "ops", "line-1"),
		person("dh-1", leave.PositionDeptHead, "ops", ""),
		person("hr-1", leave.PositionHRManager, "admin", ""),
	} {
		require.NoError(t, s.SaveEmployee(ctx, e))
	}
}

func newWorkflow(s leave.Backend) *leave.Workflow {
	return leave.NewWorkflow(leave.WorkflowDeps{
		Store:     s,
		Directory: s,
		Types:     s,
		Counter:   leave.NewDayCounter(s, s, nil),
		Clock:     racingClock,
	})
}

func submitWeek(t *testing.T, w *leave.Workflow, employeeID, monday, friday string) *leave.Application {
	t.Helper()
	app, err := w.SubmitLeaveApplication(context.Background(), leave.SubmitRequest{
		EmployeeID:  employeeID,
		LeaveTypeID: key.LeaveTypeID,
		StartDate:   generic.MustDate(monday),
		EndDate:     generic.MustDate(friday),
	}, employeeID)
	require.NoError(t, err)
	require.Equal(t, 5, app.DaysRequested)
	return app
}

func testConcurrentStepApprovals(t *testing.T, s leave.Backend) {
	// GIVEN: an officer's pending application needing two steps
	ctx := context.Background()
	seedOffice(t, s)
	officer := leave.BalanceKey{EmployeeID: "off-1", LeaveTypeID: key.LeaveTypeID, FinancialYear: key.FinancialYear}
	require.NoError(t, s.PutBalance(ctx, balance(officer, 30, 0)))
	w := newWorkflow(s)
	app := submitWeek(t, w, "off-1", "2024-07-08", "2024-07-12")

	// WHEN: both heads approve at the same moment
	errs := race(2, func(i int) error {
		var err error
		if i == 0 {
			_, err = w.ApproveStep(ctx, app.ID, leave.StepDeptHead, "dh-1")
		} else {
			_, err = w.ApproveStep(ctx, app.ID, leave.StepSectionHead, "sh-1")
		}
		return err
	})

	// THEN: both steps count and the debit happens once
	for _, err := range errs {
		require.NoError(t, err)
	}
	stored, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, stored.Status)
	assert.Equal(t, leave.StepApproved, stored.SectionHeadApproval.State)
	assert.Equal(t, leave.StepApproved, stored.DeptHeadApproval.State)

	got, err := s.GetBalance(ctx, officer)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Used)
	assert.Equal(t, 25, got.Remaining)
}

func testConcurrentFinalApprovals(t *testing.T, s leave.Backend) {
	// GIVEN: two applications on one balance, each waiting on the last step
	ctx := context.Background()
	seedOffice(t, s)
	officer := leave.BalanceKey{EmployeeID: "off-1", LeaveTypeID: key.LeaveTypeID, FinancialYear: key.FinancialYear}
	require.NoError(t, s.PutBalance(ctx, balance(officer, 30, 0)))
	w := newWorkflow(s)
	first := submitWeek(t, w, "off-1", "2024-07-08", "2024-07-12")
	second := submitWeek(t, w, "off-1", "2024-07-15", "2024-07-19")
	for _, app := range []*leave.Application{first, second} {
		_, err := w.ApproveStep(ctx, app.ID, leave.StepDeptHead, "dh-1")
		require.NoError(t, err)
	}

	// WHEN: the section head approves both at once
	ids := []string{first.ID, second.ID}
	errs := race(2, func(i int) error {
		_, err := w.ApproveStep(ctx, ids[i], leave.StepSectionHead, "sh-1")
		return err
	})

	// THEN: both debits are on the row
	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := s.GetBalance(ctx, officer)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Used)
	assert.Equal(t, 20, got.Remaining)
}

func testConcurrentAwardRuns(t *testing.T, s leave.Backend) {
	// GIVEN: five eligible employees
	ctx := context.Background()
	seedOffice(t, s)
	engine := leave.NewAwardEngine(s, s, nil, racingClock, nil, leave.AwardConfig{AnnualLeaveTypeID: key.LeaveTypeID})

	// WHEN: two HR users start the same year together
	errs := race(2, func(int) error {
		_, err := engine.StartFinancialYear(ctx, key.FinancialYear, "hr-1")
		return err
	})

	// THEN: exactly one run wins, the other is a conflict
	var won, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, generic.ErrConflict):
			var dup *leave.DuplicateYearError
			assert.True(t, errors.As(err, &dup))
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, conflicts)

	n, err := s.CountBalancesForYear(ctx, key.FinancialYear)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	logs, err := s.ListAwardLogs(ctx, key.FinancialYear)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
}
