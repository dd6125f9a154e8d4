package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST FIXTURE - One department, one section, every position
// =============================================================================

const (
	year2024 = "2024-2025"

	officerID     = "off-1"
	sectionHeadID = "sh-1"
	deptHeadID    = "dh-1"
	hrID          = "hr-1"
	mdID          = "md-1"
	managerID     = "mgr-1"
	chairID       = "bod-1"
	contractID    = "ct-1"
	inactiveID    = "gone-1"
	newHireID     = "new-1"
	lateHireID    = "late-1"

	annualID    = leave.DefaultAnnualLeaveTypeID
	maternityID = "maternity"
)

type fixture struct {
	store    *memory.Memory
	notifier *leave.RecordingNotifier
	clock    generic.Clock
	counter  *leave.DayCounter
	workflow *leave.Workflow
	awards   *leave.AwardEngine
	ledger   *leave.LedgerService
	registry *leave.Registry
}

func date(s string) generic.TimePoint { return generic.MustDate(s) }

func employee(id string, pos leave.Position, hired string) leave.Employee {
	return leave.Employee{
		ID:             id,
		Name:           "Employee " + id,
		Email:          id + "@example.com",
		EmploymentType: leave.EmploymentPermanent,
		Status:         leave.StatusActive,
		Position:       pos,
		HireDate:       date(hired),
		DepartmentID:   "ops",
		SectionID:      "line-1",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	for _, lt := range []leave.LeaveType{
		{ID: annualID, Name: "Annual Leave"},
		{ID: maternityID, Name: "Maternity Leave", CountsWeekends: true},
	} {
		require.NoError(t, st.SaveLeaveType(ctx, lt))
	}

	contract := employee(contractID, leave.PositionOfficer, "2020-01-01")
	contract.EmploymentType = leave.EmploymentContract
	inactive := employee(inactiveID, leave.PositionOfficer, "2020-01-01")
	inactive.Status = leave.StatusInactive

	for _, e := range []leave.Employee{
		employee(officerID, leave.PositionOfficer, "2020-01-01"),
		employee(sectionHeadID, leave.PositionSectionHead, "2018-03-01"),
		employee(deptHeadID, leave.PositionDeptHead, "2015-06-01"),
		employee(hrID, leave.PositionHRManager, "2016-01-01"),
		employee(mdID, leave.PositionManagingDirector, "2010-01-01"),
		employee(managerID, leave.PositionManager, "2019-01-01"),
		employee(chairID, leave.PositionBODChairman, "2012-01-01"),
		employee(newHireID, leave.PositionOfficer, "2024-09-01"),
		employee(lateHireID, leave.PositionOfficer, "2025-08-01"),
		contract,
		inactive,
	} {
		require.NoError(t, st.SaveEmployee(ctx, e))
	}

	clock := generic.FixedClock(time.Date(2024, time.July, 2, 9, 0, 0, 0, time.UTC))
	rec := &leave.RecordingNotifier{}
	counter := leave.NewDayCounter(st, st, nil)

	return &fixture{
		store:    st,
		notifier: rec,
		clock:    clock,
		counter:  counter,
		workflow: leave.NewWorkflow(leave.WorkflowDeps{
			Store:     st,
			Directory: st,
			Types:     st,
			Counter:   counter,
			Notifier:  rec,
			Clock:     clock,
		}),
		awards:   leave.NewAwardEngine(st, st, rec, clock, nil, leave.AwardConfig{}),
		ledger:   leave.NewLedgerService(st, clock),
		registry: leave.NewRegistry(st, clock, ""),
	}
}

// startYear runs the annual award for 2024-2025.
func (f *fixture) startYear(t *testing.T) *leave.AwardResult {
	t.Helper()
	result, err := f.awards.StartFinancialYear(context.Background(), year2024, hrID)
	require.NoError(t, err)
	return result
}

func (f *fixture) balance(t *testing.T, employeeID, leaveTypeID string) leave.LeaveBalance {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), employeeID, leaveTypeID, year2024)
	require.NoError(t, err)
	return b
}

// submit files an annual leave application for employeeID from start to end.
func (f *fixture) submit(t *testing.T, employeeID, start, end string) *leave.Application {
	t.Helper()
	app, err := f.workflow.SubmitLeaveApplication(context.Background(), leave.SubmitRequest{
		EmployeeID:  employeeID,
		LeaveTypeID: annualID,
		StartDate:   date(start),
		EndDate:     date(end),
		Reason:      "family trip",
	}, employeeID)
	require.NoError(t, err)
	return app
}

// =============================================================================
// FAULT INJECTION
// =============================================================================

var errInjected = errors.New("injected failure")

// faultyStore fails selected writes inside transactions.
type faultyStore struct {
	leave.TxStore
	failAwardFor string
	failPut      bool
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	return f.TxStore.WithTx(ctx, func(s leave.Store) error {
		return fn(&faultyTx{Store: s, parent: f})
	})
}

type faultyTx struct {
	leave.Store
	parent *faultyStore
}

func (f *faultyTx) CreateAward(ctx context.Context, b leave.LeaveBalance, e leave.AwardLogEntry) error {
	if b.EmployeeID == f.parent.failAwardFor {
		return errInjected
	}
	return f.Store.CreateAward(ctx, b, e)
}

func (f *faultyTx) PutBalance(ctx context.Context, b leave.LeaveBalance) error {
	if f.parent.failPut {
		return errInjected
	}
	return f.Store.PutBalance(ctx, b)
}
