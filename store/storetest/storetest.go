// Package storetest is a conformance suite run against every leave.Backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// Factory returns a fresh, empty backend. It registers its own cleanup.
type Factory func(t *testing.T) leave.Backend

var (
	created = time.Date(2024, time.July, 1, 8, 0, 0, 0, time.UTC)
	key     = leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "annual", FinancialYear: "2024-2025"}
)

// Run executes the suite.
func Run(t *testing.T, newBackend Factory) {
	t.Run("BalanceRoundTrip", func(t *testing.T) { testBalanceRoundTrip(t, newBackend(t)) })
	t.Run("ListBalancesAndYears", func(t *testing.T) { testListBalances(t, newBackend(t)) })
	t.Run("CreateAwardDuplicate", func(t *testing.T) { testCreateAwardDuplicate(t, newBackend(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newBackend(t)) })
	t.Run("ApplicationRoundTrip", func(t *testing.T) { testApplicationRoundTrip(t, newBackend(t)) })
	t.Run("ApplicationVersionConflict", func(t *testing.T) { testApplicationVersion(t, newBackend(t)) })
	t.Run("ListApplications", func(t *testing.T) { testListApplications(t, newBackend(t)) })
	t.Run("Directory", func(t *testing.T) { testDirectory(t, newBackend(t)) })
	t.Run("LeaveTypes", func(t *testing.T) { testLeaveTypes(t, newBackend(t)) })
	t.Run("Holidays", func(t *testing.T) { testHolidays(t, newBackend(t)) })
	t.Run("ConcurrentDebits", func(t *testing.T) { testConcurrentDebits(t, newBackend(t)) })
	t.Run("ConcurrentCreditAndDebit", func(t *testing.T) { testConcurrentCreditAndDebit(t, newBackend(t)) })
	t.Run("ConcurrentStepApprovals", func(t *testing.T) { testConcurrentStepApprovals(t, newBackend(t)) })
	t.Run("ConcurrentFinalApprovals", func(t *testing.T) { testConcurrentFinalApprovals(t, newBackend(t)) })
	t.Run("ConcurrentAwardRuns", func(t *testing.T) { testConcurrentAwardRuns(t, newBackend(t)) })
}

func balance(k leave.BalanceKey, entitled, used int) leave.LeaveBalance {
	return leave.LeaveBalance{
		EmployeeID:    k.EmployeeID,
		LeaveTypeID:   k.LeaveTypeID,
		FinancialYear: k.FinancialYear,
		Entitled:      entitled,
		Used:          used,
		Remaining:     entitled - used,
		CreatedAt:     created,
		UpdatedAt:     created,
		Exists:        true,
	}
}

func logEntry(id string, k leave.BalanceKey, days int, at time.Time) leave.AwardLogEntry {
	return leave.AwardLogEntry{
		ID:            id,
		EmployeeID:    k.EmployeeID,
		FinancialYear: k.FinancialYear,
		LeaveTypeID:   k.LeaveTypeID,
		DaysAwarded:   days,
		AwardType:     leave.AwardFull,
		Rationale:     "Full year award: 30 days",
		AwardedBy:     "hr-1",
		AwardMethod:   leave.AwardManual,
		AwardedAt:     at,
	}
}

func createAward(t *testing.T, s leave.Backend, b leave.LeaveBalance, e leave.AwardLogEntry) error {
	t.Helper()
	return s.WithTx(context.Background(), func(tx leave.Store) error {
		return tx.CreateAward(context.Background(), b, e)
	})
}

func testBalanceRoundTrip(t *testing.T, s leave.Backend) {
	ctx := context.Background()

	got, err := s.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "absent row must be (nil, nil)")

	require.NoError(t, s.PutBalance(ctx, balance(key, 30, 0)))
	b := balance(key, 30, 12)
	b.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, s.PutBalance(ctx, b))

	got, err = s.GetBalance(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 30, got.Entitled)
	assert.Equal(t, 12, got.Used)
	assert.Equal(t, 18, got.Remaining)
	assert.True(t, got.Exists)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, b.UpdatedAt.Equal(got.UpdatedAt))
}

func testListBalances(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	keys := []leave.BalanceKey{
		{EmployeeID: "emp-2", LeaveTypeID: "annual", FinancialYear: "2024-2025"},
		key,
		{EmployeeID: "emp-1", LeaveTypeID: "sick", FinancialYear: "2024-2025"},
		{EmployeeID: "emp-1", LeaveTypeID: "annual", FinancialYear: "2023-2024"},
	}
	for _, k := range keys {
		require.NoError(t, s.PutBalance(ctx, balance(k, 30, 0)))
	}

	rows, err := s.ListBalances(ctx, leave.BalanceFilter{FinancialYear: "2024-2025", LeaveTypeID: "annual"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "emp-1", rows[0].EmployeeID)
	assert.Equal(t, "emp-2", rows[1].EmployeeID)

	rows, err = s.ListBalances(ctx, leave.BalanceFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	n, err := s.CountBalancesForYear(ctx, "2024-2025")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	years, err := s.ListFinancialYears(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2023-2024", "2024-2025"}, years)
}

func testCreateAwardDuplicate(t *testing.T, s leave.Backend) {
	// GIVEN: an award for emp-1
	ctx := context.Background()
	require.NoError(t, createAward(t, s, balance(key, 30, 0), logEntry("log-1", key, 30, created)))

	// WHEN: a batch re-awards emp-1 and then awards emp-2 in the same tx
	other := leave.BalanceKey{EmployeeID: "emp-2", LeaveTypeID: "annual", FinancialYear: "2024-2025"}
	var dupErr error
	err := s.WithTx(ctx, func(tx leave.Store) error {
		dupErr = tx.CreateAward(ctx, balance(key, 25, 0), logEntry("log-2", key, 25, created))
		return tx.CreateAward(ctx, balance(other, 30, 0), logEntry("log-3", other, 30, created.Add(time.Second)))
	})

	// THEN: the duplicate fails alone and the rest of the batch commits
	require.NoError(t, err)
	assert.True(t, errors.Is(dupErr, generic.ErrConflict), "got %v", dupErr)

	got, err := s.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Entitled)

	logs, err := s.ListAwardLogs(ctx, "2024-2025")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "log-3", logs[0].ID, "newest first")
	assert.Equal(t, "log-1", logs[1].ID)
	assert.Equal(t, leave.AwardManual, logs[1].AwardMethod)
	assert.Equal(t, "Full year award: 30 days", logs[1].Rationale)
}

func testTxRollback(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx leave.Store) error {
		if err := tx.PutBalance(ctx, balance(key, 30, 0)); err != nil {
			return err
		}
		if err := tx.CreateApplication(ctx, application("app-1", created)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.GetApplication(ctx, "app-1")
	assert.True(t, errors.Is(err, generic.ErrNotFound))
}

func application(id string, appliedAt time.Time) leave.Application {
	return leave.Application{
		ID:               id,
		EmployeeID:       "emp-1",
		LeaveTypeID:      "annual",
		StartDate:        generic.MustDate("2024-07-08"),
		EndDate:          generic.MustDate("2024-07-12"),
		FinancialYear:    "2024-2025",
		DaysRequested:    5,
		Reason:           "family trip",
		EmergencyContact: "Jane",
		Status:           leave.StatusPending,
		SectionHeadApproval: leave.StepRecord{
			State: leave.StepPending, Approvers: []string{"sh-1"},
		},
		DeptHeadApproval: leave.StepRecord{
			State: leave.StepPending, Approvers: []string{"dh-1"},
		},
		HRApproval:  leave.StepRecord{State: leave.StepNotRequired},
		SubmittedBy: "emp-1",
		AppliedAt:   appliedAt,
		UpdatedAt:   appliedAt,
		Version:     1,
	}
}

func testApplicationRoundTrip(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	require.NoError(t, s.CreateApplication(ctx, application("app-1", created)))

	got, err := s.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", got.EmployeeID)
	assert.Equal(t, "2024-07-08", got.StartDate.String())
	assert.Equal(t, "2024-07-12", got.EndDate.String())
	assert.Equal(t, 5, got.DaysRequested)
	assert.Equal(t, "family trip", got.Reason)
	assert.Equal(t, "Jane", got.EmergencyContact)
	assert.Equal(t, leave.StatusPending, got.Status)
	assert.Equal(t, []string{"sh-1"}, got.SectionHeadApproval.Approvers)
	assert.Equal(t, leave.StepPending, got.DeptHeadApproval.State)
	assert.Equal(t, leave.StepNotRequired, got.HRApproval.State)
	assert.Nil(t, got.DecidedAt)
	assert.Equal(t, 1, got.Version)

	// approve the section step
	decided := created.Add(2 * time.Hour)
	got.SectionHeadApproval.State = leave.StepApproved
	got.SectionHeadApproval.DecidedBy = "sh-1"
	got.SectionHeadApproval.DecidedAt = &decided
	got.UpdatedAt = decided
	require.NoError(t, s.UpdateApplication(ctx, *got))

	again, err := s.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StepApproved, again.SectionHeadApproval.State)
	assert.Equal(t, "sh-1", again.SectionHeadApproval.DecidedBy)
	require.NotNil(t, again.SectionHeadApproval.DecidedAt)
	assert.True(t, decided.Equal(*again.SectionHeadApproval.DecidedAt))
	assert.Equal(t, 2, again.Version)

	assert.True(t, errors.Is(s.CreateApplication(ctx, application("app-1", created)), generic.ErrConflict))
}

func testApplicationVersion(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	require.NoError(t, s.CreateApplication(ctx, application("app-1", created)))

	first, err := s.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	stale := *first

	first.Status = leave.StatusCancelled
	require.NoError(t, s.UpdateApplication(ctx, *first))

	stale.Status = leave.StatusApproved
	err = s.UpdateApplication(ctx, stale)
	assert.True(t, errors.Is(err, generic.ErrConflict), "got %v", err)

	missing := application("nope", created)
	assert.True(t, errors.Is(s.UpdateApplication(ctx, missing), generic.ErrNotFound))

	got, err := s.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, got.Status)
}

func testListApplications(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	for i, id := range []string{"app-1", "app-2", "app-3"} {
		a := application(id, created.Add(time.Duration(i)*time.Hour))
		if id == "app-2" {
			a.EmployeeID = "emp-2"
			a.Status = leave.StatusApproved
		}
		require.NoError(t, s.CreateApplication(ctx, a))
	}

	all, err := s.ListApplications(ctx, leave.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "app-3", all[0].ID, "newest first")

	mine, err := s.ListApplications(ctx, leave.ApplicationFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	approved, err := s.ListApplications(ctx, leave.ApplicationFilter{Status: leave.StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "app-2", approved[0].ID)

	limited, err := s.ListApplications(ctx, leave.ApplicationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func person(id string, pos leave.Position, dept, section string) leave.Employee {
	return leave.Employee{
		ID:             id,
		Name:           "Employee " + id,
		Email:          id + "@example.com",
		EmploymentType: leave.EmploymentPermanent,
		Status:         leave.StatusActive,
		Position:       pos,
		HireDate:       generic.MustDate("2020-01-01"),
		DepartmentID:   dept,
		SectionID:      section,
	}
}

func testDirectory(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	retired := person("sh-old", leave.PositionSectionHead, "ops", "line-1")
	retired.Status = leave.StatusInactive
	contractor := person("ct-1", leave.PositionOfficer, "ops", "line-1")
	contractor.EmploymentType = leave.EmploymentContract

	for _, e := range []leave.Employee{
		person("off-1", leave.PositionOfficer, "ops", "line-1"),
		person("sh-1", leave.PositionSectionHead, "ops", "line-1"),
		person("sh-2", leave.PositionSectionHead, "ops", "line-2"),
		person("dh-1", leave.PositionDeptHead, "ops", ""),
		person("hr-1", leave.PositionHRManager, "admin", ""),
		person("md-1", leave.PositionManagingDirector, "", ""),
		retired,
		contractor,
	} {
		require.NoError(t, s.SaveEmployee(ctx, e))
	}

	got, err := s.GetEmployee(ctx, "off-1")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", got.HireDate.String())
	assert.Equal(t, "line-1", got.SectionID)

	_, err = s.GetEmployee(ctx, "ghost")
	assert.True(t, errors.Is(err, generic.ErrNotFound))

	sh, err := s.SectionHeadOf(ctx, "ops", "line-1")
	require.NoError(t, err)
	require.NotNil(t, sh)
	assert.Equal(t, "sh-1", sh.ID)

	none, err := s.SectionHeadOf(ctx, "ops", "line-9")
	require.NoError(t, err)
	assert.Nil(t, none)

	dh, err := s.DepartmentHeadOf(ctx, "ops")
	require.NoError(t, err)
	require.NotNil(t, dh)
	assert.Equal(t, "dh-1", dh.ID)

	execs, err := s.ExecutivesOf(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(execs))
	for _, e := range execs {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"hr-1", "md-1"}, ids)

	eligible, err := s.ListEmployees(ctx, leave.EmployeeFilter{
		EmploymentType: leave.EmploymentPermanent,
		Status:         leave.StatusActive,
	})
	require.NoError(t, err)
	assert.Len(t, eligible, 6)

	// upsert
	moved := person("off-1", leave.PositionOfficer, "ops", "line-2")
	require.NoError(t, s.SaveEmployee(ctx, moved))
	got, err = s.GetEmployee(ctx, "off-1")
	require.NoError(t, err)
	assert.Equal(t, "line-2", got.SectionID)
}

func testLeaveTypes(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	require.NoError(t, s.SaveLeaveType(ctx, leave.LeaveType{ID: "annual", Name: "Annual Leave"}))
	require.NoError(t, s.SaveLeaveType(ctx, leave.LeaveType{ID: "maternity", Name: "Maternity Leave", CountsWeekends: true}))

	lt, err := s.GetLeaveType(ctx, "maternity")
	require.NoError(t, err)
	assert.True(t, lt.CountsWeekends)

	_, err = s.GetLeaveType(ctx, "sabbatical")
	assert.True(t, errors.Is(err, generic.ErrNotFound))

	all, err := s.ListLeaveTypes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "annual", all[0].ID)
}

func testHolidays(t *testing.T, s leave.Backend) {
	ctx := context.Background()
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{
		ID: "h-1", Date: generic.MustDate("2024-07-10"), Name: "Founders Day",
	}))
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{
		ID: "h-2", Date: generic.MustDate("2020-12-25"), Name: "Christmas", Recurring: true,
	}))
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{
		ID: "h-3", Date: generic.MustDate("2025-01-15"), Name: "Election Day",
	}))

	between, err := s.HolidaysBetween(ctx, generic.MustDate("2024-07-01"), generic.MustDate("2024-12-31"))
	require.NoError(t, err)
	names := make([]string, 0, len(between))
	for _, h := range between {
		names = append(names, h.Name)
	}
	assert.ElementsMatch(t, []string{"Founders Day", "Christmas"}, names)

	// the calendar expands the recurring entry into the queried year
	set, err := generic.NewCalendar(s).Snapshot(ctx, generic.Period{
		Start: generic.MustDate("2024-12-01"), End: generic.MustDate("2024-12-31"),
	})
	require.NoError(t, err)
	assert.True(t, set.IsHoliday(generic.MustDate("2024-12-25")))

	// same date and name under a new id
	err = s.SaveHoliday(ctx, generic.Holiday{
		ID: "h-4", Date: generic.MustDate("2024-07-10"), Name: "Founders Day",
	})
	assert.True(t, generic.IsConflict(err), "got %v", err)

	require.NoError(t, s.DeleteHoliday(ctx, "h-3"))
	assert.True(t, errors.Is(s.DeleteHoliday(ctx, "h-3"), generic.ErrNotFound))

	all, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Christmas", all[0].Name, "sorted by date")
}
