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

// =============================================================================
// PRORATION
// =============================================================================

func TestProrateDays_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		name                       string
		remaining, total, entitled int
		want                       int
	}{
		{"7.5 rounds up", 1, 4, 30, 8},
		{"2.5 rounds up", 1, 12, 30, 3},
		{"1.49 rounds down", 149, 100, 1, 1},
		{"24.9 rounds up", 303, 365, 30, 25},
		{"midpoint", 183, 365, 30, 15},
		{"full period", 365, 365, 30, 30},
		{"floor of one day", 1, 365, 30, 1},
		{"zero total floors", 10, 0, 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leave.ProrateDays(tt.remaining, tt.total, tt.entitled))
		})
	}
}

func TestComputeAward_HireOnPeriodStart_Full(t *testing.T) {
	fy := generic.NewFinancialYear(2024)

	award, ok := leave.ComputeAward(date("2024-07-01"), fy, 30)

	require.True(t, ok)
	assert.Equal(t, 30, award.Days)
	assert.Equal(t, leave.AwardFull, award.Type)
	assert.Equal(t, "Full year award: 30 days", award.Rationale)
}

func TestComputeAward_HireBeforePeriod_Full(t *testing.T) {
	award, ok := leave.ComputeAward(date("2019-02-11"), generic.NewFinancialYear(2024), 30)

	require.True(t, ok)
	assert.Equal(t, leave.AwardFull, award.Type)
	assert.Equal(t, 30, award.Days)
}

func TestComputeAward_HireAtMidpoint_AboutHalf(t *testing.T) {
	// 2024-12-30 .. 2025-06-30 is 183 of 365 days
	award, ok := leave.ComputeAward(date("2024-12-30"), generic.NewFinancialYear(2024), 30)

	require.True(t, ok)
	assert.Equal(t, leave.AwardProrated, award.Type)
	assert.Equal(t, 183, award.RemainingDays)
	assert.InDelta(t, 15, award.Days, 1)
}

func TestComputeAward_MidYearHire_EndToEndExample(t *testing.T) {
	award, ok := leave.ComputeAward(date("2024-09-01"), generic.NewFinancialYear(2024), 30)

	require.True(t, ok)
	assert.Equal(t, 365, award.TotalDays)
	assert.Equal(t, 303, award.RemainingDays)
	assert.Equal(t, 25, award.Days)
	assert.Equal(t, leave.AwardProrated, award.Type)
	assert.Equal(t, "Pro-rated for hire date 2024-09-01: 303/365 days x 30 = 25 days", award.Rationale)
}

func TestComputeAward_LastDayHire_FloorOfOne(t *testing.T) {
	award, ok := leave.ComputeAward(date("2025-06-30"), generic.NewFinancialYear(2024), 30)

	require.True(t, ok)
	assert.Equal(t, 1, award.Days)
}

func TestComputeAward_HiredAfterPeriod_NotAwarded(t *testing.T) {
	_, ok := leave.ComputeAward(date("2025-07-01"), generic.NewFinancialYear(2024), 30)
	assert.False(t, ok)
}

// =============================================================================
// AWARD RUN
// =============================================================================

func TestStartFinancialYear_AwardsPermanentActiveEmployees(t *testing.T) {
	// GIVEN: 9 permanent active employees, one contract, one inactive, one
	// hired after the year ends
	f := newFixture(t)
	ctx := context.Background()

	// WHEN: HR starts 2024-2025
	result, err := f.awards.StartFinancialYear(ctx, year2024, hrID)

	// THEN: every eligible employee hired by June 30 gets a row
	require.NoError(t, err)
	assert.Equal(t, year2024, result.FinancialYear)
	assert.Equal(t, 9, result.TotalProcessed)
	assert.Equal(t, 8, result.AwardedCount)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, lateHireID, result.Skipped[0].EmployeeID)
	assert.Empty(t, result.Errors)

	assert.Equal(t, 30, f.balance(t, officerID, annualID).Entitled)
	newHire := f.balance(t, newHireID, annualID)
	assert.Equal(t, 25, newHire.Entitled)
	assert.Equal(t, 25, newHire.Remaining)
	assert.Equal(t, 0, newHire.Used)

	assert.False(t, f.balance(t, contractID, annualID).Exists)
	assert.False(t, f.balance(t, inactiveID, annualID).Exists)

	logs, err := f.registry.AwardHistory(ctx, year2024)
	require.NoError(t, err)
	require.Len(t, logs, 8)
	for _, entry := range logs {
		assert.Equal(t, hrID, entry.AwardedBy)
		assert.Equal(t, leave.AwardManual, entry.AwardMethod)
		assert.Equal(t, "Financial year started manually", entry.Notes)
		if entry.EmployeeID == newHireID {
			assert.Equal(t, leave.AwardProrated, entry.AwardType)
			assert.Equal(t, 25, entry.DaysAwarded)
		}
	}

	// AND: HR managers receive a summary
	sent := f.notifier.For(hrID)
	require.Len(t, sent, 1)
	assert.Equal(t, leave.ReasonYearStarted, sent[0].Reason)
}

func TestStartFinancialYear_Twice_ConflictAndNoNewRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)

	before, err := f.store.CountBalancesForYear(ctx, year2024)
	require.NoError(t, err)

	// WHEN: the same year is started again
	_, err = f.awards.StartFinancialYear(ctx, year2024, hrID)

	// THEN: a duplicate-year conflict naming the year
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrConflict))
	var dup *leave.DuplicateYearError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, year2024, dup.Year)
	assert.Contains(t, err.Error(), "2024-2025")
	assert.Contains(t, err.Error(), "already been started")

	after, err := f.store.CountBalancesForYear(ctx, year2024)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStartFinancialYear_YearStartedByOtherLeaveType_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: an admin credited maternity leave for 2024-2025
	_, err := f.ledger.Credit(ctx, leave.BalanceKey{
		EmployeeID: officerID, LeaveTypeID: maternityID, FinancialYear: year2024,
	}, 90)
	require.NoError(t, err)

	// THEN: the year counts as started
	_, err = f.awards.StartFinancialYear(ctx, year2024, hrID)
	assert.True(t, errors.Is(err, generic.ErrConflict))
}

func TestStartFinancialYear_InvalidYear_Validation(t *testing.T) {
	f := newFixture(t)

	for _, year := range []string{"2024-2026", "2024/2025", "24-25", ""} {
		_, err := f.awards.StartFinancialYear(context.Background(), year, hrID)
		assert.True(t, errors.Is(err, generic.ErrValidation), year)
	}
}

func TestStartFinancialYear_MissingActor_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.awards.StartFinancialYear(context.Background(), year2024, "")

	assert.True(t, errors.Is(err, generic.ErrValidation))
	started, err := f.registry.IsYearStarted(context.Background(), year2024)
	require.NoError(t, err)
	assert.False(t, started)
}

func TestStartFinancialYear_OneInsertFails_OthersCommitted(t *testing.T) {
	// GIVEN: a store that fails the officer's insert
	f := newFixture(t)
	ctx := context.Background()
	faulty := &faultyStore{TxStore: f.store, failAwardFor: officerID}
	engine := leave.NewAwardEngine(faulty, f.store, nil, f.clock, nil, leave.AwardConfig{})

	// WHEN
	result, err := engine.StartFinancialYear(ctx, year2024, hrID)

	// THEN: a partial failure listing exactly the officer
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrPartialBatch))
	var partial *generic.PartialBatchFailure
	require.True(t, errors.As(err, &partial))
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, officerID, partial.Failures[0].ItemID)
	assert.ErrorIs(t, partial.Failures[0].Err, errInjected)

	require.NotNil(t, result)
	assert.Equal(t, 7, result.AwardedCount)
	assert.Len(t, result.Errors, 1)

	// AND: everyone else was committed
	assert.False(t, f.balance(t, officerID, annualID).Exists)
	assert.True(t, f.balance(t, sectionHeadID, annualID).Exists)
	count, err := f.store.CountBalancesForYear(ctx, year2024)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestRun_Automatic_RecordsMethodAndSystemActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.awards.Run(ctx, leave.AwardRun{
		Year:    year2024,
		ActorID: leave.SystemActor,
		Method:  leave.AwardAutomatic,
	})
	require.NoError(t, err)

	logs, err := f.registry.AwardHistory(ctx, year2024)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, leave.AwardAutomatic, logs[0].AwardMethod)
	assert.Equal(t, leave.SystemActor, logs[0].AwardedBy)
	assert.Equal(t, "Awarded automatically at financial year start", logs[0].Notes)
}

func TestAwardConfig_CustomEntitlement(t *testing.T) {
	f := newFixture(t)
	engine := leave.NewAwardEngine(f.store, f.store, nil, f.clock, nil, leave.AwardConfig{EntitlementDays: 21})

	_, err := engine.StartFinancialYear(context.Background(), year2024, hrID)
	require.NoError(t, err)

	assert.Equal(t, 21, f.balance(t, officerID, annualID).Entitled)
}
