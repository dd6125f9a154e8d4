package leave_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestRegistry_CurrentFinancialYear_FromClock(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, year2024, f.registry.CurrentFinancialYear().String())
}

func TestRegistry_IsYearStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.registry.IsYearStarted(ctx, year2024)
	require.NoError(t, err)
	assert.False(t, started)

	f.startYear(t)

	started, err = f.registry.IsYearStarted(ctx, year2024)
	require.NoError(t, err)
	assert.True(t, started)

	started, err = f.registry.IsYearStarted(ctx, "2025-2026")
	require.NoError(t, err)
	assert.False(t, started)

	_, err = f.registry.IsYearStarted(ctx, "2025-2027")
	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestRegistry_AvailableYears_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	_, err := f.awards.StartFinancialYear(ctx, "2023-2024", hrID)
	require.NoError(t, err)
	_, err = f.awards.StartFinancialYear(ctx, "2025-2026", hrID)
	require.NoError(t, err)

	years, err := f.registry.AvailableYears(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"2025-2026", "2024-2025", "2023-2024"}, years)
}

func TestRegistry_GetFinancialYearStats(t *testing.T) {
	// GIVEN: a started year and one approved 5-day application
	f := newFixture(t)
	ctx := context.Background()
	f.startYear(t)
	_, err := f.workflow.SubmitLeaveApplication(ctx, leave.SubmitRequest{
		EmployeeID: hrID, LeaveTypeID: annualID,
		StartDate: date("2024-07-08"), EndDate: date("2024-07-12"),
	}, hrID)
	require.NoError(t, err)

	// WHEN
	stats, err := f.registry.GetFinancialYearStats(ctx, year2024)

	// THEN: 7 x 30 + 25 entitled, 5 used
	require.NoError(t, err)
	assert.Equal(t, 8, stats.EmployeesWithLeave)
	assert.Equal(t, 235, stats.TotalEntitled)
	assert.Equal(t, 5, stats.TotalUsed)
	assert.Equal(t, 230, stats.TotalRemaining)
	assert.True(t, decimal.RequireFromString("28.75").Equal(stats.AverageRemaining), stats.AverageRemaining.String())
}

func TestRegistry_GetFinancialYearStats_EmptyYear(t *testing.T) {
	f := newFixture(t)

	stats, err := f.registry.GetFinancialYearStats(context.Background(), year2024)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.EmployeesWithLeave)
	assert.True(t, stats.AverageRemaining.IsZero())
}

func TestRegistry_BalancesForYear(t *testing.T) {
	f := newFixture(t)
	f.startYear(t)

	rows, err := f.registry.BalancesForYear(context.Background(), year2024)

	require.NoError(t, err)
	assert.Len(t, rows, 8)
	for _, b := range rows {
		assert.True(t, b.Consistent())
		assert.Equal(t, year2024, b.FinancialYear)
	}
}
