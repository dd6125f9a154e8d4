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

func TestCalculateLeaveDays_BusinessDayType(t *testing.T) {
	f := newFixture(t)

	// 2024-07-08 is a Monday
	got, err := f.counter.CalculateLeaveDays(context.Background(), date("2024-07-08"), date("2024-07-12"), annualID)

	require.NoError(t, err)
	assert.Equal(t, 5, got.Days)
	assert.Equal(t, generic.CountBusinessDays, got.Mode)
	assert.Equal(t, "Excludes weekends and holidays", got.PolicyNote)
	assert.Equal(t, "Annual Leave", got.LeaveTypeName)
}

func TestCalculateLeaveDays_FridayToMonday_TwoDays(t *testing.T) {
	f := newFixture(t)

	got, err := f.counter.CalculateLeaveDays(context.Background(), date("2024-07-12"), date("2024-07-15"), annualID)

	require.NoError(t, err)
	assert.Equal(t, 2, got.Days)
}

func TestCalculateLeaveDays_CalendarDayType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: date("2024-07-10"), Name: "Festival"}))

	got, err := f.counter.CalculateLeaveDays(ctx, date("2024-07-06"), date("2024-07-19"), maternityID)

	require.NoError(t, err)
	assert.Equal(t, 14, got.Days)
	assert.Equal(t, "Includes weekends and holidays", got.PolicyNote)
}

func TestCalculateLeaveDays_HolidayFromStoreExcluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: date("2024-07-10"), Name: "Festival"}))
	require.NoError(t, f.store.SaveHoliday(ctx, generic.Holiday{ID: "h2", Date: date("2019-07-11"), Name: "Founders Day", Recurring: true}))

	got, err := f.counter.CalculateLeaveDays(ctx, date("2024-07-08"), date("2024-07-12"), annualID)

	require.NoError(t, err)
	assert.Equal(t, 3, got.Days)
}

func TestCalculateLeaveDays_UnknownType_FallsBackToBusinessDays(t *testing.T) {
	f := newFixture(t)

	got, err := f.counter.CalculateLeaveDays(context.Background(), date("2024-07-12"), date("2024-07-15"), "sabbatical")

	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.Equal(t, 2, got.Days)
	assert.Equal(t, generic.CountBusinessDays, got.Mode)
	assert.Equal(t, leave.UnknownLeaveTypeName, got.LeaveTypeName)
}

func TestCalculateLeaveDays_SingleWeekendDay_Zero(t *testing.T) {
	f := newFixture(t)

	got, err := f.counter.CalculateLeaveDays(context.Background(), date("2024-07-13"), date("2024-07-13"), annualID)

	require.NoError(t, err)
	assert.Equal(t, 0, got.Days)
}

func TestCalculateLeaveDays_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.counter.CalculateLeaveDays(ctx, date("2024-07-12"), date("2024-07-08"), annualID)
	assert.True(t, errors.Is(err, generic.ErrValidation))

	_, err = f.counter.CalculateLeaveDays(ctx, date("2024-07-08"), date("2024-07-12"), "")
	assert.True(t, errors.Is(err, generic.ErrValidation))
}
