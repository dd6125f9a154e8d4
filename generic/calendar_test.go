package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func period(t *testing.T, start, end string) generic.Period {
	t.Helper()
	p, err := generic.NewPeriod(generic.MustDate(start), generic.MustDate(end))
	require.NoError(t, err)
	return p
}

type failingSource struct{}

func (failingSource) HolidaysBetween(context.Context, generic.TimePoint, generic.TimePoint) ([]generic.Holiday, error) {
	return nil, errors.New("db down")
}

// =============================================================================
// CHARGEABLE DAY PREDICATE
// =============================================================================

func TestIsChargeableDay_WeekendsExcluded(t *testing.T) {
	set := generic.NewHolidaySet()

	assert.True(t, set.IsChargeableDay(generic.MustDate("2025-03-14"), false), "Friday")
	assert.False(t, set.IsChargeableDay(generic.MustDate("2025-03-15"), false), "Saturday")
	assert.False(t, set.IsChargeableDay(generic.MustDate("2025-03-16"), false), "Sunday")
	assert.True(t, set.IsChargeableDay(generic.MustDate("2025-03-17"), false), "Monday")
}

func TestIsChargeableDay_HolidayExcluded(t *testing.T) {
	set := generic.NewHolidaySet(generic.Holiday{Date: generic.MustDate("2025-12-25"), Name: "Christmas Day"})

	assert.False(t, set.IsChargeableDay(generic.MustDate("2025-12-25"), false))
	assert.Equal(t, "Christmas Day", set.HolidayName(generic.MustDate("2025-12-25")))
	assert.True(t, set.IsChargeableDay(generic.MustDate("2025-12-24"), false))
}

func TestIsChargeableDay_IncludeAllDays(t *testing.T) {
	set := generic.NewHolidaySet(generic.Holiday{Date: generic.MustDate("2025-12-25")})

	assert.True(t, set.IsChargeableDay(generic.MustDate("2025-12-25"), true), "holiday counts")
	assert.True(t, set.IsChargeableDay(generic.MustDate("2025-12-27"), true), "Saturday counts")
}

// =============================================================================
// CALENDAR SNAPSHOTS
// =============================================================================

func TestCalendar_Snapshot_OnlyHolidaysInRange(t *testing.T) {
	source := generic.StaticHolidays{
		{ID: "h1", Date: generic.MustDate("2025-03-10"), Name: "Inside"},
		{ID: "h2", Date: generic.MustDate("2025-04-10"), Name: "Outside"},
	}
	cal := generic.NewCalendar(source)

	set, err := cal.Snapshot(context.Background(), period(t, "2025-03-01", "2025-03-31"))
	require.NoError(t, err)

	assert.Equal(t, 1, set.Len())
	assert.True(t, set.IsHoliday(generic.MustDate("2025-03-10")))
	assert.False(t, set.IsHoliday(generic.MustDate("2025-04-10")))
}

func TestCalendar_Snapshot_RecurringExpandsAcrossYears(t *testing.T) {
	// GIVEN: New Year's Day registered once, recurring
	source := generic.StaticHolidays{
		{ID: "ny", Date: generic.NewTimePoint(2020, time.January, 1), Name: "New Year's Day", Recurring: true},
	}
	cal := generic.NewCalendar(source)

	// WHEN: Snapshotting a range that spans two New Years
	set, err := cal.Snapshot(context.Background(), period(t, "2024-12-01", "2026-01-31"))
	require.NoError(t, err)

	// THEN: Both occurrences are holidays
	assert.True(t, set.IsHoliday(generic.MustDate("2025-01-01")))
	assert.True(t, set.IsHoliday(generic.MustDate("2026-01-01")))
	assert.Equal(t, 2, set.Len())
}

func TestCalendar_Snapshot_LeapDayRecurrenceSkipsCommonYears(t *testing.T) {
	source := generic.StaticHolidays{
		{Date: generic.MustDate("2024-02-29"), Name: "Leap", Recurring: true},
	}
	set, err := generic.NewCalendar(source).Snapshot(context.Background(), period(t, "2025-02-01", "2025-03-31"))
	require.NoError(t, err)

	assert.Equal(t, 0, set.Len())
	assert.False(t, set.IsHoliday(generic.MustDate("2025-03-01")))
}

func TestCalendar_NilSource_NoHolidays(t *testing.T) {
	set, err := generic.NewCalendar(nil).Snapshot(context.Background(), period(t, "2025-01-01", "2025-12-31"))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestCalendar_SourceError_Wrapped(t *testing.T) {
	_, err := generic.NewCalendar(failingSource{}).Snapshot(context.Background(), period(t, "2025-01-01", "2025-01-31"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

// =============================================================================
// PERIODS
// =============================================================================

func TestNewPeriod_EndBeforeStart_ValidationError(t *testing.T) {
	_, err := generic.NewPeriod(generic.MustDate("2025-03-10"), generic.MustDate("2025-03-09"))

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrValidation)
	var vErr *generic.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "end_date", vErr.Field)
}

func TestPeriod_LenAndContains(t *testing.T) {
	p := period(t, "2025-03-10", "2025-03-14")

	assert.Equal(t, 5, p.Len())
	assert.Len(t, p.Days(), 5)
	assert.True(t, p.Contains(generic.MustDate("2025-03-10")))
	assert.True(t, p.Contains(generic.MustDate("2025-03-14")))
	assert.False(t, p.Contains(generic.MustDate("2025-03-15")))
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := generic.ParseDate("2025/03/10")
	assert.ErrorIs(t, err, generic.ErrValidation)
}
