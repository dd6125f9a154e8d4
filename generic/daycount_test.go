package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// DAY COUNTING
// =============================================================================

func TestCountDays_BusinessDays_MondayToFriday(t *testing.T) {
	// GIVEN: Mon 2025-03-10 .. Fri 2025-03-14, no holidays
	p := period(t, "2025-03-10", "2025-03-14")

	// THEN: 5 chargeable days
	assert.Equal(t, 5, generic.CountDays(p, generic.NewHolidaySet(), generic.CountBusinessDays))
}

func TestCountDays_BusinessDays_FridayToMondaySkipsWeekend(t *testing.T) {
	p := period(t, "2025-03-14", "2025-03-17")

	assert.Equal(t, 2, generic.CountDays(p, generic.NewHolidaySet(), generic.CountBusinessDays),
		"Friday + Monday, not 4")
}

func TestCountDays_BusinessDays_HolidayExcluded(t *testing.T) {
	p := period(t, "2025-12-22", "2025-12-26")
	set := generic.NewHolidaySet(
		generic.Holiday{Date: generic.MustDate("2025-12-25"), Name: "Christmas Day"},
		generic.Holiday{Date: generic.MustDate("2025-12-26"), Name: "Boxing Day"},
	)

	assert.Equal(t, 3, generic.CountDays(p, set, generic.CountBusinessDays))
}

func TestCountDays_SingleDay(t *testing.T) {
	set := generic.NewHolidaySet(generic.Holiday{Date: generic.MustDate("2025-12-25")})

	tests := []struct {
		name string
		date string
		mode generic.CountingMode
		want int
	}{
		{"workday business", "2025-03-12", generic.CountBusinessDays, 1},
		{"saturday business", "2025-03-15", generic.CountBusinessDays, 0},
		{"holiday business", "2025-12-25", generic.CountBusinessDays, 0},
		{"saturday calendar", "2025-03-15", generic.CountCalendarDays, 1},
		{"holiday calendar", "2025-12-25", generic.CountCalendarDays, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := period(t, tt.date, tt.date)
			assert.Equal(t, tt.want, generic.CountDays(p, set, tt.mode))
		})
	}
}

func TestCountDays_CalendarDays_IgnoresWeekendsAndHolidays(t *testing.T) {
	set := generic.NewHolidaySet(generic.Holiday{Date: generic.MustDate("2025-12-25")})

	// Every range yields end - start + 1
	start := generic.MustDate("2025-12-01")
	for length := 1; length <= 60; length++ {
		end := start.AddDays(length - 1)
		p := generic.Period{Start: start, End: end}
		assert.Equal(t, generic.DaysBetween(start, end)+1, generic.CountDays(p, set, generic.CountCalendarDays))
	}
}

func TestCountDays_BusinessNeverExceedsCalendar(t *testing.T) {
	start := generic.NewTimePoint(2025, time.January, 1)
	for length := 1; length <= 40; length++ {
		p := generic.Period{Start: start, End: start.AddDays(length - 1)}
		business := generic.CountDays(p, generic.NewHolidaySet(), generic.CountBusinessDays)
		calendar := generic.CountDays(p, generic.NewHolidaySet(), generic.CountCalendarDays)
		assert.LessOrEqual(t, business, calendar)
	}
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, generic.CountCalendarDays, generic.ModeFor(true))
	assert.Equal(t, generic.CountBusinessDays, generic.ModeFor(false))
	assert.Equal(t, "Includes weekends and holidays", generic.CountCalendarDays.Note())
	assert.Equal(t, "Excludes weekends and holidays", generic.CountBusinessDays.Note())
}
