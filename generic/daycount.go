package generic

// =============================================================================
// DAY COUNTING - Chargeable length of a date range
// =============================================================================

// CountingMode selects how a range is measured.
type CountingMode string

const (
	// CountCalendarDays charges every day: end - start + 1.
	CountCalendarDays CountingMode = "calendar_days"
	// CountBusinessDays skips weekends and registered holidays.
	CountBusinessDays CountingMode = "business_days"
)

// ModeFor maps a leave type's countsWeekends flag to a counting mode.
func ModeFor(countsWeekends bool) CountingMode {
	if countsWeekends {
		return CountCalendarDays
	}
	return CountBusinessDays
}

// Note is the human-readable policy note for the mode.
func (m CountingMode) Note() string {
	if m == CountCalendarDays {
		return "Includes weekends and holidays"
	}
	return "Excludes weekends and holidays"
}

// CountDays measures p under mode. A single excluded day under business-day
// counting yields 0.
func CountDays(p Period, holidays HolidaySet, mode CountingMode) int {
	if mode == CountCalendarDays {
		return p.Len()
	}

	days := 0
	for _, day := range p.Days() {
		if holidays.IsChargeableDay(day, false) {
			days++
		}
	}
	return days
}
