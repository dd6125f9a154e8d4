package generic

import "fmt"

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is the closed range [Start, End].
//
// Examples:
//   - A leave request: 2025-03-10 .. 2025-03-14
//   - Financial year 2024-2025: 2024-07-01 .. 2025-06-30
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod rejects ranges whose end is before their start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, &ValidationError{
			Field:   "end_date",
			Message: fmt.Sprintf("end date %s is before start date %s", end, start),
		}
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Len is the number of days in the period, both ends included.
func (p Period) Len() int {
	return DaysInclusive(p.Start, p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	days := make([]TimePoint, 0, p.Len())
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Years lists every calendar year the period touches.
func (p Period) Years() []int {
	var years []int
	for y := p.Start.Year(); y <= p.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
