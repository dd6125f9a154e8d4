package generic

import (
	"context"
	"fmt"
)

// =============================================================================
// HOLIDAY CALENDAR - Registered non-working days
// =============================================================================

// Holiday is a registered non-working day.
type Holiday struct {
	ID          string
	Date        TimePoint
	Name        string
	Description string
	Recurring   bool // same month/day every year
}

// HolidaySource is the Holiday/Calendar collaborator: a queryable set of
// holiday dates. Recurring holidays are returned with their stored date;
// the Calendar expands them to each year in the range.
type HolidaySource interface {
	HolidaysBetween(ctx context.Context, from, to TimePoint) ([]Holiday, error)
}

// HolidaySet is an immutable snapshot of holiday dates.
type HolidaySet struct {
	dates map[string]string // date -> name
}

// NewHolidaySet builds a set from explicit dates (no recurrence expansion).
func NewHolidaySet(holidays ...Holiday) HolidaySet {
	s := HolidaySet{dates: make(map[string]string, len(holidays))}
	for _, h := range holidays {
		s.dates[h.Date.String()] = h.Name
	}
	return s
}

// IsHoliday checks exact date membership.
func (s HolidaySet) IsHoliday(date TimePoint) bool {
	_, ok := s.dates[date.String()]
	return ok
}

// HolidayName returns the registered name, or "" when date is not a holiday.
func (s HolidaySet) HolidayName(date TimePoint) string {
	return s.dates[date.String()]
}

func (s HolidaySet) Len() int { return len(s.dates) }

// IsChargeableDay decides whether date counts against a leave balance.
// With includeWeekendsAndHolidays every day is chargeable; otherwise
// weekends and registered holidays are excluded.
func (s HolidaySet) IsChargeableDay(date TimePoint, includeWeekendsAndHolidays bool) bool {
	if includeWeekendsAndHolidays {
		return true
	}
	if date.IsWeekend() {
		return false
	}
	return !s.IsHoliday(date)
}

// Calendar resolves holiday data into HolidaySet snapshots.
type Calendar struct {
	source HolidaySource
}

// NewCalendar creates a calendar backed by source. A nil source means no
// holidays are registered.
func NewCalendar(source HolidaySource) *Calendar {
	return &Calendar{source: source}
}

// Snapshot loads the holidays that fall inside p.
func (c *Calendar) Snapshot(ctx context.Context, p Period) (HolidaySet, error) {
	set := HolidaySet{dates: make(map[string]string)}
	if c == nil || c.source == nil {
		return set, nil
	}

	holidays, err := c.source.HolidaysBetween(ctx, p.Start, p.End)
	if err != nil {
		return set, fmt.Errorf("load holidays for %s: %w", p, err)
	}

	for _, h := range holidays {
		if !h.Recurring {
			if p.Contains(h.Date) {
				set.dates[h.Date.String()] = h.Name
			}
			continue
		}
		for _, year := range p.Years() {
			d, ok := onYear(h.Date, year)
			if ok && p.Contains(d) {
				set.dates[d.String()] = h.Name
			}
		}
	}
	return set, nil
}

// onYear moves a recurring date to year. Feb 29 has no image in common years.
func onYear(date TimePoint, year int) (TimePoint, bool) {
	moved := NewTimePoint(year, date.Month(), date.Day())
	if moved.Month() != date.Month() {
		return TimePoint{}, false
	}
	return moved, true
}

// StaticHolidays is an in-process HolidaySource, handy for fixtures.
type StaticHolidays []Holiday

func (s StaticHolidays) HolidaysBetween(_ context.Context, from, to TimePoint) ([]Holiday, error) {
	var out []Holiday
	p := Period{Start: from, End: to}
	for _, h := range s {
		if h.Recurring || p.Contains(h.Date) {
			out = append(out, h)
		}
	}
	return out, nil
}

var _ HolidaySource = StaticHolidays(nil)
