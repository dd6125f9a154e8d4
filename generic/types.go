/*
Package generic provides the calendar core of the leave engine.

PURPOSE:
  This package contains the domain-agnostic pieces every leave calculation
  depends on: dates, inclusive periods, financial year boundaries, holiday
  snapshots, the chargeable-day predicate and day counting. It has no
  storage and no notion of employees.

KEY CONCEPTS:
  - TimePoint: A calendar date (midnight UTC)
  - Period: An inclusive [Start, End] range
  - FinancialYear: July 1 - June 30, keyed "YYYY-YYYY"
  - HolidaySet: Snapshot of holiday dates for a range
  - CountingMode: Calendar days vs business days
  - Clock: Injected time source

DESIGN PRINCIPLES:
  1. Pure functions: Everything here is a function of its inputs
  2. Inclusive ranges: A one-day leave is Period{d, d} with Len() == 1
  3. Explicit errors: Malformed input yields *ValidationError

USAGE:
  fy, err := generic.ParseFinancialYear("2024-2025")
  set, err := generic.NewCalendar(store).Snapshot(ctx, fy.Period())
  days := generic.CountDays(request, set, generic.CountBusinessDays)

SEE ALSO:
  - calendar.go: Holiday sources and snapshots
  - fiscal.go: Financial year keys
  - daycount.go: Counting modes
  - errors.go: Error taxonomy
*/
package generic

import "time"

// Clock abstracts the wall clock so award windows and timestamps can be
// pinned in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// TodayOn returns the calendar date of clock.Now().
func TodayOn(clock Clock) TimePoint {
	if clock == nil {
		return Today()
	}
	return FromTime(clock.Now())
}
