/*
fiscal.go - Financial year boundaries

PURPOSE:
  The organization's financial year runs July 1 through June 30 and is
  identified by the key "YYYY-YYYY" (second year = first + 1).

  2024-2025 => [2024-07-01, 2025-06-30]

VALIDATION:
  A key must match ^\d{4}-\d{4}$ AND be sequential. "2024-2026" is
  well-formed but rejected.

SEE ALSO:
  - leave/registry.go: Which financial years have been started
  - leave/award.go: Uses Period() for proration
*/
package generic

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// FiscalYearStartMonth is the first month of every financial year.
const FiscalYearStartMonth = time.July

var yearKeyPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// FinancialYear is identified by the calendar year it starts in.
type FinancialYear struct {
	StartYear int
}

// NewFinancialYear returns the financial year starting in July of startYear.
func NewFinancialYear(startYear int) FinancialYear {
	return FinancialYear{StartYear: startYear}
}

// ParseFinancialYear parses and validates a "YYYY-YYYY" key.
func ParseFinancialYear(s string) (FinancialYear, error) {
	if !yearKeyPattern.MatchString(s) {
		return FinancialYear{}, &ValidationError{
			Field:   "financial_year",
			Message: fmt.Sprintf("invalid financial year format %q: use YYYY-YYYY (e.g. 2024-2025)", s),
		}
	}
	first, _ := strconv.Atoi(s[:4])
	second, _ := strconv.Atoi(s[5:])
	if second != first+1 {
		return FinancialYear{}, &ValidationError{
			Field:   "financial_year",
			Message: fmt.Sprintf("invalid financial year %q: second year must follow the first", s),
		}
	}
	return FinancialYear{StartYear: first}, nil
}

// ValidateYearFormat reports whether s is a well-formed, sequential key.
func ValidateYearFormat(s string) bool {
	_, err := ParseFinancialYear(s)
	return err == nil
}

// CurrentFinancialYear returns the financial year containing today.
// July onwards belongs to the year starting now; January to June to the
// year that started last July.
func CurrentFinancialYear(today TimePoint) FinancialYear {
	if today.Month() >= FiscalYearStartMonth {
		return FinancialYear{StartYear: today.Year()}
	}
	return FinancialYear{StartYear: today.Year() - 1}
}

// FinancialYearOf is an alias of CurrentFinancialYear for arbitrary dates.
func FinancialYearOf(date TimePoint) FinancialYear {
	return CurrentFinancialYear(date)
}

func (fy FinancialYear) String() string {
	return fmt.Sprintf("%d-%d", fy.StartYear, fy.StartYear+1)
}

// Start is July 1 of the first year.
func (fy FinancialYear) Start() TimePoint {
	return NewTimePoint(fy.StartYear, FiscalYearStartMonth, 1)
}

// End is June 30 of the second year.
func (fy FinancialYear) End() TimePoint {
	return fy.Start().AddYears(1).AddDays(-1)
}

// Period returns [Start, End].
func (fy FinancialYear) Period() Period {
	return Period{Start: fy.Start(), End: fy.End()}
}

// IsAwardWindow reports whether date falls in the first week of the
// financial year (July 1-7), when automatic award runs are allowed.
func IsAwardWindow(date TimePoint) bool {
	return date.Month() == FiscalYearStartMonth && date.Day() <= 7
}
