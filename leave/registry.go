package leave

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// DefaultAnnualLeaveTypeID is the leave type the award engine credits.
const DefaultAnnualLeaveTypeID = "annual"

// YearStats summarizes the annual leave ledger for one financial year.
type YearStats struct {
	FinancialYear      string
	EmployeesWithLeave int
	TotalEntitled      int
	TotalUsed          int
	TotalRemaining     int
	AverageRemaining   decimal.Decimal
}

// Registry tracks which financial years have been started.
type Registry struct {
	store             Store
	clock             generic.Clock
	annualLeaveTypeID string
}

// NewRegistry creates a registry. An empty annualLeaveTypeID uses
// DefaultAnnualLeaveTypeID.
func NewRegistry(store Store, clock generic.Clock, annualLeaveTypeID string) *Registry {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if annualLeaveTypeID == "" {
		annualLeaveTypeID = DefaultAnnualLeaveTypeID
	}
	return &Registry{store: store, clock: clock, annualLeaveTypeID: annualLeaveTypeID}
}

// CurrentFinancialYear returns the year containing today.
func (r *Registry) CurrentFinancialYear() generic.FinancialYear {
	return generic.CurrentFinancialYear(generic.TodayOn(r.clock))
}

// IsYearStarted reports whether any ledger row has the year key.
func (r *Registry) IsYearStarted(ctx context.Context, year string) (bool, error) {
	fy, err := generic.ParseFinancialYear(year)
	if err != nil {
		return false, err
	}
	return yearStarted(ctx, r.store, fy.String())
}

func yearStarted(ctx context.Context, s Store, year string) (bool, error) {
	n, err := s.CountBalancesForYear(ctx, year)
	if err != nil {
		return false, fmt.Errorf("count balances for %s: %w", year, err)
	}
	return n > 0, nil
}

// AvailableYears lists started financial years, newest first.
func (r *Registry) AvailableYears(ctx context.Context) ([]string, error) {
	years, err := r.store.ListFinancialYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list financial years: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years, nil
}

// GetFinancialYearStats aggregates annual leave rows for year.
func (r *Registry) GetFinancialYearStats(ctx context.Context, year string) (YearStats, error) {
	fy, err := generic.ParseFinancialYear(year)
	if err != nil {
		return YearStats{}, err
	}
	rows, err := r.store.ListBalances(ctx, BalanceFilter{
		FinancialYear: fy.String(),
		LeaveTypeID:   r.annualLeaveTypeID,
	})
	if err != nil {
		return YearStats{}, fmt.Errorf("list balances: %w", err)
	}

	stats := YearStats{FinancialYear: fy.String(), AverageRemaining: decimal.Zero}
	employees := make(map[string]bool)
	for _, b := range rows {
		employees[b.EmployeeID] = true
		stats.TotalEntitled += b.Entitled
		stats.TotalUsed += b.Used
		stats.TotalRemaining += b.Remaining
	}
	stats.EmployeesWithLeave = len(employees)
	if stats.EmployeesWithLeave > 0 {
		stats.AverageRemaining = decimal.NewFromInt(int64(stats.TotalRemaining)).
			Div(decimal.NewFromInt(int64(stats.EmployeesWithLeave))).
			Round(2)
	}
	return stats, nil
}

// BalancesForYear lists every ledger row of year.
func (r *Registry) BalancesForYear(ctx context.Context, year string) ([]LeaveBalance, error) {
	fy, err := generic.ParseFinancialYear(year)
	if err != nil {
		return nil, err
	}
	return r.store.ListBalances(ctx, BalanceFilter{FinancialYear: fy.String()})
}

// AwardHistory lists the award log of year, newest first.
func (r *Registry) AwardHistory(ctx context.Context, year string) ([]AwardLogEntry, error) {
	fy, err := generic.ParseFinancialYear(year)
	if err != nil {
		return nil, err
	}
	return r.store.ListAwardLogs(ctx, fy.String())
}
