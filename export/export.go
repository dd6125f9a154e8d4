// Package export renders a financial year's ledger as an xlsx workbook
// (excelize) or a one-page PDF summary (gofpdf).
package export

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/leave"
)

// Source is the read side of the financial year registry.
type Source interface {
	GetFinancialYearStats(ctx context.Context, year string) (leave.YearStats, error)
	BalancesForYear(ctx context.Context, year string) ([]leave.LeaveBalance, error)
	AwardHistory(ctx context.Context, year string) ([]leave.AwardLogEntry, error)
}

// YearData is everything an export needs about one financial year.
type YearData struct {
	Year     string
	Stats    leave.YearStats
	Balances []leave.LeaveBalance
	Awards   []leave.AwardLogEntry
	Names    map[string]string // employee ID -> name
}

// Collect gathers YearData. Employee names come from the directory; unknown
// IDs are printed as-is.
func Collect(ctx context.Context, src Source, dir leave.Directory, year string) (*YearData, error) {
	stats, err := src.GetFinancialYearStats(ctx, year)
	if err != nil {
		return nil, err
	}
	balances, err := src.BalancesForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("balances: %w", err)
	}
	awards, err := src.AwardHistory(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("award history: %w", err)
	}

	names := make(map[string]string)
	if dir != nil {
		employees, err := dir.ListEmployees(ctx, leave.EmployeeFilter{})
		if err != nil {
			return nil, fmt.Errorf("employees: %w", err)
		}
		for _, e := range employees {
			names[e.ID] = e.Name
		}
	}

	return &YearData{
		Year:     stats.FinancialYear,
		Stats:    stats,
		Balances: balances,
		Awards:   awards,
		Names:    names,
	}, nil
}

func (d *YearData) name(id string) string {
	if n, ok := d.Names[id]; ok && n != "" {
		return n
	}
	return id
}
