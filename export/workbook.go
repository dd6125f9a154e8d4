package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook.
const (
	SheetSummary  = "Summary"
	SheetBalances = "Balances"
	SheetAwards   = "Awards"
)

// WriteWorkbook writes the year as an xlsx document with one sheet each for
// the summary, the balance rows and the award log.
func WriteWorkbook(w io.Writer, d *YearData) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetBalances, SheetAwards} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return err
	}

	summary := [][]any{
		{"Financial year", d.Year},
		{"Employees with leave", d.Stats.EmployeesWithLeave},
		{"Total entitled", d.Stats.TotalEntitled},
		{"Total used", d.Stats.TotalUsed},
		{"Total remaining", d.Stats.TotalRemaining},
		{"Average remaining", d.Stats.AverageRemaining.InexactFloat64()},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "A6", header); err != nil {
		return err
	}

	balances := [][]any{{"Employee ID", "Employee", "Leave type", "Entitled", "Used", "Remaining"}}
	for _, b := range d.Balances {
		balances = append(balances, []any{b.EmployeeID, d.name(b.EmployeeID), b.LeaveTypeID, b.Entitled, b.Used, b.Remaining})
	}
	if err := writeRows(f, SheetBalances, balances); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetBalances, "A1", "F1", header); err != nil {
		return err
	}

	awards := [][]any{{"Employee ID", "Employee", "Days", "Type", "Method", "Rationale", "Awarded by", "Awarded at"}}
	for _, a := range d.Awards {
		awards = append(awards, []any{
			a.EmployeeID, d.name(a.EmployeeID), a.DaysAwarded, string(a.AwardType), string(a.AwardMethod),
			a.Rationale, a.AwardedBy, a.AwardedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeRows(f, SheetAwards, awards); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetAwards, "A1", "H1", header); err != nil {
		return err
	}

	_ = f.SetColWidth(SheetSummary, "A", "A", 24)
	_ = f.SetColWidth(SheetBalances, "A", "C", 18)
	_ = f.SetColWidth(SheetAwards, "F", "F", 60)
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
