package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WriteReport writes a PDF summary of the year: headline totals followed by
// the award log.
func WriteReport(w io.Writer, d *YearData) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Annual leave "+d.Year, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Annual Leave Report "+d.Year)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		fmt.Sprintf("Employees with leave: %d", d.Stats.EmployeesWithLeave),
		fmt.Sprintf("Total entitled: %d days", d.Stats.TotalEntitled),
		fmt.Sprintf("Total used: %d days", d.Stats.TotalUsed),
		fmt.Sprintf("Total remaining: %d days", d.Stats.TotalRemaining),
		fmt.Sprintf("Average remaining: %s days", d.Stats.AverageRemaining.StringFixed(2)),
	} {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}
	pdf.Ln(5)

	widths := []float64{45, 15, 22, 108}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Employee", "Days", "Type", "Rationale"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, a := range d.Awards {
		pdf.CellFormat(widths[0], 6, d.name(a.EmployeeID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, fmt.Sprint(a.DaysAwarded), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, string(a.AwardType), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, a.Rationale, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	if len(d.Awards) == 0 {
		pdf.Cell(0, 7, "No awards recorded.")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
