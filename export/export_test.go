package export_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/leave-engine/export"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

const year = "2024-2025"

// startedYear returns the data of a year with one full and one prorated award.
func startedYear(t *testing.T) *export.YearData {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	clock := generic.FixedClock(time.Date(2024, time.July, 1, 8, 0, 0, 0, time.UTC))

	for _, e := range []leave.Employee{
		{ID: "hr-1", Name: "Grace Hopper", Position: leave.PositionHRManager, HireDate: generic.MustDate("2015-01-01")},
		{ID: "off-1", Name: "Alan Turing", Position: leave.PositionOfficer, HireDate: generic.MustDate("2024-09-01")},
	} {
		e.EmploymentType = leave.EmploymentPermanent
		e.Status = leave.StatusActive
		require.NoError(t, st.SaveEmployee(ctx, e))
	}

	_, err := leave.NewAwardEngine(st, st, nil, clock, nil, leave.AwardConfig{}).
		StartFinancialYear(ctx, year, "hr-1")
	require.NoError(t, err)

	d, err := export.Collect(ctx, leave.NewRegistry(st, clock, ""), st, year)
	require.NoError(t, err)
	return d
}

func TestCollect(t *testing.T) {
	d := startedYear(t)

	assert.Equal(t, year, d.Year)
	assert.Len(t, d.Balances, 2)
	assert.Len(t, d.Awards, 2)
	assert.Equal(t, 55, d.Stats.TotalEntitled)
	assert.Equal(t, "Alan Turing", d.Names["off-1"])
}

func TestCollect_InvalidYear(t *testing.T) {
	st := memory.New()
	_, err := export.Collect(context.Background(), leave.NewRegistry(st, nil, ""), st, "2024")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestWriteWorkbook(t *testing.T) {
	// GIVEN
	d := startedYear(t)
	var buf bytes.Buffer

	// WHEN
	require.NoError(t, export.WriteWorkbook(&buf, d))

	// THEN: the workbook reads back with all three sheets
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.SheetSummary, export.SheetBalances, export.SheetAwards}, f.GetSheetList())

	summary, err := f.GetRows(export.SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Financial year", year}, summary[0])
	assert.Equal(t, []string{"Total entitled", "55"}, summary[2])

	balances, err := f.GetRows(export.SheetBalances)
	require.NoError(t, err)
	require.Len(t, balances, 3)
	assert.Equal(t, "Employee ID", balances[0][0])
	assert.Equal(t, []string{"hr-1", "Grace Hopper", "annual", "30", "0", "30"}, balances[1])

	awards, err := f.GetRows(export.SheetAwards)
	require.NoError(t, err)
	require.Len(t, awards, 3)
	assert.Contains(t, []string{awards[1][3], awards[2][3]}, "prorated")
}

func TestWriteReport(t *testing.T) {
	d := startedYear(t)
	var buf bytes.Buffer

	require.NoError(t, export.WriteReport(&buf, d))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestWriteReport_EmptyYear(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, export.WriteReport(&buf, &export.YearData{Year: year}))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
