/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:

	Tests that each scenario sets up the expected reference data and that
	starting the year afterwards produces the expected awards.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

func TestScenario_SmallOffice(t *testing.T) {
	// GIVEN: an empty store
	st := memory.New()
	ctx := context.Background()

	// WHEN: loading twice (idempotent)
	fy := generic.NewFinancialYear(2024)
	require.NoError(t, LoadScenario(ctx, st, "small-office", fy))
	require.NoError(t, LoadScenario(ctx, st, "small-office", fy))

	// THEN
	emps, err := st.ListEmployees(ctx, leave.EmployeeFilter{})
	require.NoError(t, err)
	assert.Len(t, emps, 9)

	head, err := st.SectionHeadOf(ctx, "ops", "line-1")
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "sh-1", head.ID)

	execs, err := st.ExecutivesOf(ctx)
	require.NoError(t, err)
	assert.Len(t, execs, 2, "hr manager and managing director")

	holidays, err := st.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, holidays, 4)

	types, err := st.ListLeaveTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 3)
}

func TestScenario_MidYearHires_Prorated(t *testing.T) {
	// GIVEN: three officers hired during 2024-2025
	srv := setupTestServer(t, july2)
	rec := srv.do(t, http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "mid-year-hires"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN
	rec = srv.do(t, http.MethodPost, "/api/financial-years/"+testYear+"/start", "hr-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: the new hires are prorated, later hires get fewer days
	result := decodeAs[AwardResultDTO](t, rec)
	assert.Equal(t, 11, result.AwardedCount)

	days := map[string]int{}
	for _, d := range result.Details {
		days[d.EmployeeID] = d.DaysAwarded
		if d.EmployeeID == "new-1" || d.EmployeeID == "new-2" || d.EmployeeID == "new-3" {
			assert.Equal(t, "prorated", d.AwardType, d.EmployeeID)
		}
	}
	assert.Greater(t, days["new-1"], days["new-2"])
	assert.Greater(t, days["new-2"], days["new-3"])
	assert.Greater(t, days["new-3"], 0)
	assert.Less(t, days["new-1"], 30)
}

func TestScenario_Endpoints(t *testing.T) {
	srv := setupTestServer(t, july2)

	rec := srv.do(t, http.MethodGet, "/api/scenarios", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]ScenarioDTO](t, rec), 2)

	rec = srv.do(t, http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/scenarios/load", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
