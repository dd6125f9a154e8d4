/*
scenarios.go - Demo data loaders for testing and demonstrations

PURPOSE:

	Provides pre-built organizations that populate the directory, the leave
	type catalog and the holiday calendar with realistic data. The ledger is
	never touched: balances come from starting the financial year.

AVAILABLE SCENARIOS:

	small-office:    One department with every position, three leave types
	mid-year-hires:  small-office plus officers hired during the current
	                 financial year (prorated awards)

HOW SCENARIOS WORK:
 1. Upsert leave types
 2. Upsert holidays (stable ids, so reloading is idempotent)
 3. Upsert employees

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-office"}

	then POST /api/financial-years/{year}/start to award the year.

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' with ID, name, description and loader
 2. Loaders receive the current financial year for relative hire dates

SEE ALSO:
  - handlers.go: API handlers
  - cmd/leavectl: "seed" command
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, st leave.ReferenceStore, fy generic.FinancialYear) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "small-office",
			Name:        "Small Office",
			Description: "One department and section with every position, annual/sick/maternity leave",
		},
		load: loadSmallOffice,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "mid-year-hires",
			Name:        "Mid-Year Hires",
			Description: "Small office plus officers hired during the current financial year",
		},
		load: loadMidYearHires,
	},
}

// Scenarios lists the available demo data sets.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	return out
}

// LoadScenario upserts the reference data of scenario id into st.
func LoadScenario(ctx context.Context, st leave.ReferenceStore, id string, fy generic.FinancialYear) error {
	for _, s := range scenarios {
		if s.ID == id {
			return s.load(ctx, st, fy)
		}
	}
	return &generic.NotFoundError{Kind: "scenario", ID: id}
}

// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	fy := h.Registry.CurrentFinancialYear()
	if err := LoadScenario(r.Context(), h.Store, req.ScenarioID, fy); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "loaded",
		"scenario_id":    req.ScenarioID,
		"financial_year": fy.String(),
	})
}

// =============================================================================
// LOADERS
// =============================================================================

func loadSmallOffice(ctx context.Context, st leave.ReferenceStore, _ generic.FinancialYear) error {
	types := []leave.LeaveType{
		{ID: leave.DefaultAnnualLeaveTypeID, Name: "Annual Leave"},
		{ID: "sick", Name: "Sick Leave"},
		{ID: "maternity", Name: "Maternity Leave", CountsWeekends: true},
	}
	for _, lt := range types {
		if err := st.SaveLeaveType(ctx, lt); err != nil {
			return fmt.Errorf("save leave type %s: %w", lt.ID, err)
		}
	}

	holidays := []generic.Holiday{
		{ID: "hol-new-year", Date: generic.MustDate("2000-01-01"), Name: "New Year's Day", Recurring: true},
		{ID: "hol-labour", Date: generic.MustDate("2000-05-01"), Name: "Labour Day", Recurring: true},
		{ID: "hol-christmas", Date: generic.MustDate("2000-12-25"), Name: "Christmas Day", Recurring: true},
		{ID: "hol-boxing", Date: generic.MustDate("2000-12-26"), Name: "Boxing Day", Recurring: true},
	}
	for _, hol := range holidays {
		if err := st.SaveHoliday(ctx, hol); err != nil && !generic.IsConflict(err) {
			return fmt.Errorf("save holiday %s: %w", hol.ID, err)
		}
	}

	staff := []struct {
		id, name string
		pos      leave.Position
		hired    string
		empType  leave.EmploymentType
	}{
		{"bod-1", "Grace Mensah", leave.PositionBODChairman, "2010-03-01", leave.EmploymentPermanent},
		{"md-1", "Daniel Osei", leave.PositionManagingDirector, "2012-07-01", leave.EmploymentPermanent},
		{"hr-1", "Ama Boateng", leave.PositionHRManager, "2015-01-05", leave.EmploymentPermanent},
		{"mgr-1", "Kofi Asante", leave.PositionManager, "2016-09-12", leave.EmploymentPermanent},
		{"dh-1", "Efua Owusu", leave.PositionDeptHead, "2017-02-01", leave.EmploymentPermanent},
		{"sh-1", "Yaw Darko", leave.PositionSectionHead, "2018-06-18", leave.EmploymentPermanent},
		{"off-1", "Akosua Frimpong", leave.PositionOfficer, "2019-04-01", leave.EmploymentPermanent},
		{"off-2", "Kwame Addo", leave.PositionOfficer, "2021-10-11", leave.EmploymentPermanent},
		{"ct-1", "Esi Appiah", leave.PositionOfficer, "2023-01-09", leave.EmploymentContract},
	}
	for _, s := range staff {
		e := demoEmployee(s.id, s.name, s.pos, generic.MustDate(s.hired))
		e.EmploymentType = s.empType
		if err := st.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("save employee %s: %w", s.id, err)
		}
	}
	return nil
}

func loadMidYearHires(ctx context.Context, st leave.ReferenceStore, fy generic.FinancialYear) error {
	if err := loadSmallOffice(ctx, st, fy); err != nil {
		return err
	}
	// Quarter, half and three-quarters into the year.
	hires := []struct {
		id, name string
		offset   int
	}{
		{"new-1", "Abena Quaye", 92},
		{"new-2", "Kojo Mensah", 184},
		{"new-3", "Adjoa Tetteh", 273},
	}
	for _, nh := range hires {
		e := demoEmployee(nh.id, nh.name, leave.PositionOfficer, fy.Start().AddDays(nh.offset))
		if err := st.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("save employee %s: %w", nh.id, err)
		}
	}
	return nil
}

func demoEmployee(id, name string, pos leave.Position, hired generic.TimePoint) leave.Employee {
	e := leave.Employee{
		ID:             id,
		Name:           name,
		Email:          id + "@example.com",
		EmploymentType: leave.EmploymentPermanent,
		Status:         leave.StatusActive,
		Position:       pos,
		HireDate:       hired,
	}
	// The executive tier sits outside the department.
	switch pos {
	case leave.PositionBODChairman, leave.PositionManagingDirector, leave.PositionHRManager:
	default:
		e.DepartmentID = "ops"
		e.SectionID = "line-1"
	}
	return e
}
