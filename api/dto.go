/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. These types decouple
	the leave domain model from the external API contract, so field names
	and date formats can stay stable while the engine evolves.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around several DTOs

TYPES:

	Day counting:
	  CalculateDaysRequest, DayCountDTO

	Ledger:
	  BalanceDTO, CreditRequest

	Financial years:
	  FinancialYearsResponse, YearStatsDTO, AwardResultDTO, AwardLogDTO

	Applications:
	  SubmitApplicationRequest, RejectRequest, ApplicationDTO, StepDTO

	Reference data:
	  EmployeeDTO, LeaveTypeDTO, HolidayDTO, CreateHolidayRequest

	Scenarios:
	  ScenarioDTO, LoadScenarioRequest

VALIDATION:

	Request types carry validator/v10 struct tags. Handlers call
	h.decode(), which decodes the body and runs the tags. Dates travel as
	YYYY-MM-DD strings and are parsed after validation.

SEE ALSO:
  - validate.go: Validator setup and custom tags
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// DAY COUNTING
// =============================================================================

// CalculateDaysRequest asks for the chargeable length of a date range.
type CalculateDaysRequest struct {
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	LeaveTypeID string `json:"leave_type_id" validate:"required"`
}

// DayCountDTO is the result of a day count.
type DayCountDTO struct {
	Days      int    `json:"days"`
	Note      string `json:"note"`
	LeaveType string `json:"leave_type"`
	Mode      string `json:"mode"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Fallback  bool   `json:"fallback,omitempty"`
}

func toDayCountDTO(c leave.DayCount) DayCountDTO {
	return DayCountDTO{
		Days:      c.Days,
		Note:      c.PolicyNote,
		LeaveType: c.LeaveTypeName,
		Mode:      string(c.Mode),
		StartDate: c.Period.Start.String(),
		EndDate:   c.Period.End.String(),
		Fallback:  c.Fallback,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// BalanceDTO is one ledger row. Exists is false for the zero sentinel
// returned when an employee has no row for the key.
type BalanceDTO struct {
	EmployeeID    string     `json:"employee_id"`
	LeaveTypeID   string     `json:"leave_type_id"`
	FinancialYear string     `json:"financial_year"`
	Entitled      int        `json:"entitled_days"`
	Used          int        `json:"used_days"`
	Remaining     int        `json:"remaining_days"`
	Exists        bool       `json:"exists"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func toBalanceDTO(b leave.LeaveBalance) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID:    b.EmployeeID,
		LeaveTypeID:   b.LeaveTypeID,
		FinancialYear: b.FinancialYear,
		Entitled:      b.Entitled,
		Used:          b.Used,
		Remaining:     b.Remaining,
		Exists:        b.Exists,
	}
	if !b.UpdatedAt.IsZero() {
		updated := b.UpdatedAt
		dto.UpdatedAt = &updated
	}
	return dto
}

func toBalanceDTOs(rows []leave.LeaveBalance) []BalanceDTO {
	out := make([]BalanceDTO, len(rows))
	for i, b := range rows {
		b.Exists = true
		out[i] = toBalanceDTO(b)
	}
	return out
}

// CreditRequest sets an entitlement directly (admin adjustment).
type CreditRequest struct {
	EmployeeID    string `json:"employee_id" validate:"required"`
	LeaveTypeID   string `json:"leave_type_id" validate:"required"`
	FinancialYear string `json:"financial_year" validate:"required,financial_year"`
	Days          int    `json:"days" validate:"gt=0"`
}

// =============================================================================
// FINANCIAL YEARS
// =============================================================================

// FinancialYearsResponse lists the current and the started years.
type FinancialYearsResponse struct {
	Current        string   `json:"current"`
	CurrentStarted bool     `json:"current_started"`
	AwardWindow    bool     `json:"award_window"`
	Available      []string `json:"available"`
}

// YearStatsDTO summarizes annual leave for one year.
type YearStatsDTO struct {
	FinancialYear      string          `json:"financial_year"`
	EmployeesWithLeave int             `json:"employees_with_leave"`
	TotalEntitled      int             `json:"total_entitled"`
	TotalUsed          int             `json:"total_used"`
	TotalRemaining     int             `json:"total_remaining"`
	AverageRemaining   decimal.Decimal `json:"average_remaining"`
}

func toYearStatsDTO(s leave.YearStats) YearStatsDTO {
	return YearStatsDTO{
		FinancialYear:      s.FinancialYear,
		EmployeesWithLeave: s.EmployeesWithLeave,
		TotalEntitled:      s.TotalEntitled,
		TotalUsed:          s.TotalUsed,
		TotalRemaining:     s.TotalRemaining,
		AverageRemaining:   s.AverageRemaining,
	}
}

// AwardResultDTO reports an award run.
type AwardResultDTO struct {
	FinancialYear  string           `json:"financial_year"`
	Method         string           `json:"method"`
	AwardedCount   int              `json:"awarded_count"`
	TotalProcessed int              `json:"total_processed"`
	Details        []AwardDetailDTO `json:"details"`
	Skipped        []AwardSkipDTO   `json:"skipped"`
	Errors         []ItemErrorDTO   `json:"errors"`
}

type AwardDetailDTO struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	HireDate     string `json:"hire_date"`
	DaysAwarded  int    `json:"days_awarded"`
	AwardType    string `json:"award_type"`
	Rationale    string `json:"rationale"`
}

type AwardSkipDTO struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

type ItemErrorDTO struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

func toAwardResultDTO(r *leave.AwardResult) AwardResultDTO {
	dto := AwardResultDTO{
		FinancialYear:  r.FinancialYear,
		Method:         string(r.Method),
		AwardedCount:   r.AwardedCount,
		TotalProcessed: r.TotalProcessed,
		Details:        make([]AwardDetailDTO, len(r.Details)),
		Skipped:        make([]AwardSkipDTO, len(r.Skipped)),
		Errors:         make([]ItemErrorDTO, len(r.Errors)),
	}
	for i, d := range r.Details {
		dto.Details[i] = AwardDetailDTO{
			EmployeeID:   d.EmployeeID,
			EmployeeName: d.EmployeeName,
			HireDate:     d.HireDate.String(),
			DaysAwarded:  d.DaysAwarded,
			AwardType:    string(d.AwardType),
			Rationale:    d.Rationale,
		}
	}
	for i, s := range r.Skipped {
		dto.Skipped[i] = AwardSkipDTO{EmployeeID: s.EmployeeID, Reason: s.Reason}
	}
	for i, f := range r.Errors {
		dto.Errors[i] = ItemErrorDTO{EmployeeID: f.ItemID, Error: f.Err.Error()}
	}
	return dto
}

// AwardLogDTO is one award audit entry.
type AwardLogDTO struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employee_id"`
	FinancialYear string    `json:"financial_year"`
	LeaveTypeID   string    `json:"leave_type_id"`
	DaysAwarded   int       `json:"days_awarded"`
	AwardType     string    `json:"award_type"`
	Rationale     string    `json:"rationale"`
	AwardedBy     string    `json:"awarded_by"`
	AwardMethod   string    `json:"award_method"`
	Notes         string    `json:"notes,omitempty"`
	AwardedAt     time.Time `json:"awarded_at"`
}

func toAwardLogDTOs(entries []leave.AwardLogEntry) []AwardLogDTO {
	out := make([]AwardLogDTO, len(entries))
	for i, e := range entries {
		out[i] = AwardLogDTO{
			ID:            e.ID,
			EmployeeID:    e.EmployeeID,
			FinancialYear: e.FinancialYear,
			LeaveTypeID:   e.LeaveTypeID,
			DaysAwarded:   e.DaysAwarded,
			AwardType:     string(e.AwardType),
			Rationale:     e.Rationale,
			AwardedBy:     e.AwardedBy,
			AwardMethod:   string(e.AwardMethod),
			Notes:         e.Notes,
			AwardedAt:     e.AwardedAt,
		}
	}
	return out
}

// =============================================================================
// APPLICATIONS
// =============================================================================

// SubmitApplicationRequest is the applicant's form. EmployeeID defaults to
// the actor when empty.
type SubmitApplicationRequest struct {
	EmployeeID       string `json:"employee_id"`
	LeaveTypeID      string `json:"leave_type_id" validate:"required"`
	StartDate        string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate          string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason           string `json:"reason" validate:"max=1000"`
	EmergencyContact string `json:"emergency_contact" validate:"max=200"`
	EmergencyPhone   string `json:"emergency_phone" validate:"max=50"`
}

// RejectRequest carries the optional rejection comment.
type RejectRequest struct {
	Comment string `json:"comment" validate:"max=1000"`
}

// StepDTO is one approval step.
type StepDTO struct {
	State     string     `json:"state"`
	Approvers []string   `json:"approvers,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

func toStepDTO(r leave.StepRecord) StepDTO {
	return StepDTO{
		State:     string(r.State),
		Approvers: r.Approvers,
		DecidedBy: r.DecidedBy,
		DecidedAt: r.DecidedAt,
	}
}

// ApplicationDTO is a leave application with its step records.
type ApplicationDTO struct {
	ID               string     `json:"id"`
	EmployeeID       string     `json:"employee_id"`
	LeaveTypeID      string     `json:"leave_type_id"`
	StartDate        string     `json:"start_date"`
	EndDate          string     `json:"end_date"`
	FinancialYear    string     `json:"financial_year"`
	DaysRequested    int        `json:"days_requested"`
	Reason           string     `json:"reason,omitempty"`
	EmergencyContact string     `json:"emergency_contact,omitempty"`
	EmergencyPhone   string     `json:"emergency_phone,omitempty"`
	Status           string     `json:"status"`
	SectionHead      StepDTO    `json:"section_head_approval"`
	DeptHead         StepDTO    `json:"dept_head_approval"`
	HR               StepDTO    `json:"hr_approval"`
	PendingApprovers []string   `json:"pending_approvers"`
	SubmittedBy      string     `json:"submitted_by"`
	DecisionComment  string     `json:"decision_comment,omitempty"`
	AppliedAt        time.Time  `json:"applied_at"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	Version          int        `json:"version"`
}

func toApplicationDTO(a *leave.Application) ApplicationDTO {
	pending := a.PendingApprovers()
	if pending == nil {
		pending = []string{}
	}
	return ApplicationDTO{
		ID:               a.ID,
		EmployeeID:       a.EmployeeID,
		LeaveTypeID:      a.LeaveTypeID,
		StartDate:        a.StartDate.String(),
		EndDate:          a.EndDate.String(),
		FinancialYear:    a.FinancialYear,
		DaysRequested:    a.DaysRequested,
		Reason:           a.Reason,
		EmergencyContact: a.EmergencyContact,
		EmergencyPhone:   a.EmergencyPhone,
		Status:           string(a.Status),
		SectionHead:      toStepDTO(a.SectionHeadApproval),
		DeptHead:         toStepDTO(a.DeptHeadApproval),
		HR:               toStepDTO(a.HRApproval),
		PendingApprovers: pending,
		SubmittedBy:      a.SubmittedBy,
		DecisionComment:  a.DecisionComment,
		AppliedAt:        a.AppliedAt,
		DecidedAt:        a.DecidedAt,
		Version:          a.Version,
	}
}

func toApplicationDTOs(apps []leave.Application) []ApplicationDTO {
	out := make([]ApplicationDTO, len(apps))
	for i := range apps {
		out[i] = toApplicationDTO(&apps[i])
	}
	return out
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// EmployeeDTO represents a directory record in API responses.
type EmployeeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	EmploymentType string `json:"employment_type"`
	Status         string `json:"status"`
	Position       string `json:"position"`
	HireDate       string `json:"hire_date,omitempty"`
	DepartmentID   string `json:"department_id,omitempty"`
	SectionID      string `json:"section_id,omitempty"`
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:             e.ID,
		Name:           e.Name,
		Email:          e.Email,
		EmploymentType: string(e.EmploymentType),
		Status:         string(e.Status),
		Position:       string(e.Position),
		DepartmentID:   e.DepartmentID,
		SectionID:      e.SectionID,
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.String()
	}
	return dto
}

type LeaveTypeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CountsWeekends bool   `json:"counts_weekends"`
	Mode           string `json:"mode"`
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{ID: lt.ID, Name: lt.Name, CountsWeekends: lt.CountsWeekends, Mode: string(lt.Mode())}
}

// HolidayDTO represents a company holiday.
type HolidayDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Recurring   bool   `json:"recurring"`
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:          h.ID,
		Date:        h.Date.String(),
		Name:        h.Name,
		Description: h.Description,
		Recurring:   h.Recurring,
	}
}

// CreateHolidayRequest registers a holiday.
type CreateHolidayRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	Recurring   bool   `json:"recurring"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo data set.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
