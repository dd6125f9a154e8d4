/*
handlers.go - HTTP API handlers for the leave lifecycle engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the leave package services.

ENDPOINTS:
  Day counting:
    POST   /api/leave-days/calculate               Chargeable days of a range

  Ledger:
    GET    /api/employees/{id}/balances             All rows for a year
    GET    /api/employees/{id}/balances/{typeID}    One row (zero if absent)
    POST   /api/admin/balances/credit               Set an entitlement

  Financial years:
    GET    /api/financial-years                     Current + started years
    POST   /api/financial-years/{year}/start        Manual award run
    GET    /api/financial-years/{year}/stats        Ledger totals
    GET    /api/financial-years/{year}/balances     Every row of the year
    GET    /api/financial-years/{year}/awards       Award log, newest first
    GET    /api/financial-years/{year}/export.xlsx  Workbook export
    GET    /api/financial-years/{year}/report.pdf   Award report

  Applications:
    POST   /api/applications                        Submit
    GET    /api/applications                        List (employee_id, status)
    GET    /api/applications/{id}                   Details
    POST   /api/applications/{id}/steps/{step}/approve
    POST   /api/applications/{id}/reject
    POST   /api/applications/{id}/cancel
    GET    /api/approvers/{id}/pending              Pending for an approver

  Reference data:
    GET    /api/employees, /api/employees/{id}, /api/leave-types
    GET    /api/holidays, POST /api/holidays, DELETE /api/holidays/{id}

ACTOR:
  Mutating endpoints read the acting employee from the X-Actor-ID header,
  which an upstream auth proxy sets. The header is passed to the domain
  per call and never stored.

ERROR HANDLING:
  statusFor() maps domain errors to HTTP status:
  - 400: Validation errors, invalid input
  - 403: Actor is not an assigned approver
  - 404: Resource not found
  - 409: Conflict (duplicate year, insufficient balance, closed application)
  - 207: Award batch finished with per-employee failures
  - 500: Internal errors (details logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - validate.go: Body decoding and validation
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/export"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// ActorHeader carries the acting employee's id.
const ActorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Deps bundles what NewHandler needs to build the services.
type Deps struct {
	Store    leave.Backend
	Notifier leave.Notifier
	Clock    generic.Clock
	Logger   *zap.Logger
	Award    leave.AwardConfig
}

// Handler holds the services behind the HTTP API.
type Handler struct {
	Store    leave.Backend
	Workflow *leave.Workflow
	Awards   *leave.AwardEngine
	Ledger   *leave.LedgerService
	Registry *leave.Registry
	Counter  *leave.DayCounter

	clock    generic.Clock
	logger   *zap.Logger
	validate *requestValidator
}

// NewHandler wires the leave services over one backend.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = generic.SystemClock{}
	}
	st := deps.Store
	counter := leave.NewDayCounter(st, st, deps.Logger)

	return &Handler{
		Store: st,
		Workflow: leave.NewWorkflow(leave.WorkflowDeps{
			Store:     st,
			Directory: st,
			Types:     st,
			Counter:   counter,
			Notifier:  deps.Notifier,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		}),
		Awards:   leave.NewAwardEngine(st, st, deps.Notifier, deps.Clock, deps.Logger, deps.Award),
		Ledger:   leave.NewLedgerService(st, deps.Clock),
		Registry: leave.NewRegistry(st, deps.Clock, deps.Award.AnnualLeaveTypeID),
		Counter:  counter,
		clock:    deps.Clock,
		logger:   deps.Logger.Named("api"),
		validate: newRequestValidator(),
	}
}

// =============================================================================
// HEALTH & DAY COUNTING
// =============================================================================

// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/leave-days/calculate
func (h *Handler) CalculateDays(w http.ResponseWriter, r *http.Request) {
	var req CalculateDaysRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	start, err := parseDateField("start_date", req.StartDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	end, err := parseDateField("end_date", req.EndDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	count, err := h.Counter.CalculateLeaveDays(r.Context(), start, end, req.LeaveTypeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayCountDTO(count))
}

// =============================================================================
// LEDGER
// =============================================================================

// GET /api/employees/{id}/balances?year=
func (h *Handler) ListEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearQuery(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	rows, err := h.Ledger.Balances(r.Context(), chi.URLParam(r, "id"), year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(rows))
}

// GET /api/employees/{id}/balances/{leaveTypeID}?year=
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearQuery(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	b, err := h.Ledger.GetBalance(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "leaveTypeID"), year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// POST /api/admin/balances/credit
func (h *Handler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	b, err := h.Ledger.Credit(r.Context(), leave.BalanceKey{
		EmployeeID:    req.EmployeeID,
		LeaveTypeID:   req.LeaveTypeID,
		FinancialYear: req.FinancialYear,
	}, req.Days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.logger.Info("balance credited",
		zap.String("employee_id", req.EmployeeID),
		zap.String("leave_type_id", req.LeaveTypeID),
		zap.String("year", req.FinancialYear),
		zap.Int("days", req.Days),
		zap.String("actor", actorID(r)))
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// =============================================================================
// FINANCIAL YEARS
// =============================================================================

// GET /api/financial-years
func (h *Handler) ListFinancialYears(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := h.Registry.CurrentFinancialYear()

	started, err := h.Registry.IsYearStarted(ctx, current.String())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	years, err := h.Registry.AvailableYears(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if years == nil {
		years = []string{}
	}

	writeJSON(w, http.StatusOK, FinancialYearsResponse{
		Current:        current.String(),
		CurrentStarted: started,
		AwardWindow:    generic.IsAwardWindow(generic.TodayOn(h.clock)),
		Available:      years,
	})
}

// POST /api/financial-years/{year}/start
//
// 201 when every eligible employee was processed, 207 when some inserts
// failed (the rest are committed), 409 when the year already has rows.
func (h *Handler) StartFinancialYear(w http.ResponseWriter, r *http.Request) {
	result, err := h.Awards.StartFinancialYear(r.Context(), chi.URLParam(r, "year"), actorID(r))

	var partial *generic.PartialBatchFailure
	if errors.As(err, &partial) && result != nil {
		writeJSON(w, http.StatusMultiStatus, toAwardResultDTO(result))
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAwardResultDTO(result))
}

// GET /api/financial-years/{year}/stats
func (h *Handler) GetYearStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Registry.GetFinancialYearStats(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearStatsDTO(stats))
}

// GET /api/financial-years/{year}/balances
func (h *Handler) ListYearBalances(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Registry.BalancesForYear(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(rows))
}

// GET /api/financial-years/{year}/awards
func (h *Handler) ListAwardHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Registry.AwardHistory(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAwardLogDTOs(entries))
}

// GET /api/financial-years/{year}/export.xlsx
func (h *Handler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	h.writeExport(w, r, "xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.WriteWorkbook)
}

// GET /api/financial-years/{year}/report.pdf
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	h.writeExport(w, r, "pdf", "application/pdf", export.WriteReport)
}

// writeExport renders into a buffer first so a failure still gets a JSON
// error instead of a truncated file.
func (h *Handler) writeExport(w http.ResponseWriter, r *http.Request, ext, contentType string,
	render func(io.Writer, *export.YearData) error) {
	data, err := export.Collect(r.Context(), h.Registry, h.Store, chi.URLParam(r, "year"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := render(&buf, data); err != nil {
		h.writeDomainError(w, fmt.Errorf("render %s: %w", ext, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="annual-leave-%s.%s"`, data.Year, ext))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// APPLICATIONS
// =============================================================================

// POST /api/applications
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req SubmitApplicationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	start, err := parseDateField("start_date", req.StartDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	end, err := parseDateField("end_date", req.EndDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	actor := actorID(r)
	employeeID := req.EmployeeID
	if employeeID == "" {
		employeeID = actor
	}

	app, err := h.Workflow.SubmitLeaveApplication(r.Context(), leave.SubmitRequest{
		EmployeeID:       employeeID,
		LeaveTypeID:      req.LeaveTypeID,
		StartDate:        start,
		EndDate:          end,
		Reason:           req.Reason,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
	}, actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationDTO(app))
}

// GET /api/applications?employee_id=&status=&limit=
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := leave.ApplicationFilter{
		EmployeeID: q.Get("employee_id"),
		Status:     leave.Status(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		h.writeDomainError(w, &generic.ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q", filter.Status),
		})
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeDomainError(w, &generic.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	apps, err := h.Workflow.ListApplications(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTOs(apps))
}

// GET /api/applications/{id}
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Workflow.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// POST /api/applications/{id}/steps/{step}/approve
func (h *Handler) ApproveStep(w http.ResponseWriter, r *http.Request) {
	step, err := leave.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	app, err := h.Workflow.ApproveStep(r.Context(), chi.URLParam(r, "id"), step, actorID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// POST /api/applications/{id}/reject
func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := h.decodeOptional(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	app, err := h.Workflow.RejectApplication(r.Context(), chi.URLParam(r, "id"), actorID(r), req.Comment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// POST /api/applications/{id}/cancel
func (h *Handler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Workflow.CancelApplication(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// GET /api/approvers/{id}/pending
func (h *Handler) ListPendingForApprover(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Workflow.PendingFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTOs(apps))
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	emps, err := h.Store.ListEmployees(r.Context(), leave.EmployeeFilter{
		EmploymentType: leave.EmploymentType(q.Get("employment_type")),
		Status:         leave.EmployeeStatus(q.Get("status")),
		DepartmentID:   q.Get("department_id"),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]EmployeeDTO, len(emps))
	for i, e := range emps {
		out[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// GET /api/leave-types
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListLeaveTypes(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		out[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		out[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	holiday := generic.Holiday{
		ID:          uuid.NewString(),
		Date:        date,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Recurring:   req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// actorID returns the X-Actor-ID header. An empty value is rejected by the
// domain services with a validation error.
func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// yearQuery returns ?year= or the current financial year.
func (h *Handler) yearQuery(r *http.Request) (string, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return h.Registry.CurrentFinancialYear().String(), nil
	}
	fy, err := generic.ParseFinancialYear(raw)
	if err != nil {
		return "", err
	}
	return fy.String(), nil
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var partial *generic.PartialBatchFailure
	switch {
	case errors.As(err, &partial):
		return http.StatusMultiStatus
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrUnauthorizedApprover):
		return http.StatusForbidden
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with the status from statusFor. Internal
// errors are logged and replaced by a generic message.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error", nil)
		return
	}
	writeError(w, status, err.Error(), nil)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
