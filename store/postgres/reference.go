package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// DIRECTORY
// =============================================================================

const employeeColumns = `id, name, COALESCE(email, ''), employment_type, status, position, hire_date,
	COALESCE(department_id, ''), COALESCE(section_id, '')`

func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	var hire *time.Time
	if !e.HireDate.IsZero() {
		hire = &e.HireDate.Time
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employees (id, name, email, employment_type, status, position, hire_date, department_id, section_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			employment_type = EXCLUDED.employment_type,
			status = EXCLUDED.status,
			position = EXCLUDED.position,
			hire_date = EXCLUDED.hire_date,
			department_id = EXCLUDED.department_id,
			section_id = EXCLUDED.section_id`,
		e.ID, e.Name, nullable(e.Email), e.EmploymentType, e.Status, e.Position,
		hire, nullable(e.DepartmentID), nullable(e.SectionID))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "employee", ID: id}
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, f leave.EmployeeFilter) ([]leave.Employee, error) {
	return s.listEmployees(ctx, f, "")
}

func (s *Store) listEmployees(ctx context.Context, f leave.EmployeeFilter, sectionID string) ([]leave.Employee, error) {
	var w filter
	if f.EmploymentType != "" {
		w.add("employment_type = $%d", f.EmploymentType)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.DepartmentID != "" {
		w.add("department_id = $%d", f.DepartmentID)
	}
	if sectionID != "" {
		w.add("section_id = $%d", sectionID)
	}
	if len(f.Positions) > 0 {
		positions := make([]string, len(f.Positions))
		for i, p := range f.Positions {
			positions[i] = string(p)
		}
		w.add("position = ANY($%d)", positions)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+employeeColumns+` FROM employees`+w.where()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) SectionHeadOf(ctx context.Context, departmentID, sectionID string) (*leave.Employee, error) {
	if sectionID == "" {
		return nil, nil
	}
	heads, err := s.listEmployees(ctx, leave.EmployeeFilter{
		Status:       leave.StatusActive,
		Positions:    []leave.Position{leave.PositionSectionHead},
		DepartmentID: departmentID,
	}, sectionID)
	if err != nil || len(heads) == 0 {
		return nil, err
	}
	return &heads[0], nil
}

func (s *Store) DepartmentHeadOf(ctx context.Context, departmentID string) (*leave.Employee, error) {
	if departmentID == "" {
		return nil, nil
	}
	heads, err := s.listEmployees(ctx, leave.EmployeeFilter{
		Status:       leave.StatusActive,
		Positions:    []leave.Position{leave.PositionDeptHead},
		DepartmentID: departmentID,
	}, "")
	if err != nil || len(heads) == 0 {
		return nil, err
	}
	return &heads[0], nil
}

func (s *Store) ExecutivesOf(ctx context.Context) ([]leave.Employee, error) {
	return s.listEmployees(ctx, leave.EmployeeFilter{
		Status:    leave.StatusActive,
		Positions: leave.ExecutivePositions(),
	}, "")
}

func scanEmployee(row pgx.Row) (*leave.Employee, error) {
	var (
		e    leave.Employee
		hire *time.Time
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.EmploymentType, &e.Status, &e.Position,
		&hire, &e.DepartmentID, &e.SectionID); err != nil {
		return nil, err
	}
	if hire != nil {
		e.HireDate = generic.FromTime(*hire)
	}
	return &e, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leave_types (id, name, counts_weekends) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, counts_weekends = EXCLUDED.counts_weekends`,
		lt.ID, lt.Name, lt.CountsWeekends)
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func (s *Store) GetLeaveType(ctx context.Context, id string) (*leave.LeaveType, error) {
	var lt leave.LeaveType
	err := s.pool.QueryRow(ctx, "SELECT id, name, counts_weekends FROM leave_types WHERE id = $1", id).
		Scan(&lt.ID, &lt.Name, &lt.CountsWeekends)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "leave type", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave type: %w", err)
	}
	return &lt, nil
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, counts_weekends FROM leave_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (leave.LeaveType, error) {
		var lt leave.LeaveType
		err := row.Scan(&lt.ID, &lt.Name, &lt.CountsWeekends)
		return lt, err
	})
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO holidays (id, date, name, description, recurring) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date, name = EXCLUDED.name,
			description = EXCLUDED.description, recurring = EXCLUDED.recurring`,
		h.ID, h.Date.Time, h.Name, nullable(h.Description), h.Recurring)
	if err != nil {
		if isUniqueViolation(err) {
			return &generic.ConflictError{
				Resource: "holiday",
				Message:  fmt.Sprintf("holiday %q on %s already exists", h.Name, h.Date),
			}
		}
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM holidays WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	return s.queryHolidays(ctx, "SELECT id, date, name, COALESCE(description, ''), recurring FROM holidays ORDER BY date, id")
}

func (s *Store) HolidaysBetween(ctx context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	return s.queryHolidays(ctx, `
		SELECT id, date, name, COALESCE(description, ''), recurring FROM holidays
		WHERE recurring OR date BETWEEN $1 AND $2
		ORDER BY date, id`, from.Time, to.Time)
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]generic.Holiday, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (generic.Holiday, error) {
		var (
			h    generic.Holiday
			date time.Time
		)
		err := row.Scan(&h.ID, &date, &h.Name, &h.Description, &h.Recurring)
		h.Date = generic.FromTime(date)
		return h, err
	})
}

// truncate empties every table; used by tests.
func (s *Store) truncate(ctx context.Context) error {
	tables := []string{"leave_balances", "award_logs", "leave_applications", "employees", "leave_types", "holidays"}
	_, err := s.pool.Exec(ctx, "TRUNCATE "+strings.Join(tables, ", "))
	return err
}
