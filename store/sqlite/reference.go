package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store"
)

// =============================================================================
// DIRECTORY (leave.Directory interface)
// =============================================================================

const employeeColumns = `id, name, email, employment_type, status, position, hire_date, department_id, section_id`

func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hire sql.NullString
	if !e.HireDate.IsZero() {
		hire = nullString(e.HireDate.String())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			employment_type = excluded.employment_type,
			status = excluded.status,
			position = excluded.position,
			hire_date = excluded.hire_date,
			department_id = excluded.department_id,
			section_id = excluded.section_id`,
		e.ID, e.Name, nullString(e.Email), e.EmploymentType, e.Status, e.Position,
		hire, nullString(e.DepartmentID), nullString(e.SectionID),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "employee", ID: id}
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, filter leave.EmployeeFilter) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx, filter, "")
}

func (s *Store) listEmployees(ctx context.Context, f leave.EmployeeFilter, sectionID string) ([]leave.Employee, error) {
	var (
		where []string
		args  []any
	)
	if f.EmploymentType != "" {
		where = append(where, "employment_type = ?")
		args = append(args, f.EmploymentType)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.DepartmentID != "" {
		where = append(where, "department_id = ?")
		args = append(args, f.DepartmentID)
	}
	if sectionID != "" {
		where = append(where, "section_id = ?")
		args = append(args, sectionID)
	}
	if len(f.Positions) > 0 {
		marks := make([]string, len(f.Positions))
		for i, p := range f.Positions {
			marks[i] = "?"
			args = append(args, p)
		}
		where = append(where, "position IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + employeeColumns + ` FROM employees`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	s.mu.RLock()
	defer s.mu.RUnlock()
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
	s.mu.RLock()
	defer s.mu.RUnlock()
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx, leave.EmployeeFilter{
		Status:    leave.StatusActive,
		Positions: leave.ExecutivePositions(),
	}, "")
}

func scanEmployee(row scanner) (*leave.Employee, error) {
	var (
		e                   leave.Employee
		email, hire         sql.NullString
		department, section sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Name, &email, &e.EmploymentType, &e.Status, &e.Position,
		&hire, &department, &section); err != nil {
		return nil, err
	}
	e.Email = email.String
	e.DepartmentID = department.String
	e.SectionID = section.String
	if hire.Valid {
		d, err := store.ParseDate(hire.String)
		if err != nil {
			return nil, fmt.Errorf("employee %s: %w", e.ID, err)
		}
		e.HireDate = d
	}
	return &e, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (id, name, counts_weekends) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, counts_weekends = excluded.counts_weekends`,
		lt.ID, lt.Name, lt.CountsWeekends)
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func (s *Store) GetLeaveType(ctx context.Context, id string) (*leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lt leave.LeaveType
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, counts_weekends FROM leave_types WHERE id = ?", id).
		Scan(&lt.ID, &lt.Name, &lt.CountsWeekends)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "leave type", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave type: %w", err)
	}
	return &lt, nil
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, counts_weekends FROM leave_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveType
	for rows.Next() {
		var lt leave.LeaveType
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.CountsWeekends); err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAYS (generic.HolidaySource interface)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, description, recurring) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date, name = excluded.name,
			description = excluded.description, recurring = excluded.recurring`,
		h.ID, h.Date.String(), h.Name, nullString(h.Description), h.Recurring)
	if err != nil {
		if isUniqueConstraintError(err) {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryHolidays(ctx, "SELECT id, date, name, description, recurring FROM holidays ORDER BY date, id")
}

// HolidaysBetween returns one-off holidays inside [from, to] and all
// recurring holidays, which the calendar expands per year.
func (s *Store) HolidaysBetween(ctx context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryHolidays(ctx, `
		SELECT id, date, name, description, recurring FROM holidays
		WHERE recurring = TRUE OR (date >= ? AND date <= ?)
		ORDER BY date, id`, from.String(), to.String())
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]generic.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var out []generic.Holiday
	for rows.Next() {
		var (
			h    generic.Holiday
			date string
			desc sql.NullString
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &desc, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = store.ParseDate(date); err != nil {
			return nil, err
		}
		h.Description = desc.String
		out = append(out, h)
	}
	return out, rows.Err()
}
