package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.d.employees[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "employee", ID: id}
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context, filter leave.EmployeeFilter) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.employeesLocked(filter), nil
}

func (m *Memory) employeesLocked(filter leave.EmployeeFilter) []leave.Employee {
	var out []leave.Employee
	for _, e := range m.d.employees {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) SectionHeadOf(_ context.Context, departmentID, sectionID string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employeesLocked(leave.EmployeeFilter{
		Status:       leave.StatusActive,
		Positions:    []leave.Position{leave.PositionSectionHead},
		DepartmentID: departmentID,
	}) {
		if e.SectionID == sectionID {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) DepartmentHeadOf(_ context.Context, departmentID string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	heads := m.employeesLocked(leave.EmployeeFilter{
		Status:       leave.StatusActive,
		Positions:    []leave.Position{leave.PositionDeptHead},
		DepartmentID: departmentID,
	})
	if len(heads) == 0 {
		return nil, nil
	}
	return &heads[0], nil
}

func (m *Memory) ExecutivesOf(context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.employeesLocked(leave.EmployeeFilter{
		Status:    leave.StatusActive,
		Positions: leave.ExecutivePositions(),
	}), nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (m *Memory) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.leaveTypes[lt.ID] = lt
	return nil
}

func (m *Memory) GetLeaveType(_ context.Context, id string) (*leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lt, ok := m.d.leaveTypes[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "leave type", ID: id}
	}
	return &lt, nil
}

func (m *Memory) ListLeaveTypes(context.Context) ([]leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.LeaveType, 0, len(m.d.leaveTypes))
	for _, lt := range m.d.leaveTypes {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) SaveHoliday(_ context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.d.holidays {
		if id != h.ID && existing.Name == h.Name && existing.Date.Equal(h.Date) {
			return &generic.ConflictError{
				Resource: "holiday",
				Message:  fmt.Sprintf("holiday %q on %s already exists", h.Name, h.Date),
			}
		}
	}
	m.d.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.d.holidays[id]; !ok {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	delete(m.d.holidays, id)
	return nil
}

func (m *Memory) ListHolidays(context.Context) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]generic.Holiday, 0, len(m.d.holidays))
	for _, h := range m.d.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// HolidaysBetween returns one-off holidays inside [from, to] and every
// recurring holiday; the calendar expands recurrences.
func (m *Memory) HolidaysBetween(ctx context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	all, err := m.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	return generic.StaticHolidays(all).HolidaysBetween(ctx, from, to)
}
