// Package memory provides an in-memory leave.Backend for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one RWMutex. Transactions
// hold the write lock for their whole duration, so they are serialized.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

type data struct {
	balances   map[leave.BalanceKey]leave.LeaveBalance
	awardLogs  []leave.AwardLogEntry
	apps       map[string]leave.Application
	employees  map[string]leave.Employee
	leaveTypes map[string]leave.LeaveType
	holidays   map[string]generic.Holiday
}

func newData() *data {
	return &data{
		balances:   make(map[leave.BalanceKey]leave.LeaveBalance),
		apps:       make(map[string]leave.Application),
		employees:  make(map[string]leave.Employee),
		leaveTypes: make(map[string]leave.LeaveType),
		holidays:   make(map[string]generic.Holiday),
	}
}

// New creates an empty store.
func New() *Memory {
	return &Memory{d: newData()}
}

var _ leave.Backend = (*Memory)(nil)

func (m *Memory) Close() error { return nil }

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(&view{d: m.d}); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.balances {
		c.balances[k] = v
	}
	c.awardLogs = append([]leave.AwardLogEntry(nil), d.awardLogs...)
	for k, v := range d.apps {
		c.apps[k] = cloneApplication(v)
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.leaveTypes {
		c.leaveTypes[k] = v
	}
	for k, v := range d.holidays {
		c.holidays[k] = v
	}
	return c
}

func cloneApplication(a leave.Application) leave.Application {
	for _, step := range leave.AllSteps {
		rec := a.Step(step)
		rec.Approvers = append([]string(nil), rec.Approvers...)
		if rec.DecidedAt != nil {
			t := *rec.DecidedAt
			rec.DecidedAt = &t
		}
	}
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		a.DecidedAt = &t
	}
	return a
}

// =============================================================================
// LOCKED ENTRY POINTS - Delegate to the unlocked view
// =============================================================================

func (m *Memory) read() *view {
	m.mu.RLock()
	return &view{d: m.d}
}

func (m *Memory) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	v := m.read()
	defer m.mu.RUnlock()
	return v.GetBalance(ctx, key)
}

func (m *Memory) GetBalanceForUpdate(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return m.GetBalance(ctx, key)
}

func (m *Memory) PutBalance(ctx context.Context, b leave.LeaveBalance) error {
	return m.WithTx(ctx, func(s leave.Store) error { return s.PutBalance(ctx, b) })
}

func (m *Memory) ListBalances(ctx context.Context, filter leave.BalanceFilter) ([]leave.LeaveBalance, error) {
	v := m.read()
	defer m.mu.RUnlock()
	return v.ListBalances(ctx, filter)
}

func (m *Memory) CountBalancesForYear(ctx context.Context, year string) (int, error) {
	v := m.read()
	defer m.mu.RUnlock()
	return v.CountBalancesForYear(ctx, year)
}

func (m *Memory) ListFinancialYears(ctx context.Context) ([]string, error) {
	v := m.read()
	defer m.mu.RUnlock()
	return v.ListFinancialYears(ctx)
}

func (m *Memory) LockFinancialYear(context.Context, string) error { return nil }

func (m *Memory) CreateAward(ctx context.Context, b leave.LeaveBalance, entry leave.AwardLogEntry) error {
	return m.WithTx(ctx, func(s leave.Store) error { return s.CreateAward(ctx, b, entry) })
}

func (m *Memory) ListAwardLogs(ctx context.Context, year string) ([]leave.AwardLogEntry, error) {
	v := m.read()
	defer m.mu.RUnlock()
	return v.ListAwardLogs(ctx, year)
}

func (m *Memory) CreateApplication(ctx context.Context, a leave.Application) error {
	return m.WithTx(ctx, func(s leave.Store) error { return s.CreateApplication(ctx, a) })
}

func (m *Memory) UpdateApplication(ctx context.Context, a leave.Application) error {
	return m.WithTx(ctx, func(s leave.Store) error { return s.UpdateApplication(ctx, a) })
}

func (m *Memory) GetApplication(ctx context.Context, id string) (*leave.Application, error) {
	v := m.read()
	defer m.mu.RUnlock()
	return v.GetApplication(ctx, id)
}

func (m *Memory) GetApplicationForUpdate(ctx context.Context, id string) (*leave.Application, error) {
	return m.GetApplication(ctx, id)
}

func (m *Memory) ListApplications(ctx context.Context, filter leave.ApplicationFilter) ([]leave.Application, error) {
	v := m.read()
	defer m.mu.RUnlock()
	return v.ListApplications(ctx, filter)
}

// =============================================================================
// VIEW - leave.Store over data, caller holds the lock
// =============================================================================

type view struct {
	d *data
}

func (v *view) GetBalance(_ context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	b, ok := v.d.balances[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (v *view) PutBalance(_ context.Context, b leave.LeaveBalance) error {
	b.Exists = true
	v.d.balances[b.Key()] = b
	return nil
}

func (v *view) ListBalances(_ context.Context, f leave.BalanceFilter) ([]leave.LeaveBalance, error) {
	var out []leave.LeaveBalance
	for _, b := range v.d.balances {
		if f.EmployeeID != "" && b.EmployeeID != f.EmployeeID {
			continue
		}
		if f.LeaveTypeID != "" && b.LeaveTypeID != f.LeaveTypeID {
			continue
		}
		if f.FinancialYear != "" && b.FinancialYear != f.FinancialYear {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		if out[i].FinancialYear != out[j].FinancialYear {
			return out[i].FinancialYear < out[j].FinancialYear
		}
		return out[i].LeaveTypeID < out[j].LeaveTypeID
	})
	return out, nil
}

func (v *view) CountBalancesForYear(_ context.Context, year string) (int, error) {
	n := 0
	for k := range v.d.balances {
		if k.FinancialYear == year {
			n++
		}
	}
	return n, nil
}

func (v *view) ListFinancialYears(context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for k := range v.d.balances {
		if !seen[k.FinancialYear] {
			seen[k.FinancialYear] = true
			out = append(out, k.FinancialYear)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (v *view) LockFinancialYear(context.Context, string) error { return nil }

func (v *view) CreateAward(_ context.Context, b leave.LeaveBalance, entry leave.AwardLogEntry) error {
	if _, ok := v.d.balances[b.Key()]; ok {
		return &generic.ConflictError{
			Resource: "balance",
			Message:  fmt.Sprintf("balance for %s in %s already exists", b.EmployeeID, b.FinancialYear),
		}
	}
	b.Exists = true
	v.d.balances[b.Key()] = b
	v.d.awardLogs = append(v.d.awardLogs, entry)
	return nil
}

func (v *view) ListAwardLogs(_ context.Context, year string) ([]leave.AwardLogEntry, error) {
	var out []leave.AwardLogEntry
	for _, e := range v.d.awardLogs {
		if year == "" || e.FinancialYear == year {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AwardedAt.After(out[j].AwardedAt) })
	return out, nil
}

func (v *view) CreateApplication(_ context.Context, a leave.Application) error {
	if _, ok := v.d.apps[a.ID]; ok {
		return &generic.ConflictError{Resource: "application", Message: "application " + a.ID + " already exists"}
	}
	if a.Version == 0 {
		a.Version = 1
	}
	v.d.apps[a.ID] = cloneApplication(a)
	return nil
}

func (v *view) UpdateApplication(_ context.Context, a leave.Application) error {
	stored, ok := v.d.apps[a.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "application", ID: a.ID}
	}
	if stored.Version != a.Version {
		return &generic.ConflictError{
			Resource: "application",
			Message:  fmt.Sprintf("application %s was modified concurrently", a.ID),
		}
	}
	a.Version++
	v.d.apps[a.ID] = cloneApplication(a)
	return nil
}

func (v *view) GetApplication(_ context.Context, id string) (*leave.Application, error) {
	a, ok := v.d.apps[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "application", ID: id}
	}
	a = cloneApplication(a)
	return &a, nil
}

func (v *view) GetBalanceForUpdate(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return v.GetBalance(ctx, key)
}

func (v *view) GetApplicationForUpdate(ctx context.Context, id string) (*leave.Application, error) {
	return v.GetApplication(ctx, id)
}

func (v *view) ListApplications(_ context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	var out []leave.Application
	for _, a := range v.d.apps {
		if f.EmployeeID != "" && a.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, cloneApplication(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.After(out[j].AppliedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
