// Package leave implements the leave lifecycle: balances, annual awards,
// day counting and the hierarchical approval workflow.
// It builds on the calendar primitives of the generic package.
package leave

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// EMPLOYEE - Read from the external directory, never written by the core
// =============================================================================

// EmploymentType classifies the employment contract.
type EmploymentType string

const (
	EmploymentPermanent EmploymentType = "permanent"
	EmploymentContract  EmploymentType = "contract"
	EmploymentTemporary EmploymentType = "temporary"
	EmploymentIntern    EmploymentType = "intern"
)

// EmployeeStatus is the directory's activity flag.
type EmployeeStatus string

const (
	StatusActive   EmployeeStatus = "active"
	StatusInactive EmployeeStatus = "inactive"
)

// Employee carries the fields the engine consumes from the directory.
type Employee struct {
	ID             string
	Name           string
	Email          string
	EmploymentType EmploymentType
	Status         EmployeeStatus
	Position       Position
	HireDate       generic.TimePoint
	DepartmentID   string
	SectionID      string
}

// IsActive reports an active directory record.
func (e Employee) IsActive() bool { return e.Status == StatusActive }

// EligibleForAnnualAward reports permanent, active employees.
func (e Employee) EligibleForAnnualAward() bool {
	return e.EmploymentType == EmploymentPermanent && e.IsActive()
}

// EmployeeFilter narrows a directory listing. Zero fields match everything.
type EmployeeFilter struct {
	EmploymentType EmploymentType
	Status         EmployeeStatus
	Positions      []Position
	DepartmentID   string
}

// Matches applies the filter in memory.
func (f EmployeeFilter) Matches(e Employee) bool {
	if f.EmploymentType != "" && e.EmploymentType != f.EmploymentType {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.DepartmentID != "" && e.DepartmentID != f.DepartmentID {
		return false
	}
	if len(f.Positions) > 0 {
		for _, p := range f.Positions {
			if e.Position == p {
				return true
			}
		}
		return false
	}
	return true
}

// =============================================================================
// LEAVE TYPE - Reference data
// =============================================================================

// LeaveType is immutable reference data for the engine.
type LeaveType struct {
	ID   string
	Name string
	// CountsWeekends selects calendar-day counting (e.g. maternity leave).
	CountsWeekends bool
}

// Mode returns the day counting mode for this leave type.
func (lt LeaveType) Mode() generic.CountingMode {
	return generic.ModeFor(lt.CountsWeekends)
}

// =============================================================================
// LEDGER ROW
// =============================================================================

// BalanceKey is the composite identity of a ledger row.
type BalanceKey struct {
	EmployeeID    string
	LeaveTypeID   string
	FinancialYear string
}

// LeaveBalance is one ledger row. Remaining is always Entitled - Used.
type LeaveBalance struct {
	EmployeeID    string
	LeaveTypeID   string
	FinancialYear string
	Entitled      int
	Used          int
	Remaining     int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Exists is false for the zero-balance sentinel returned for absent rows.
	Exists bool
}

// ZeroBalance is the sentinel for a key with no ledger row.
func ZeroBalance(key BalanceKey) LeaveBalance {
	return LeaveBalance{
		EmployeeID:    key.EmployeeID,
		LeaveTypeID:   key.LeaveTypeID,
		FinancialYear: key.FinancialYear,
	}
}

func (b LeaveBalance) Key() BalanceKey {
	return BalanceKey{EmployeeID: b.EmployeeID, LeaveTypeID: b.LeaveTypeID, FinancialYear: b.FinancialYear}
}

// Consistent checks remaining == entitled - used.
func (b LeaveBalance) Consistent() bool {
	return b.Remaining == b.Entitled-b.Used
}

func (b *LeaveBalance) recompute() {
	b.Remaining = b.Entitled - b.Used
}

// BalanceFilter narrows a ledger listing.
type BalanceFilter struct {
	EmployeeID    string
	LeaveTypeID   string
	FinancialYear string
}

// =============================================================================
// AWARD LOG - Append-only audit of award runs
// =============================================================================

// AwardType records whether the full entitlement was granted.
type AwardType string

const (
	AwardFull     AwardType = "full"
	AwardProrated AwardType = "prorated"
)

// AwardMethod records what triggered the run.
type AwardMethod string

const (
	AwardManual    AwardMethod = "manual"
	AwardAutomatic AwardMethod = "automatic"
)

// AwardLogEntry is the immutable audit record of one employee's award.
type AwardLogEntry struct {
	ID            string
	EmployeeID    string
	FinancialYear string
	LeaveTypeID   string
	DaysAwarded   int
	AwardType     AwardType
	Rationale     string
	AwardedBy     string
	AwardMethod   AwardMethod
	Notes         string
	AwardedAt     time.Time
}
