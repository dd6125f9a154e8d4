/*
store.go - Persistence and collaborator interfaces for the leave engine

PURPOSE:
  Defines the boundary between the leave services and storage, and the
  interfaces of the external collaborators (employee directory, leave
  type catalog). Stores can be SQLite, PostgreSQL, or in-memory.

KEY INTERFACES:
  Store:      Ledger rows, award logs, applications
  TxStore:    Store + WithTx for all-or-nothing units
  Directory:  Employee records and hierarchy resolution (read-only)
  LeaveTypes: Leave type reference data (read-only)

ATOMICITY:
  Every service operation runs inside WithTx. A step approval that
  triggers the final debit writes both the application and the ledger
  row in one transaction; a failure rolls both back.

LOCKING:
  GetApplicationForUpdate serializes concurrent decisions on the same
  application. LockFinancialYear serializes award runs for one year.
  Stores that already serialize every transaction may implement both as
  plain reads / no-ops.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Embedded SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx
  - store/memory/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Balance arithmetic over Store
  - workflow.go: Approval state machine over TxStore
*/
package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// STORE - Ledger, award log and application persistence
// =============================================================================

// Store handles persistence of engine-owned records.
type Store interface {
	// GetBalance returns the ledger row, or (nil, nil) when absent.
	GetBalance(ctx context.Context, key BalanceKey) (*LeaveBalance, error)

	// GetBalanceForUpdate is GetBalance holding a row lock until the
	// enclosing transaction ends. Read-modify-write of a row must use it.
	GetBalanceForUpdate(ctx context.Context, key BalanceKey) (*LeaveBalance, error)

	// PutBalance inserts or replaces a ledger row (entitled, used and
	// remaining are written together).
	PutBalance(ctx context.Context, b LeaveBalance) error

	// ListBalances returns ledger rows matching the filter.
	ListBalances(ctx context.Context, filter BalanceFilter) ([]LeaveBalance, error)

	// CountBalancesForYear counts ledger rows of any leave type for year.
	CountBalancesForYear(ctx context.Context, year string) (int, error)

	// ListFinancialYears returns distinct year keys present in the ledger.
	ListFinancialYears(ctx context.Context) ([]string, error)

	// LockFinancialYear takes a transaction-scoped lock on year.
	LockFinancialYear(ctx context.Context, year string) error

	// CreateAward inserts a new ledger row and its award log entry as one
	// unit. Fails if the ledger row already exists.
	CreateAward(ctx context.Context, b LeaveBalance, entry AwardLogEntry) error

	// ListAwardLogs returns award log entries for year, newest first.
	ListAwardLogs(ctx context.Context, year string) ([]AwardLogEntry, error)

	// CreateApplication persists a new application.
	CreateApplication(ctx context.Context, a Application) error

	// UpdateApplication persists status and step changes. a.Version must
	// match the stored version; the stored version is incremented.
	UpdateApplication(ctx context.Context, a Application) error

	// GetApplication returns *generic.NotFoundError when absent.
	GetApplication(ctx context.Context, id string) (*Application, error)

	// GetApplicationForUpdate is GetApplication holding a row lock until
	// the enclosing transaction ends.
	GetApplicationForUpdate(ctx context.Context, id string) (*Application, error)

	// ListApplications returns applications, newest first.
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// Directory is the employee directory. The engine never writes to it.
type Directory interface {
	// GetEmployee returns *generic.NotFoundError for unknown ids.
	GetEmployee(ctx context.Context, id string) (*Employee, error)

	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)

	// SectionHeadOf returns the active section head, or (nil, nil).
	SectionHeadOf(ctx context.Context, departmentID, sectionID string) (*Employee, error)

	// DepartmentHeadOf returns the active department head, or (nil, nil).
	DepartmentHeadOf(ctx context.Context, departmentID string) (*Employee, error)

	// ExecutivesOf returns active employees whose position may sign the
	// executive step.
	ExecutivesOf(ctx context.Context) ([]Employee, error)
}

// LeaveTypes is the leave type catalog.
type LeaveTypes interface {
	// GetLeaveType returns *generic.NotFoundError for unknown ids.
	GetLeaveType(ctx context.Context, id string) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
}

// ReferenceStore is what a concrete backend offers besides Store: the
// directory, the catalog, holidays, and the admin writes used for seeding.
type ReferenceStore interface {
	Directory
	LeaveTypes
	generic.HolidaySource

	SaveEmployee(ctx context.Context, e Employee) error
	SaveLeaveType(ctx context.Context, lt LeaveType) error
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]generic.Holiday, error)
}

// Backend is a complete storage implementation.
type Backend interface {
	TxStore
	ReferenceStore
	Close() error
}
