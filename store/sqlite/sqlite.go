/*
Package sqlite provides a SQLite-backed implementation of leave.Backend.

PURPOSE:
  Embedded durable storage for the leave engine: the balance ledger,
  award logs, leave applications, plus the reference data (employees,
  leave types, holidays) a single-node deployment needs.

KEY TABLES:
  leave_balances:     One row per (employee, financial year, leave type)
  award_logs:         Append-only audit of award runs
  leave_applications: Applications with per-step state columns
  employees:          Directory records (position, hierarchy, hire date)
  leave_types:        Reference data (counts_weekends)
  holidays:           One-off and recurring holidays

INVARIANTS IN SCHEMA:
  - PRIMARY KEY(employee_id, financial_year, leave_type_id) on balances
  - CHECK(remaining = entitled - used) on balances
  - award_logs has no UPDATE path

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock, so
  every transaction is serialized and LockFinancialYear,
  GetBalanceForUpdate and GetApplicationForUpdate need no extra locking.

ATOMIC AWARD INSERTS:
  CreateAward wraps the balance row and its log entry in a SAVEPOINT so
  one failing employee is rolled back without aborting the batch.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.
  A 5s busy timeout lets a second process (leavectl next to the server)
  wait for the write lock instead of failing with SQLITE_BUSY.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/postgres: Server deployment
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store"
)

// Store implements leave.Backend using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.Backend = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		financial_year TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		entitled INTEGER NOT NULL DEFAULT 0,
		used INTEGER NOT NULL DEFAULT 0,
		remaining INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, financial_year, leave_type_id),
		CHECK (remaining = entitled - used)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_year
		ON leave_balances(financial_year, leave_type_id);

	-- Append-only
	CREATE TABLE IF NOT EXISTS award_logs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		financial_year TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		days_awarded INTEGER NOT NULL,
		award_type TEXT NOT NULL,
		rationale TEXT NOT NULL,
		awarded_by TEXT NOT NULL,
		award_method TEXT NOT NULL,
		notes TEXT,
		awarded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_award_logs_year
		ON award_logs(financial_year, awarded_at DESC);

	CREATE TABLE IF NOT EXISTS leave_applications (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		financial_year TEXT NOT NULL,
		days_requested INTEGER NOT NULL,
		reason TEXT,
		emergency_contact TEXT,
		emergency_phone TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		section_head_approval TEXT NOT NULL DEFAULT 'not_required',
		dept_head_approval TEXT NOT NULL DEFAULT 'not_required',
		hr_approval TEXT NOT NULL DEFAULT 'not_required',
		steps_json TEXT,
		submitted_by TEXT NOT NULL,
		decision_comment TEXT,
		applied_at TEXT NOT NULL,
		decided_at TEXT,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_applications_employee
		ON leave_applications(employee_id, applied_at DESC);
	CREATE INDEX IF NOT EXISTS idx_applications_status
		ON leave_applications(status);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		employment_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		position TEXT NOT NULL,
		hire_date TEXT,
		department_id TEXT,
		section_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_employees_hierarchy
		ON employees(department_id, section_id, position);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		counts_weekends BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		recurring BOOLEAN DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	c := &conn{q: sqlTx, inTx: true}
	if err := fn(c); err != nil {
		return err
	}
	if c.broken != nil {
		return fmt.Errorf("transaction rolled back: %w", c.broken)
	}
	return sqlTx.Commit()
}

func (s *Store) reader() *conn {
	s.mu.RLock()
	return &conn{q: s.db}
}

func (s *Store) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	c := s.reader()
	defer s.mu.RUnlock()
	return c.GetBalance(ctx, key)
}

func (s *Store) GetBalanceForUpdate(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return s.GetBalance(ctx, key)
}

func (s *Store) PutBalance(ctx context.Context, b leave.LeaveBalance) error {
	return s.WithTx(ctx, func(tx leave.Store) error { return tx.PutBalance(ctx, b) })
}

func (s *Store) ListBalances(ctx context.Context, f leave.BalanceFilter) ([]leave.LeaveBalance, error) {
	c := s.reader()
	defer s.mu.RUnlock()
	return c.ListBalances(ctx, f)
}

func (s *Store) CountBalancesForYear(ctx context.Context, year string) (int, error) {
	c := s.reader()
	defer s.mu.RUnlock()
	return c.CountBalancesForYear(ctx, year)
}

func (s *Store) ListFinancialYears(ctx context.Context) ([]string, error) {
	c := s.reader()
	defer s.mu.RUnlock()
	return c.ListFinancialYears(ctx)
}

func (s *Store) LockFinancialYear(context.Context, string) error { return nil }

func (s *Store) CreateAward(ctx context.Context, b leave.LeaveBalance, e leave.AwardLogEntry) error {
	return s.WithTx(ctx, func(tx leave.Store) error { return tx.CreateAward(ctx, b, e) })
}

func (s *Store) ListAwardLogs(ctx context.Context, year string) ([]leave.AwardLogEntry, error) {
	c := s.reader()
	defer s.mu.RUnlock()
	return c.ListAwardLogs(ctx, year)
}

func (s *Store) CreateApplication(ctx context.Context, a leave.Application) error {
	return s.WithTx(ctx, func(tx leave.Store) error { return tx.CreateApplication(ctx, a) })
}

func (s *Store) UpdateApplication(ctx context.Context, a leave.Application) error {
	return s.WithTx(ctx, func(tx leave.Store) error { return tx.UpdateApplication(ctx, a) })
}

func (s *Store) GetApplication(ctx context.Context, id string) (*leave.Application, error) {
	c := s.reader()
	defer s.mu.RUnlock()
	return c.GetApplication(ctx, id)
}

func (s *Store) GetApplicationForUpdate(ctx context.Context, id string) (*leave.Application, error) {
	return s.GetApplication(ctx, id)
}

func (s *Store) ListApplications(ctx context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	c := s.reader()
	defer s.mu.RUnlock()
	return c.ListApplications(ctx, f)
}

// =============================================================================
// CONN - leave.Store over a querier; the caller holds the mutex
// =============================================================================

type conn struct {
	q    querier
	inTx bool

	// broken is set when a savepoint could not be unwound; the
	// transaction must not commit.
	broken error
}

const balanceColumns = `employee_id, financial_year, leave_type_id, entitled, used, remaining, created_at, updated_at`

func (c *conn) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM leave_balances
		 WHERE employee_id = ? AND financial_year = ? AND leave_type_id = ?`,
		key.EmployeeID, key.FinancialYear, key.LeaveTypeID)

	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

func (c *conn) PutBalance(ctx context.Context, b leave.LeaveBalance) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, financial_year, leave_type_id) DO UPDATE SET
			entitled = excluded.entitled,
			used = excluded.used,
			remaining = excluded.remaining,
			updated_at = excluded.updated_at`,
		b.EmployeeID, b.FinancialYear, b.LeaveTypeID,
		b.Entitled, b.Used, b.Remaining,
		store.FormatTime(b.CreatedAt), store.FormatTime(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

func (c *conn) ListBalances(ctx context.Context, f leave.BalanceFilter) ([]leave.LeaveBalance, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.LeaveTypeID != "" {
		where = append(where, "leave_type_id = ?")
		args = append(args, f.LeaveTypeID)
	}
	if f.FinancialYear != "" {
		where = append(where, "financial_year = ?")
		args = append(args, f.FinancialYear)
	}

	query := `SELECT ` + balanceColumns + ` FROM leave_balances`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY employee_id, financial_year, leave_type_id"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (c *conn) CountBalancesForYear(ctx context.Context, year string) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leave_balances WHERE financial_year = ?", year).Scan(&n)
	return n, err
}

func (c *conn) ListFinancialYears(ctx context.Context) ([]string, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT DISTINCT financial_year FROM leave_balances ORDER BY financial_year")
	if err != nil {
		return nil, fmt.Errorf("failed to list financial years: %w", err)
	}
	defer rows.Close()

	var years []string
	for rows.Next() {
		var y string
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (c *conn) LockFinancialYear(context.Context, string) error { return nil }

func (c *conn) CreateAward(ctx context.Context, b leave.LeaveBalance, e leave.AwardLogEntry) error {
	if !c.inTx {
		return errors.New("CreateAward requires a transaction")
	}
	if c.broken != nil {
		return fmt.Errorf("transaction unusable: %w", c.broken)
	}
	if _, err := c.q.ExecContext(ctx, "SAVEPOINT award"); err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	if err := c.insertAward(ctx, b, e); err != nil {
		if rbErr := c.unwindAward(ctx); rbErr != nil {
			c.broken = rbErr
			return errors.Join(err, rbErr)
		}
		return err
	}

	if _, err := c.q.ExecContext(ctx, "RELEASE award"); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// unwindAward discards the failed insert and drops the savepoint.
func (c *conn) unwindAward(ctx context.Context) error {
	if _, err := c.q.ExecContext(ctx, "ROLLBACK TO award"); err != nil {
		return fmt.Errorf("failed to roll back savepoint: %w", err)
	}
	if _, err := c.q.ExecContext(ctx, "RELEASE award"); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

func (c *conn) insertAward(ctx context.Context, b leave.LeaveBalance, e leave.AwardLogEntry) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO leave_balances (`+balanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.EmployeeID, b.FinancialYear, b.LeaveTypeID,
		b.Entitled, b.Used, b.Remaining,
		store.FormatTime(b.CreatedAt), store.FormatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.ConflictError{
				Resource: "balance",
				Message:  fmt.Sprintf("balance for %s in %s already exists", b.EmployeeID, b.FinancialYear),
			}
		}
		return fmt.Errorf("failed to insert balance: %w", err)
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO award_logs
		(id, employee_id, financial_year, leave_type_id, days_awarded, award_type,
		 rationale, awarded_by, award_method, notes, awarded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EmployeeID, e.FinancialYear, e.LeaveTypeID, e.DaysAwarded, e.AwardType,
		e.Rationale, e.AwardedBy, e.AwardMethod, nullString(e.Notes), store.FormatTime(e.AwardedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert award log: %w", err)
	}
	return nil
}

func (c *conn) ListAwardLogs(ctx context.Context, year string) ([]leave.AwardLogEntry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, employee_id, financial_year, leave_type_id, days_awarded, award_type,
		       rationale, awarded_by, award_method, notes, awarded_at
		FROM award_logs
		WHERE financial_year = ?
		ORDER BY awarded_at DESC, rowid ASC`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list award logs: %w", err)
	}
	defer rows.Close()

	var out []leave.AwardLogEntry
	for rows.Next() {
		var (
			e         leave.AwardLogEntry
			notes     sql.NullString
			awardedAt string
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.FinancialYear, &e.LeaveTypeID, &e.DaysAwarded,
			&e.AwardType, &e.Rationale, &e.AwardedBy, &e.AwardMethod, &notes, &awardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan award log: %w", err)
		}
		e.Notes = notes.String
		if e.AwardedAt, err = store.ParseTime(awardedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// APPLICATIONS
// =============================================================================

const applicationColumns = `id, employee_id, leave_type_id, start_date, end_date, financial_year,
	days_requested, reason, emergency_contact, emergency_phone, status,
	section_head_approval, dept_head_approval, hr_approval, steps_json,
	submitted_by, decision_comment, applied_at, decided_at, updated_at, version`

func (c *conn) CreateApplication(ctx context.Context, a leave.Application) error {
	steps, err := store.EncodeSteps(a)
	if err != nil {
		return err
	}
	if a.Version == 0 {
		a.Version = 1
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO leave_applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EmployeeID, a.LeaveTypeID, a.StartDate.String(), a.EndDate.String(), a.FinancialYear,
		a.DaysRequested, nullString(a.Reason), nullString(a.EmergencyContact), nullString(a.EmergencyPhone),
		a.Status, a.SectionHeadApproval.State, a.DeptHeadApproval.State, a.HRApproval.State, steps,
		a.SubmittedBy, nullString(a.DecisionComment), store.FormatTime(a.AppliedAt),
		nullTime(a.DecidedAt), store.FormatTime(a.UpdatedAt), a.Version,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.ConflictError{Resource: "application", Message: "application " + a.ID + " already exists"}
		}
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

func (c *conn) UpdateApplication(ctx context.Context, a leave.Application) error {
	steps, err := store.EncodeSteps(a)
	if err != nil {
		return err
	}

	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_applications SET
			status = ?, section_head_approval = ?, dept_head_approval = ?, hr_approval = ?,
			steps_json = ?, decision_comment = ?, decided_at = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		a.Status, a.SectionHeadApproval.State, a.DeptHeadApproval.State, a.HRApproval.State,
		steps, nullString(a.DecisionComment), nullTime(a.DecidedAt), store.FormatTime(a.UpdatedAt),
		a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := c.GetApplication(ctx, a.ID); err != nil {
			return err
		}
		return &generic.ConflictError{
			Resource: "application",
			Message:  fmt.Sprintf("application %s was modified concurrently", a.ID),
		}
	}
	return nil
}

func (c *conn) GetApplication(ctx context.Context, id string) (*leave.Application, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM leave_applications WHERE id = ?`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "application", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (c *conn) GetBalanceForUpdate(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return c.GetBalance(ctx, key)
}

func (c *conn) GetApplicationForUpdate(ctx context.Context, id string) (*leave.Application, error) {
	return c.GetApplication(ctx, id)
}

func (c *conn) ListApplications(ctx context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT ` + applicationColumns + ` FROM leave_applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY applied_at DESC, id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var out []leave.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanBalance(row scanner) (*leave.LeaveBalance, error) {
	var (
		b                    leave.LeaveBalance
		createdAt, updatedAt string
	)
	if err := row.Scan(&b.EmployeeID, &b.FinancialYear, &b.LeaveTypeID,
		&b.Entitled, &b.Used, &b.Remaining, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if b.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = store.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	b.Exists = true
	return &b, nil
}

func scanApplication(row scanner) (*leave.Application, error) {
	var (
		a                                leave.Application
		start, end                       string
		reason, contact, phone, comment  sql.NullString
		sectionState, deptState, hrState string
		steps, decidedAt                 sql.NullString
		appliedAt, updatedAt             string
	)
	err := row.Scan(&a.ID, &a.EmployeeID, &a.LeaveTypeID, &start, &end, &a.FinancialYear,
		&a.DaysRequested, &reason, &contact, &phone, &a.Status,
		&sectionState, &deptState, &hrState, &steps,
		&a.SubmittedBy, &comment, &appliedAt, &decidedAt, &updatedAt, &a.Version)
	if err != nil {
		return nil, err
	}

	if a.StartDate, err = store.ParseDate(start); err != nil {
		return nil, err
	}
	if a.EndDate, err = store.ParseDate(end); err != nil {
		return nil, err
	}
	a.Reason = reason.String
	a.EmergencyContact = contact.String
	a.EmergencyPhone = phone.String
	a.DecisionComment = comment.String

	if err := store.DecodeSteps(&a, sectionState, deptState, hrState, steps.String); err != nil {
		return nil, err
	}
	if a.AppliedAt, err = store.ParseTime(appliedAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = store.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	if decidedAt.Valid && decidedAt.String != "" {
		t, err := store.ParseTime(decidedAt.String)
		if err != nil {
			return nil, err
		}
		a.DecidedAt = &t
	}
	return &a, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(store.FormatTime(*t))
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
