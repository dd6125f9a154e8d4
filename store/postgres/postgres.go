/*
Package postgres provides a PostgreSQL-backed implementation of leave.Backend.

PURPOSE:
  Multi-instance deployments. Unlike the SQLite store, nothing is
  serialized in-process: concurrency is handled by the database.

CONCURRENCY:
  - LockFinancialYear takes pg_advisory_xact_lock(hashtext(year)), so two
    award runs for one year queue behind each other and the second sees
    the first one's rows.
  - GetApplicationForUpdate is SELECT ... FOR UPDATE.
  - UpdateApplication is guarded by the version column.

ATOMIC AWARD INSERTS:
  CreateAward runs in a nested pgx transaction (a SAVEPOINT), so a failing
  employee does not abort the surrounding batch.

SEE ALSO:
  - store/sqlite: Embedded deployment
  - store/storetest: Conformance suite shared by every backend
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store"
)

// Store implements leave.Backend on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ leave.Backend = (*Store)(nil)

// New connects to dsn and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the pool to tests and admin tooling.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS leave_balances (
	employee_id TEXT NOT NULL,
	financial_year TEXT NOT NULL,
	leave_type_id TEXT NOT NULL,
	entitled INTEGER NOT NULL DEFAULT 0,
	used INTEGER NOT NULL DEFAULT 0,
	remaining INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (employee_id, financial_year, leave_type_id),
	CHECK (remaining = entitled - used)
);

CREATE INDEX IF NOT EXISTS idx_balances_year ON leave_balances(financial_year, leave_type_id);

CREATE TABLE IF NOT EXISTS award_logs (
	seq BIGSERIAL,
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
	awarded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_award_logs_year ON award_logs(financial_year, awarded_at DESC);

CREATE TABLE IF NOT EXISTS leave_applications (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL,
	leave_type_id TEXT NOT NULL,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
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
	applied_at TIMESTAMPTZ NOT NULL,
	decided_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_applications_employee ON leave_applications(employee_id, applied_at DESC);
CREATE INDEX IF NOT EXISTS idx_applications_status ON leave_applications(status);

CREATE TABLE IF NOT EXISTS employees (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	employment_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	position TEXT NOT NULL,
	hire_date DATE,
	department_id TEXT,
	section_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_employees_hierarchy ON employees(department_id, section_id, position);

CREATE TABLE IF NOT EXISTS leave_types (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	counts_weekends BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS holidays (
	id TEXT PRIMARY KEY,
	date DATE NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	recurring BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (date, name)
);
`

// =============================================================================
// TRANSACTIONS
// =============================================================================

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx runs fn in a READ COMMITTED transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&conn{q: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) direct() *conn { return &conn{q: s.pool} }

func (s *Store) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return s.direct().GetBalance(ctx, key)
}

func (s *Store) GetBalanceForUpdate(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return s.direct().GetBalance(ctx, key)
}

func (s *Store) PutBalance(ctx context.Context, b leave.LeaveBalance) error {
	return s.direct().PutBalance(ctx, b)
}

func (s *Store) ListBalances(ctx context.Context, f leave.BalanceFilter) ([]leave.LeaveBalance, error) {
	return s.direct().ListBalances(ctx, f)
}

func (s *Store) CountBalancesForYear(ctx context.Context, year string) (int, error) {
	return s.direct().CountBalancesForYear(ctx, year)
}

func (s *Store) ListFinancialYears(ctx context.Context) ([]string, error) {
	return s.direct().ListFinancialYears(ctx)
}

// LockFinancialYear is a no-op outside a transaction; the advisory lock
// would be released as soon as it was taken.
func (s *Store) LockFinancialYear(context.Context, string) error { return nil }

func (s *Store) CreateAward(ctx context.Context, b leave.LeaveBalance, e leave.AwardLogEntry) error {
	return s.WithTx(ctx, func(tx leave.Store) error { return tx.CreateAward(ctx, b, e) })
}

func (s *Store) ListAwardLogs(ctx context.Context, year string) ([]leave.AwardLogEntry, error) {
	return s.direct().ListAwardLogs(ctx, year)
}

func (s *Store) CreateApplication(ctx context.Context, a leave.Application) error {
	return s.direct().CreateApplication(ctx, a)
}

func (s *Store) UpdateApplication(ctx context.Context, a leave.Application) error {
	return s.direct().UpdateApplication(ctx, a)
}

func (s *Store) GetApplication(ctx context.Context, id string) (*leave.Application, error) {
	return s.direct().GetApplication(ctx, id)
}

func (s *Store) GetApplicationForUpdate(ctx context.Context, id string) (*leave.Application, error) {
	return s.direct().GetApplication(ctx, id)
}

func (s *Store) ListApplications(ctx context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	return s.direct().ListApplications(ctx, f)
}

// =============================================================================
// CONN
// =============================================================================

type conn struct {
	q  querier
	tx pgx.Tx // nil outside WithTx
}

// filter accumulates WHERE clauses with positional parameters.
type filter struct {
	clauses []string
	args    []any
}

// add appends cond, whose single %d is replaced by the next parameter index.
func (f *filter) add(cond string, v any) {
	f.args = append(f.args, v)
	f.clauses = append(f.clauses, fmt.Sprintf(cond, len(f.args)))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

const balanceColumns = `employee_id, financial_year, leave_type_id, entitled, used, remaining, created_at, updated_at`

func (c *conn) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return c.getBalance(ctx, key, "")
}

func (c *conn) GetBalanceForUpdate(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	return c.getBalance(ctx, key, " FOR UPDATE")
}

func (c *conn) getBalance(ctx context.Context, key leave.BalanceKey, suffix string) (*leave.LeaveBalance, error) {
	row := c.q.QueryRow(ctx, `SELECT `+balanceColumns+` FROM leave_balances
		WHERE employee_id = $1 AND financial_year = $2 AND leave_type_id = $3`+suffix,
		key.EmployeeID, key.FinancialYear, key.LeaveTypeID)
	b, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

func (c *conn) PutBalance(ctx context.Context, b leave.LeaveBalance) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (employee_id, financial_year, leave_type_id) DO UPDATE SET
			entitled = EXCLUDED.entitled,
			used = EXCLUDED.used,
			remaining = EXCLUDED.remaining,
			updated_at = EXCLUDED.updated_at`,
		b.EmployeeID, b.FinancialYear, b.LeaveTypeID, b.Entitled, b.Used, b.Remaining,
		orNow(b.CreatedAt), orNow(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

func (c *conn) ListBalances(ctx context.Context, f leave.BalanceFilter) ([]leave.LeaveBalance, error) {
	var w filter
	if f.EmployeeID != "" {
		w.add("employee_id = $%d", f.EmployeeID)
	}
	if f.LeaveTypeID != "" {
		w.add("leave_type_id = $%d", f.LeaveTypeID)
	}
	if f.FinancialYear != "" {
		w.add("financial_year = $%d", f.FinancialYear)
	}

	rows, err := c.q.Query(ctx, `SELECT `+balanceColumns+` FROM leave_balances`+w.where()+
		` ORDER BY employee_id, financial_year, leave_type_id`, w.args...)
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
	err := c.q.QueryRow(ctx, "SELECT COUNT(*) FROM leave_balances WHERE financial_year = $1", year).Scan(&n)
	return n, err
}

func (c *conn) ListFinancialYears(ctx context.Context) ([]string, error) {
	rows, err := c.q.Query(ctx, "SELECT DISTINCT financial_year FROM leave_balances ORDER BY financial_year")
	if err != nil {
		return nil, fmt.Errorf("failed to list financial years: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (c *conn) LockFinancialYear(ctx context.Context, year string) error {
	if c.tx == nil {
		return errors.New("LockFinancialYear requires a transaction")
	}
	if _, err := c.q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", year); err != nil {
		return fmt.Errorf("failed to lock financial year %s: %w", year, err)
	}
	return nil
}

func (c *conn) CreateAward(ctx context.Context, b leave.LeaveBalance, e leave.AwardLogEntry) error {
	if c.tx == nil {
		return errors.New("CreateAward requires a transaction")
	}
	sp, err := c.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	_, err = sp.Exec(ctx, `INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.EmployeeID, b.FinancialYear, b.LeaveTypeID, b.Entitled, b.Used, b.Remaining,
		orNow(b.CreatedAt), orNow(b.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return &generic.ConflictError{
				Resource: "balance",
				Message:  fmt.Sprintf("balance for %s in %s already exists", b.EmployeeID, b.FinancialYear),
			}
		}
		return fmt.Errorf("failed to insert balance: %w", err)
	}

	_, err = sp.Exec(ctx, `
		INSERT INTO award_logs
		(id, employee_id, financial_year, leave_type_id, days_awarded, award_type,
		 rationale, awarded_by, award_method, notes, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.EmployeeID, e.FinancialYear, e.LeaveTypeID, e.DaysAwarded, e.AwardType,
		e.Rationale, e.AwardedBy, e.AwardMethod, nullable(e.Notes), e.AwardedAt)
	if err != nil {
		return fmt.Errorf("failed to insert award log: %w", err)
	}
	return sp.Commit(ctx)
}

func (c *conn) ListAwardLogs(ctx context.Context, year string) ([]leave.AwardLogEntry, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, employee_id, financial_year, leave_type_id, days_awarded, award_type,
		       rationale, awarded_by, award_method, COALESCE(notes, ''), awarded_at
		FROM award_logs WHERE financial_year = $1
		ORDER BY awarded_at DESC, seq ASC`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list award logs: %w", err)
	}
	defer rows.Close()

	var out []leave.AwardLogEntry
	for rows.Next() {
		var e leave.AwardLogEntry
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.FinancialYear, &e.LeaveTypeID, &e.DaysAwarded,
			&e.AwardType, &e.Rationale, &e.AwardedBy, &e.AwardMethod, &e.Notes, &e.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan award log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// APPLICATIONS
// =============================================================================

const applicationColumns = `id, employee_id, leave_type_id, start_date, end_date, financial_year,
	days_requested, COALESCE(reason, ''), COALESCE(emergency_contact, ''), COALESCE(emergency_phone, ''), status,
	section_head_approval, dept_head_approval, hr_approval, COALESCE(steps_json, ''),
	submitted_by, COALESCE(decision_comment, ''), applied_at, decided_at, updated_at, version`

func (c *conn) CreateApplication(ctx context.Context, a leave.Application) error {
	steps, err := store.EncodeSteps(a)
	if err != nil {
		return err
	}
	if a.Version == 0 {
		a.Version = 1
	}
	_, err = c.q.Exec(ctx, `
		INSERT INTO leave_applications
		(id, employee_id, leave_type_id, start_date, end_date, financial_year,
		 days_requested, reason, emergency_contact, emergency_phone, status,
		 section_head_approval, dept_head_approval, hr_approval, steps_json,
		 submitted_by, decision_comment, applied_at, decided_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		a.ID, a.EmployeeID, a.LeaveTypeID, a.StartDate.Time, a.EndDate.Time, a.FinancialYear,
		a.DaysRequested, nullable(a.Reason), nullable(a.EmergencyContact), nullable(a.EmergencyPhone), a.Status,
		a.SectionHeadApproval.State, a.DeptHeadApproval.State, a.HRApproval.State, steps,
		a.SubmittedBy, nullable(a.DecisionComment), a.AppliedAt, a.DecidedAt, a.UpdatedAt, a.Version)
	if err != nil {
		if isUniqueViolation(err) {
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
	tag, err := c.q.Exec(ctx, `
		UPDATE leave_applications SET
			status = $1, section_head_approval = $2, dept_head_approval = $3, hr_approval = $4,
			steps_json = $5, decision_comment = $6, decided_at = $7, updated_at = $8,
			version = version + 1
		WHERE id = $9 AND version = $10`,
		a.Status, a.SectionHeadApproval.State, a.DeptHeadApproval.State, a.HRApproval.State,
		steps, nullable(a.DecisionComment), a.DecidedAt, a.UpdatedAt, a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	return c.getApplication(ctx, id, "")
}

func (c *conn) GetApplicationForUpdate(ctx context.Context, id string) (*leave.Application, error) {
	return c.getApplication(ctx, id, " FOR UPDATE")
}

func (c *conn) getApplication(ctx context.Context, id, suffix string) (*leave.Application, error) {
	row := c.q.QueryRow(ctx, `SELECT `+applicationColumns+` FROM leave_applications WHERE id = $1`+suffix, id)
	a, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "application", ID: id}
	}
	return a, err
}

func (c *conn) ListApplications(ctx context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	var w filter
	if f.EmployeeID != "" {
		w.add("employee_id = $%d", f.EmployeeID)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	query := `SELECT ` + applicationColumns + ` FROM leave_applications` + w.where() +
		` ORDER BY applied_at DESC, id ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := c.q.Query(ctx, query, w.args...)
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

func scanBalance(row pgx.Row) (*leave.LeaveBalance, error) {
	var b leave.LeaveBalance
	if err := row.Scan(&b.EmployeeID, &b.FinancialYear, &b.LeaveTypeID,
		&b.Entitled, &b.Used, &b.Remaining, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Exists = true
	return &b, nil
}

func scanApplication(row pgx.Row) (*leave.Application, error) {
	var (
		a                                leave.Application
		start, end                       time.Time
		sectionState, deptState, hrState string
		steps                            string
	)
	err := row.Scan(&a.ID, &a.EmployeeID, &a.LeaveTypeID, &start, &end, &a.FinancialYear,
		&a.DaysRequested, &a.Reason, &a.EmergencyContact, &a.EmergencyPhone, &a.Status,
		&sectionState, &deptState, &hrState, &steps,
		&a.SubmittedBy, &a.DecisionComment, &a.AppliedAt, &a.DecidedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	a.StartDate = generic.FromTime(start)
	a.EndDate = generic.FromTime(end)
	if err := store.DecodeSteps(&a, sectionState, deptState, hrState, steps); err != nil {
		return nil, err
	}
	return &a, nil
}

// Helper functions

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
