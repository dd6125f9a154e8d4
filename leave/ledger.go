/*
ledger.go - Leave balance ledger

PURPOSE:
  The durable record of entitled, used and remaining days per
  (employee, leave type, financial year). All mutations go through this
  file so that remaining == entitled - used holds after every write.

OPERATIONS:
  GetBalance  Absent row yields a zero-balance sentinel, not an error
  Credit      Sets entitled, inserts the row if absent
  Debit       used += days; remaining may go negative
  Reverse     used = max(0, used - days)

NEGATIVE BALANCES:
  Debit does not reject a negative remaining balance. The approval
  workflow checks sufficiency once, at submission. Callers that need a
  hard floor must check before calling Debit.

TRANSACTIONS:
  Ledger operates on whatever Store it is given, so the workflow can pass
  the transaction-scoped store and write the debit in the same unit as
  the status change. LedgerService wraps each call in its own WithTx.
  Writes read the row with GetBalanceForUpdate; two transactions on one
  key never both start from the same used value.

SEE ALSO:
  - award.go: Creates rows at financial year start
  - workflow.go: Debits on final approval, reverses on cancellation
*/
package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// Ledger performs balance arithmetic against a Store.
type Ledger struct {
	store Store
	clock generic.Clock
}

// NewLedger creates a ledger over store.
func NewLedger(store Store, clock generic.Clock) *Ledger {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Ledger{store: store, clock: clock}
}

// GetBalance returns the row for key, or ZeroBalance(key) when absent.
func (l *Ledger) GetBalance(ctx context.Context, key BalanceKey) (LeaveBalance, error) {
	b, err := l.store.GetBalance(ctx, key)
	if err != nil {
		return LeaveBalance{}, fmt.Errorf("get balance: %w", err)
	}
	if b == nil {
		return ZeroBalance(key), nil
	}
	return *b, nil
}

// Credit sets the entitlement for key, creating the row when absent.
func (l *Ledger) Credit(ctx context.Context, key BalanceKey, days int) (LeaveBalance, error) {
	if err := checkDays(days); err != nil {
		return LeaveBalance{}, err
	}
	if err := checkKey(key); err != nil {
		return LeaveBalance{}, err
	}

	b, err := l.lockBalance(ctx, key)
	if err != nil {
		return LeaveBalance{}, err
	}

	now := l.clock.Now()
	if !b.Exists {
		b.CreatedAt = now
	}
	b.Entitled = days
	b.UpdatedAt = now
	b.recompute()
	b.Exists = true

	if err := l.store.PutBalance(ctx, b); err != nil {
		return LeaveBalance{}, fmt.Errorf("credit %s: %w", describeKey(key), err)
	}
	return b, nil
}

// Debit consumes days from an existing row.
func (l *Ledger) Debit(ctx context.Context, key BalanceKey, days int) (LeaveBalance, error) {
	return l.adjustUsed(ctx, key, days, "debit", func(used int) int {
		return used + days
	})
}

// Reverse restores days to an existing row. Used never drops below 0.
func (l *Ledger) Reverse(ctx context.Context, key BalanceKey, days int) (LeaveBalance, error) {
	return l.adjustUsed(ctx, key, days, "reverse", func(used int) int {
		return max(0, used-days)
	})
}

func (l *Ledger) adjustUsed(ctx context.Context, key BalanceKey, days int, op string, next func(int) int) (LeaveBalance, error) {
	if err := checkDays(days); err != nil {
		return LeaveBalance{}, err
	}

	b, err := l.lockBalance(ctx, key)
	if err != nil {
		return LeaveBalance{}, err
	}
	if !b.Exists {
		return LeaveBalance{}, &generic.NotFoundError{Kind: "balance", ID: describeKey(key)}
	}

	b.Used = next(b.Used)
	b.UpdatedAt = l.clock.Now()
	b.recompute()

	if err := l.store.PutBalance(ctx, b); err != nil {
		return LeaveBalance{}, fmt.Errorf("%s %s: %w", op, describeKey(key), err)
	}
	return b, nil
}

// lockBalance reads the row for a write. Inside a transaction the row
// stays locked until commit, so concurrent writers apply in turn.
func (l *Ledger) lockBalance(ctx context.Context, key BalanceKey) (LeaveBalance, error) {
	b, err := l.store.GetBalanceForUpdate(ctx, key)
	if err != nil {
		return LeaveBalance{}, fmt.Errorf("lock balance: %w", err)
	}
	if b == nil {
		return ZeroBalance(key), nil
	}
	return *b, nil
}

func checkDays(days int) error {
	if days < 0 {
		return &generic.ValidationError{Field: "days", Message: "must not be negative"}
	}
	return nil
}

func checkKey(key BalanceKey) error {
	switch {
	case key.EmployeeID == "":
		return &generic.ValidationError{Field: "employee_id", Message: "is required"}
	case key.LeaveTypeID == "":
		return &generic.ValidationError{Field: "leave_type_id", Message: "is required"}
	}
	if _, err := generic.ParseFinancialYear(key.FinancialYear); err != nil {
		return err
	}
	return nil
}

func describeKey(key BalanceKey) string {
	return fmt.Sprintf("%s/%s/%s", key.EmployeeID, key.LeaveTypeID, key.FinancialYear)
}

// =============================================================================
// LEDGER SERVICE - One transaction per call
// =============================================================================

// LedgerService exposes the ledger to standalone callers (admin credit,
// balance lookups). Each mutation is its own transaction.
type LedgerService struct {
	store TxStore
	clock generic.Clock
}

// NewLedgerService creates a service over store.
func NewLedgerService(store TxStore, clock generic.Clock) *LedgerService {
	return &LedgerService{store: store, clock: clock}
}

// GetBalance reads one row outside any transaction.
func (s *LedgerService) GetBalance(ctx context.Context, employeeID, leaveTypeID, financialYear string) (LeaveBalance, error) {
	return NewLedger(s.store, s.clock).GetBalance(ctx, BalanceKey{
		EmployeeID:    employeeID,
		LeaveTypeID:   leaveTypeID,
		FinancialYear: financialYear,
	})
}

// Balances lists rows for one employee in one financial year.
func (s *LedgerService) Balances(ctx context.Context, employeeID, financialYear string) ([]LeaveBalance, error) {
	return s.store.ListBalances(ctx, BalanceFilter{EmployeeID: employeeID, FinancialYear: financialYear})
}

func (s *LedgerService) Credit(ctx context.Context, key BalanceKey, days int) (LeaveBalance, error) {
	return s.mutate(ctx, func(l *Ledger) (LeaveBalance, error) { return l.Credit(ctx, key, days) })
}

func (s *LedgerService) Debit(ctx context.Context, key BalanceKey, days int) (LeaveBalance, error) {
	return s.mutate(ctx, func(l *Ledger) (LeaveBalance, error) { return l.Debit(ctx, key, days) })
}

func (s *LedgerService) Reverse(ctx context.Context, key BalanceKey, days int) (LeaveBalance, error) {
	return s.mutate(ctx, func(l *Ledger) (LeaveBalance, error) { return l.Reverse(ctx, key, days) })
}

func (s *LedgerService) mutate(ctx context.Context, op func(*Ledger) (LeaveBalance, error)) (LeaveBalance, error) {
	var out LeaveBalance
	err := s.store.WithTx(ctx, func(tx Store) error {
		b, err := op(NewLedger(tx, s.clock))
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}
