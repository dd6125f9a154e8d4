package leave_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func officerAnnual() leave.BalanceKey {
	return leave.BalanceKey{EmployeeID: officerID, LeaveTypeID: annualID, FinancialYear: year2024}
}

func TestLedger_GetBalance_AbsentRow_ZeroSentinel(t *testing.T) {
	f := newFixture(t)

	b := f.balance(t, officerID, annualID)

	assert.False(t, b.Exists)
	assert.Equal(t, officerID, b.EmployeeID)
	assert.Equal(t, 0, b.Entitled)
	assert.Equal(t, 0, b.Remaining)
}

func TestLedger_CreditDebitReverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.ledger.Credit(ctx, officerAnnual(), 30)
	require.NoError(t, err)
	assert.Equal(t, 30, b.Remaining)

	b, err = f.ledger.Debit(ctx, officerAnnual(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Used)
	assert.Equal(t, 25, b.Remaining)

	b, err = f.ledger.Reverse(ctx, officerAnnual(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Used)
	assert.Equal(t, 27, b.Remaining)

	// Credit replaces the entitlement and keeps used
	b, err = f.ledger.Credit(ctx, officerAnnual(), 20)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Used)
	assert.Equal(t, 17, b.Remaining)

	assert.Equal(t, b, f.balance(t, officerID, annualID))
}

func TestLedger_Debit_MayGoNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Credit(ctx, officerAnnual(), 3)
	require.NoError(t, err)

	b, err := f.ledger.Debit(ctx, officerAnnual(), 5)

	require.NoError(t, err)
	assert.Equal(t, -2, b.Remaining)
	assert.True(t, b.Consistent())
}

func TestLedger_Reverse_FloorsUsedAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Credit(ctx, officerAnnual(), 10)
	require.NoError(t, err)
	_, err = f.ledger.Debit(ctx, officerAnnual(), 2)
	require.NoError(t, err)

	b, err := f.ledger.Reverse(ctx, officerAnnual(), 7)

	require.NoError(t, err)
	assert.Equal(t, 0, b.Used)
	assert.Equal(t, 10, b.Remaining)
}

func TestLedger_Debit_MissingRow_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Debit(context.Background(), officerAnnual(), 1)

	assert.True(t, generic.IsNotFound(err))
}

func TestLedger_InvalidInput_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, officerAnnual(), -1)
	assert.True(t, errors.Is(err, generic.ErrValidation))

	bad := officerAnnual()
	bad.FinancialYear = "2024-2026"
	_, err = f.ledger.Credit(ctx, bad, 10)
	assert.True(t, errors.Is(err, generic.ErrValidation))

	_, err = f.ledger.Debit(ctx, officerAnnual(), -3)
	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestLedger_FailedWrite_RollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Credit(ctx, officerAnnual(), 10)
	require.NoError(t, err)

	faulty := leave.NewLedgerService(&faultyStore{TxStore: f.store, failPut: true}, f.clock)
	_, err = faulty.Debit(ctx, officerAnnual(), 4)

	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 0, f.balance(t, officerID, annualID).Used)
}

func TestLedger_Invariant_HoldsAfterAnySequence(t *testing.T) {
	// GIVEN: a random but reproducible sequence of mutations
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	_, err := f.ledger.Credit(ctx, officerAnnual(), 30)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		days := rng.Intn(8)
		var b leave.LeaveBalance
		switch rng.Intn(3) {
		case 0:
			b, err = f.ledger.Credit(ctx, officerAnnual(), days*5)
		case 1:
			b, err = f.ledger.Debit(ctx, officerAnnual(), days)
		default:
			b, err = f.ledger.Reverse(ctx, officerAnnual(), days)
		}
		require.NoError(t, err)

		// THEN: remaining == entitled - used after every step
		require.True(t, b.Consistent(), "step %d: %+v", i, b)
		require.GreaterOrEqual(t, b.Used, 0)
		require.True(t, f.balance(t, officerID, annualID).Consistent())
	}
}
