package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestTopUp_RecordsLedgerRow(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")

	// $100.00 at 15% markup credits 86,956.
	txn, err := s.TopUp(context.Background(), u.ID, 86956, json.RawMessage(`{"usd":100}`))
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTopUp, txn.Kind)
	assert.Equal(t, int64(86956), txn.AmountCredits)
	assert.Zero(t, txn.BalanceBefore)
	assert.Equal(t, int64(86956), txn.BalanceAfter)
	assert.Equal(t, testEpoch, txn.CreatedAt)

	balance, err := s.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(86956), balance)
}

func TestDeduct_DebitsBalance(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")
	_, err := s.TopUp(context.Background(), u.ID, 86956, nil)
	require.NoError(t, err)

	// A $0.10 call costs 100 credits.
	txn, err := s.Deduct(context.Background(), u.ID, 100, json.RawMessage(`{"raw_cost_usd":0.1}`))
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionDeduction, txn.Kind)
	assert.Equal(t, int64(-100), txn.AmountCredits)
	assert.Equal(t, int64(86956), txn.BalanceBefore)
	assert.Equal(t, int64(86856), txn.BalanceAfter)

	balance, err := s.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(86856), balance)
}

func TestDeduct_Insufficient(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")
	_, err := s.TopUp(context.Background(), u.ID, 50, nil)
	require.NoError(t, err)

	_, err = s.Deduct(context.Background(), u.ID, 51, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrInsufficientCredits)

	// The refused deduction leaves no trace.
	balance, err := s.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	txns, err := s.Transactions(context.Background(), u.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestRefund_ReversesDeduction(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")
	_, err := s.TopUp(context.Background(), u.ID, 1000, nil)
	require.NoError(t, err)
	_, err = s.Deduct(context.Background(), u.ID, 100, nil)
	require.NoError(t, err)

	txn, err := s.Refund(context.Background(), u.ID, 100, json.RawMessage(`{"reason":"duplicate"}`))
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionRefund, txn.Kind)
	assert.Equal(t, int64(100), txn.AmountCredits)
	assert.Equal(t, int64(1000), txn.BalanceAfter)

	balance, err := s.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestLedger_InvalidAmounts(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")

	_, err := s.TopUp(context.Background(), u.ID, 0, nil)
	assert.ErrorIs(t, err, sserrors.ErrInvalidAmount)

	_, err = s.TopUp(context.Background(), u.ID, -5, nil)
	assert.ErrorIs(t, err, sserrors.ErrInvalidAmount)

	_, err = s.Deduct(context.Background(), u.ID, 0, nil)
	assert.ErrorIs(t, err, sserrors.ErrInvalidAmount)

	_, err = s.Refund(context.Background(), u.ID, 0, nil)
	assert.ErrorIs(t, err, sserrors.ErrInvalidAmount)

	_, err = s.Adjust(context.Background(), u.ID, 0, nil)
	assert.ErrorIs(t, err, sserrors.ErrInvalidAmount)
}

func TestAdjust_EitherSign(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")

	_, err := s.Adjust(context.Background(), u.ID, 500, nil)
	require.NoError(t, err)

	txn, err := s.Adjust(context.Background(), u.ID, -200, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionAdjustment, txn.Kind)
	assert.Equal(t, int64(300), txn.BalanceAfter)

	// Adjustments cannot overdraw either.
	_, err = s.Adjust(context.Background(), u.ID, -301, nil)
	assert.ErrorIs(t, err, sserrors.ErrInsufficientCredits)
}

func TestLedger_UnknownUser(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.TopUp(context.Background(), uuid.NewString(), 100, nil)
	assert.ErrorIs(t, err, sserrors.ErrUserNotFound)

	_, err = s.Balance(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, sserrors.ErrUserNotFound)
}

func TestTransactions_OrderAndChain(t *testing.T) {
	s, fake := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")

	_, err := s.TopUp(context.Background(), u.ID, 1000, nil)
	require.NoError(t, err)
	fake.Advance(time.Minute)
	_, err = s.Deduct(context.Background(), u.ID, 100, json.RawMessage(`{"model":"claude-sonnet-4-5"}`))
	require.NoError(t, err)
	fake.Advance(time.Minute)
	_, err = s.Deduct(context.Background(), u.ID, 50, nil)
	require.NoError(t, err)

	txns, err := s.Transactions(context.Background(), u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	// Newest first.
	assert.Equal(t, int64(-50), txns[0].AmountCredits)
	assert.Equal(t, int64(-100), txns[1].AmountCredits)
	assert.Equal(t, int64(1000), txns[2].AmountCredits)
	assert.JSONEq(t, `{"model":"claude-sonnet-4-5"}`, string(txns[1].Metadata))

	// Every row balances, and each row chains off the one before it.
	for _, txn := range txns {
		assert.Equal(t, txn.AmountCredits, txn.BalanceAfter-txn.BalanceBefore)
	}
	assert.Equal(t, txns[2].BalanceAfter, txns[1].BalanceBefore)
	assert.Equal(t, txns[1].BalanceAfter, txns[0].BalanceBefore)

	// The newest row agrees with the denormalized balance.
	balance, err := s.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, txns[0].BalanceAfter, balance)
}

func TestTransactions_Limit(t *testing.T) {
	s, fake := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")

	for i := 0; i < 4; i++ {
		_, err := s.TopUp(context.Background(), u.ID, 10, nil)
		require.NoError(t, err)
		fake.Advance(time.Second)
	}

	txns, err := s.Transactions(context.Background(), u.ID, 2)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(40), txns[0].BalanceAfter)
	assert.Equal(t, int64(30), txns[1].BalanceAfter)
}
