package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Balance returns the current credit balance for one account.
func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT credit_balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sserrors.Wrapf(sserrors.ErrUserNotFound, "%s", userID)
	}
	if err != nil {
		return 0, sserrors.Wrap(err, "reading balance")
	}
	return balance, nil
}

// TopUp credits an account. credits must be positive; it is the post-markup
// amount computed by the gateway's credit math, not raw USD.
func (s *Store) TopUp(ctx context.Context, userID string, credits int64, metadata json.RawMessage) (*domain.CreditTransaction, error) {
	if credits <= 0 {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidAmount, "top-up of %d credits", credits)
	}
	return s.applyLedger(ctx, userID, domain.TransactionTopUp, credits, metadata)
}

// Deduct debits an account for provider usage. credits must be positive;
// the ledger records the signed (negative) delta. Returns
// ErrInsufficientCredits when the balance cannot cover it.
func (s *Store) Deduct(ctx context.Context, userID string, credits int64, metadata json.RawMessage) (*domain.CreditTransaction, error) {
	if credits <= 0 {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidAmount, "deduction of %d credits", credits)
	}
	return s.applyLedger(ctx, userID, domain.TransactionDeduction, -credits, metadata)
}

// Refund returns credits from a reversed deduction. credits must be
// positive.
func (s *Store) Refund(ctx context.Context, userID string, credits int64, metadata json.RawMessage) (*domain.CreditTransaction, error) {
	if credits <= 0 {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidAmount, "refund of %d credits", credits)
	}
	return s.applyLedger(ctx, userID, domain.TransactionRefund, credits, metadata)
}

// Adjust applies an admin correction of either sign.
func (s *Store) Adjust(ctx context.Context, userID string, delta int64, metadata json.RawMessage) (*domain.CreditTransaction, error) {
	if delta == 0 {
		return nil, sserrors.Wrap(sserrors.ErrInvalidAmount, "zero adjustment")
	}
	return s.applyLedger(ctx, userID, domain.TransactionAdjustment, delta, metadata)
}

// Transactions returns the newest ledger rows for one account, newest
// first. limit <= 0 returns everything.
func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, kind, amount_credits, balance_before, balance_after, metadata, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sserrors.Wrap(err, "querying ledger")
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.CreditTransaction
	for rows.Next() {
		txn, serr := scanTransaction(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, sserrors.Wrap(err, "iterating ledger")
	}
	return out, nil
}

// applyLedger is the single mutation path for balances. Inside one
// transaction it reads the balance, refuses overdrafts, appends the ledger
// row, and writes the new balance back, so balance_after on the newest row
// always equals the user row's balance.
func (s *Store) applyLedger(ctx context.Context, userID string, kind domain.TransactionKind, delta int64, metadata json.RawMessage) (*domain.CreditTransaction, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	var before int64
	err = tx.QueryRowContext(ctx,
		`SELECT credit_balance FROM users WHERE id = ?`, userID).Scan(&before)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sserrors.Wrapf(sserrors.ErrUserNotFound, "%s", userID)
	}
	if err != nil {
		return nil, sserrors.Wrap(err, "reading balance")
	}

	after := before + delta
	if after < 0 {
		return nil, sserrors.Wrapf(sserrors.ErrInsufficientCredits,
			"balance %d, need %d", before, -delta)
	}

	txn := &domain.CreditTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          kind,
		AmountCredits: delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Metadata:      metadata,
		CreatedAt:     s.now(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_transactions
			(id, user_id, kind, amount_credits, balance_before, balance_after, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, string(txn.Kind), txn.AmountCredits,
		txn.BalanceBefore, txn.BalanceAfter, nullableJSON(txn.Metadata), formatTime(txn.CreatedAt),
	)
	if err != nil {
		return nil, sserrors.Wrap(err, "appending ledger row")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET credit_balance = ? WHERE id = ?`, after, userID)
	if err != nil {
		return nil, sserrors.Wrap(err, "writing balance")
	}

	if err := commit(tx); err != nil {
		return nil, err
	}
	return txn, nil
}

// scanTransaction reads one credit_transactions row.
func scanTransaction(row rowScanner) (*domain.CreditTransaction, error) {
	var (
		txn       domain.CreditTransaction
		kind      string
		metadata  sql.NullString
		createdAt string
	)
	err := row.Scan(&txn.ID, &txn.UserID, &kind, &txn.AmountCredits,
		&txn.BalanceBefore, &txn.BalanceAfter, &metadata, &createdAt)
	if err != nil {
		return nil, sserrors.Wrap(err, "scanning ledger row")
	}
	txn.Kind = domain.TransactionKind(kind)
	if metadata.Valid && metadata.String != "" {
		txn.Metadata = json.RawMessage(metadata.String)
	}
	if txn.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &txn, nil
}

// nullableJSON stores empty metadata as NULL.
func nullableJSON(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}
