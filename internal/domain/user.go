package domain

import (
	"encoding/json"
	"time"
)

// User is one gateway account. Credit balance is denormalized onto the row
// and kept consistent with the transaction ledger inside a single database
// transaction on every mutation.
type User struct {
	// ID is the unique user identifier (UUID).
	ID string `json:"id"`

	// Email is the login identifier, unique across users.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the password. Never serialized.
	PasswordHash string `json:"-"`

	// Role is either "user" or "admin".
	Role string `json:"role"`

	// CreditBalance is the current balance in credits; never negative.
	CreditBalance int64 `json:"credit_balance"`

	// IsActive gates spending; disabled accounts fail gateway calls.
	IsActive bool `json:"is_active"`

	// CreatedAt is the UTC registration time.
	CreatedAt time.Time `json:"created_at"`
}

// TransactionKind categorizes one ledger entry.
type TransactionKind string

// Transaction kinds recorded in the credit ledger.
const (
	// TransactionTopUp credits the balance from a payment. Amount is
	// positive.
	TransactionTopUp TransactionKind = "topup"

	// TransactionDeduction debits the balance for provider usage. Amount is
	// negative.
	TransactionDeduction TransactionKind = "deduction"

	// TransactionRefund returns credits from a reversed deduction. Amount is
	// positive.
	TransactionRefund TransactionKind = "refund"

	// TransactionAdjustment is an admin-issued correction, either sign.
	TransactionAdjustment TransactionKind = "adjustment"
)

// CreditTransaction is one append-only ledger row. The ledger is the audit
// source of truth: balance_after - balance_before always equals the signed
// amount, and the newest row's balance_after always equals the user row's
// balance.
//
// Example JSON representation:
//
//	{
//	    "id": "a81f44c0-...",
//	    "user_id": "3f6e2c1a-...",
//	    "kind": "deduction",
//	    "amount_credits": -100,
//	    "balance_before": 86956,
//	    "balance_after": 86856,
//	    "metadata": {"provider": "anthropic", "model": "claude-sonnet-4-5", "raw_cost_usd": 0.1},
//	    "created_at": "2026-01-15T10:00:05Z"
//	}
type CreditTransaction struct {
	// ID is the unique transaction identifier (UUID).
	ID string `json:"id"`

	// UserID links the row to its account.
	UserID string `json:"user_id"`

	// Kind is topup, deduction, refund, or adjustment.
	Kind TransactionKind `json:"kind"`

	// AmountCredits is the signed balance delta: positive for top-ups,
	// negative for deductions.
	AmountCredits int64 `json:"amount_credits"`

	// BalanceBefore is the balance the mutation started from.
	BalanceBefore int64 `json:"balance_before"`

	// BalanceAfter is the balance the mutation produced.
	BalanceAfter int64 `json:"balance_after"`

	// Metadata carries call details (provider, model, token counts, USD).
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// CreatedAt is the UTC ledger time.
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
