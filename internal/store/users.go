package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// CreateUser inserts a new account row. The caller supplies the ID and the
// bcrypt password hash; CreatedAt is stamped here. Returns ErrUserExists
// when the email is already registered.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(tx)

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, u.Email).Scan(&existing)
	if err != nil {
		return sserrors.Wrap(err, "checking email uniqueness")
	}
	if existing > 0 {
		return sserrors.Wrapf(sserrors.ErrUserExists, "%s", u.Email)
	}

	u.CreatedAt = s.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, credit_balance, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.CreditBalance,
		boolToInt(u.IsActive), formatTime(u.CreatedAt),
	)
	if err != nil {
		return sserrors.Wrap(err, "inserting user")
	}
	return commit(tx)
}

// GetUser loads one account by ID. Returns ErrUserNotFound when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, credit_balance, is_active, created_at
		FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sserrors.Wrapf(sserrors.ErrUserNotFound, "%s", id)
	}
	return u, err
}

// GetUserByEmail loads one account by email. Returns ErrUserNotFound when
// absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, credit_balance, is_active, created_at
		FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sserrors.Wrapf(sserrors.ErrUserNotFound, "%s", email)
	}
	return u, err
}

// SetUserActive enables or disables an account. Disabled accounts keep their
// balance but fail gateway pre-flight.
func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return sserrors.Wrap(err, "updating user")
	}
	return requireRow(res, sserrors.Wrapf(sserrors.ErrUserNotFound, "%s", id))
}

// scanUser reads one users row.
func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		active    int
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreditBalance, &active, &createdAt)
	if err != nil {
		return nil, err
	}
	u.IsActive = active != 0
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// rollback discards a transaction; safe after commit.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}

// commit finalizes a transaction with a wrapped error.
func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return sserrors.Wrap(err, "committing transaction")
	}
	return nil
}

// requireRow converts a zero-row update into notFound.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return sserrors.Wrap(err, "reading rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a stored timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, sserrors.Wrap(err, "parsing stored timestamp")
	}
	return t, nil
}
