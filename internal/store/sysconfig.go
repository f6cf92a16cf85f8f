package store

import (
	"context"
	"database/sql"
	"errors"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// SetConfigValue upserts one system configuration entry. The gateway stores
// provider enable/disable switches here so admin actions survive restarts.
func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, formatTime(s.now()),
	)
	if err != nil {
		return sserrors.Wrap(err, "writing config value")
	}
	return nil
}

// GetConfigValue reads one system configuration entry. The second return
// reports whether the key exists.
func (s *Store) GetConfigValue(ctx context.Context, key string) (string, bool, error) {
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM system_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, sserrors.Wrap(err, "reading config value")
	}
	return value, true, nil
}
