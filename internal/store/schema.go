package store

import (
	"context"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Schema statements run in order on every Open; each is idempotent.
// Timestamps are RFC3339Nano TEXT, UUIDs are TEXT primary keys, and the
// credit balance is guarded by a CHECK so no code path can take it negative.
var schema = []string{ //nolint:gochecknoglobals // static DDL
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		credit_balance INTEGER NOT NULL DEFAULT 0 CHECK (credit_balance >= 0),
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		kind TEXT NOT NULL,
		amount_credits INTEGER NOT NULL,
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		metadata TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON credit_transactions(user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		spec_id TEXT NOT NULL DEFAULT '',
		args TEXT NOT NULL DEFAULT '{}',
		flags TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		total_steps INTEGER NOT NULL,
		current_step INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		ended_at TEXT,
		latest_checkpoint_id TEXT NOT NULL DEFAULT '',
		schema_version TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_spec
		ON executions(spec_id, started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_status
		ON executions(status)`,

	`CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		execution_id TEXT NOT NULL REFERENCES executions(id),
		step_index INTEGER NOT NULL,
		step_name TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(execution_id, step_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_checkpoints_execution
		ON checkpoints(execution_id, step_index DESC)`,

	`CREATE TABLE IF NOT EXISTS system_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// migrate creates missing tables and indexes.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return sserrors.Wrapf(err, "migrating schema")
		}
	}
	return nil
}
