package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// SaveCheckpoint appends a checkpoint and advances the execution's latest
// pointer in one transaction. Step indexes are strictly monotonic per
// execution: a write at or below the current high-water mark returns
// ErrCheckpointOrder, so replayed or concurrent writers cannot rewind the
// execution.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *domain.Checkpoint) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(tx)

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM executions WHERE id = ?`, cp.ExecutionID).Scan(&exists)
	if err != nil {
		return sserrors.Wrap(err, "checking execution")
	}
	if exists == 0 {
		return sserrors.Wrapf(sserrors.ErrExecutionNotFound, "%s", cp.ExecutionID)
	}

	var latest sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(step_index) FROM checkpoints WHERE execution_id = ?`, cp.ExecutionID).Scan(&latest)
	if err != nil {
		return sserrors.Wrap(err, "reading checkpoint high-water mark")
	}
	if latest.Valid && cp.StepIndex <= int(latest.Int64) {
		return sserrors.Wrapf(sserrors.ErrCheckpointOrder,
			"step_index %d is not above %d", cp.StepIndex, latest.Int64)
	}

	cp.CreatedAt = s.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (id, execution_id, step_index, step_name, state, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.ExecutionID, cp.StepIndex, cp.StepName,
		string(cp.State), cp.Note, formatTime(cp.CreatedAt),
	)
	if err != nil {
		return sserrors.Wrap(err, "inserting checkpoint")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE executions SET latest_checkpoint_id = ? WHERE id = ?`, cp.ID, cp.ExecutionID)
	if err != nil {
		return sserrors.Wrap(err, "advancing latest checkpoint")
	}

	return commit(tx)
}

// GetCheckpoint loads one checkpoint by ID. Returns ErrCheckpointNotFound
// when absent.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (*domain.Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, checkpointColumns+` WHERE id = ?`, id)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sserrors.Wrapf(sserrors.ErrCheckpointNotFound, "%s", id)
	}
	return cp, err
}

// LatestCheckpoint returns the checkpoint with the highest step index for
// one execution. Returns ErrCheckpointNotFound when none exist yet.
func (s *Store) LatestCheckpoint(ctx context.Context, executionID string) (*domain.Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, checkpointColumns+`
		WHERE execution_id = ?
		ORDER BY step_index DESC
		LIMIT 1`, executionID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sserrors.Wrapf(sserrors.ErrCheckpointNotFound, "execution %s", executionID)
	}
	return cp, err
}

// ListCheckpoints returns every checkpoint for one execution in step order.
func (s *Store) ListCheckpoints(ctx context.Context, executionID string) ([]*domain.Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, checkpointColumns+`
		WHERE execution_id = ?
		ORDER BY step_index ASC`, executionID)
	if err != nil {
		return nil, sserrors.Wrap(err, "querying checkpoints")
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Checkpoint
	for rows.Next() {
		cp, serr := scanCheckpoint(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, sserrors.Wrap(err, "iterating checkpoints")
	}
	return out, nil
}

// checkpointColumns is the shared SELECT prefix for checkpoint scans.
const checkpointColumns = `
	SELECT id, execution_id, step_index, step_name, state, note, created_at
	FROM checkpoints`

// scanCheckpoint reads one checkpoints row.
func scanCheckpoint(row rowScanner) (*domain.Checkpoint, error) {
	var (
		cp        domain.Checkpoint
		state     string
		createdAt string
	)
	err := row.Scan(&cp.ID, &cp.ExecutionID, &cp.StepIndex, &cp.StepName,
		&state, &cp.Note, &createdAt)
	if err != nil {
		return nil, err
	}
	cp.State = json.RawMessage(state)
	if cp.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &cp, nil
}
