package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// ExecutionFilter narrows ListExecutions. Zero values mean "no filter".
type ExecutionFilter struct {
	// SpecID restricts to executions of one bundle.
	SpecID string

	// Workflow restricts to one descriptor name.
	Workflow string

	// Status restricts to one lifecycle state.
	Status constants.ExecutionStatus

	// Limit caps the result count; <= 0 returns everything.
	Limit int
}

// CreateExecution inserts a new execution row. Identity fields (workflow,
// args, flags) are frozen at insert; only status, progress, and the
// checkpoint pointer change afterwards through UpdateExecution.
func (s *Store) CreateExecution(ctx context.Context, e *domain.Execution) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	args, err := json.Marshal(e.Args)
	if err != nil {
		return sserrors.Wrap(err, "encoding args")
	}
	flags, err := json.Marshal(e.Flags)
	if err != nil {
		return sserrors.Wrap(err, "encoding flags")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions
			(id, workflow, spec_id, args, flags, status, total_steps,
			 current_step, error, started_at, ended_at, latest_checkpoint_id, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Workflow, e.SpecID, string(args), string(flags),
		string(e.Status), e.TotalSteps, e.CurrentStep, e.Error,
		formatTime(e.StartedAt), nullableTime(e.EndedAt), e.LatestCheckpointID, e.SchemaVersion,
	)
	if err != nil {
		return sserrors.Wrap(err, "inserting execution")
	}
	return nil
}

// UpdateExecution writes the mutable fields back. Returns
// ErrExecutionNotFound when the row is missing.
func (s *Store) UpdateExecution(ctx context.Context, e *domain.Execution) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET status = ?, current_step = ?, error = ?, ended_at = ?, latest_checkpoint_id = ?
		WHERE id = ?`,
		string(e.Status), e.CurrentStep, e.Error, nullableTime(e.EndedAt),
		e.LatestCheckpointID, e.ID,
	)
	if err != nil {
		return sserrors.Wrap(err, "updating execution")
	}
	return requireRow(res, sserrors.Wrapf(sserrors.ErrExecutionNotFound, "%s", e.ID))
}

// GetExecution loads one execution. Returns ErrExecutionNotFound when
// absent.
func (s *Store) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, executionColumns+` WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sserrors.Wrapf(sserrors.ErrExecutionNotFound, "%s", id)
	}
	return e, err
}

// ListExecutions returns executions newest-first, optionally filtered.
func (s *Store) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*domain.Execution, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := executionColumns + ` WHERE 1=1`
	var args []any
	if filter.SpecID != "" {
		query += ` AND spec_id = ?`
		args = append(args, filter.SpecID)
	}
	if filter.Workflow != "" {
		query += ` AND workflow = ?`
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sserrors.Wrap(err, "querying executions")
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Execution
	for rows.Next() {
		e, serr := scanExecution(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sserrors.Wrap(err, "iterating executions")
	}
	return out, nil
}

// executionColumns is the shared SELECT prefix for execution scans.
const executionColumns = `
	SELECT id, workflow, spec_id, args, flags, status, total_steps,
	       current_step, error, started_at, ended_at, latest_checkpoint_id, schema_version
	FROM executions`

// scanExecution reads one executions row.
func scanExecution(row rowScanner) (*domain.Execution, error) {
	var (
		e         domain.Execution
		args      string
		flags     string
		status    string
		startedAt string
		endedAt   sql.NullString
	)
	err := row.Scan(&e.ID, &e.Workflow, &e.SpecID, &args, &flags, &status,
		&e.TotalSteps, &e.CurrentStep, &e.Error, &startedAt, &endedAt,
		&e.LatestCheckpointID, &e.SchemaVersion)
	if err != nil {
		return nil, err
	}

	e.Status = constants.ExecutionStatus(status)
	if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
		return nil, sserrors.Wrap(err, "decoding args")
	}
	if err := json.Unmarshal([]byte(flags), &e.Flags); err != nil {
		return nil, sserrors.Wrap(err, "decoding flags")
	}
	if e.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t, perr := parseTime(endedAt.String)
		if perr != nil {
			return nil, perr
		}
		e.EndedAt = &t
	}
	return &e, nil
}

// nullableTime stores a nil time pointer as NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
