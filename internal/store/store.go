// Package store persists executions, checkpoints, gateway accounts, the
// credit ledger, and system configuration in a single sqlite database.
//
// The database lives in the runtime tree (.spec/smartspec.db by default) and
// uses WAL mode with foreign keys enforced. The pool is capped at one open
// connection: sqlite supports one writer at a time, and the cap also makes
// read-modify-write transactions race-free within the process.
//
// This package follows strict import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain,
//     internal/errors, standard library
//   - MUST NOT import: internal/engine, internal/gateway, internal/workflow
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	// Pure-Go sqlite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/mrz1836/smartspec/internal/clock"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// defaultBusyTimeout is how long sqlite waits on a locked database before
// returning SQLITE_BUSY.
const defaultBusyTimeout = 5 * time.Second

// Store wraps the sqlite database. All methods are safe for concurrent use.
type Store struct {
	db          *sql.DB
	clock       clock.Clock
	path        string
	busyTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock substitutes the time source, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithBusyTimeout overrides the sqlite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// Open opens (creating if needed) the database at path and migrates the
// schema. Parent directories are created for file-backed databases; the
// special path ":memory:" stays in memory and vanishes on Close.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		clock:       clock.RealClock{},
		path:        path,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, sserrors.Wrap(err, "creating database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, sserrors.Wrap(err, "opening database")
	}

	// One writer at a time; one connection keeps :memory: databases alive
	// and serializes read-modify-write transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s.db = db
	if err := s.configure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// configure applies the connection pragmas.
func (s *Store) configure(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=" + durationMillis(s.busyTimeout),
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return sserrors.Wrapf(err, "applying %s", pragma)
		}
	}
	return nil
}

// Close closes the database. Double-close is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// checkOpen returns ErrStoreClosed after Close.
func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sserrors.ErrStoreClosed
	}
	return nil
}

// begin starts a transaction after the open check.
func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sserrors.Wrap(err, "beginning transaction")
	}
	return tx, nil
}

// now returns the current UTC time from the configured clock.
func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// durationMillis renders a duration as integer milliseconds for pragmas.
func durationMillis(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}
