// Package db wraps the SQLite file behind a single-owner handle. Work happens
// inside Scope, which serializes callers and commits when the scope exits.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/observability"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Executor runs one statement and returns its rows. Statements that produce
// no rows return a nil slice.
type Executor interface {
	Execute(ctx context.Context, query string, args ...any) ([][]any, error)
}

// Conn hands out an Executor for the duration of fn and commits on return.
type Conn interface {
	Scope(ctx context.Context, fn func(Executor) error) error
}

// Options tunes how the database file is opened.
type Options struct {
	// JournalMode is the SQLite journal mode (WAL, DELETE, ...).
	JournalMode string
	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration
	// Stats, when set, receives statement timings and predicate usage.
	Stats *observability.QueryStats
}

// DefaultOptions returns the options used by Open when none are given.
func DefaultOptions() Options {
	return Options{
		JournalMode: "WAL",
		BusyTimeout: 5 * time.Second,
	}
}

// DB is an open database file. It is safe for use by multiple goroutines,
// but scopes run one at a time.
type DB struct {
	mu   sync.Mutex
	path string
	opts Options
	db   *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, opts Options) (*DB, error) {
	if opts.JournalMode == "" {
		opts.JournalMode = DefaultOptions().JournalMode
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}

	d := &DB{path: path, opts: opts}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) open() error {
	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d",
		d.path, d.opts.JournalMode, d.opts.BusyTimeout.Milliseconds())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return ormerrors.NewExecutionError(ormerrors.CodeStatementFailed, "failed to open database", err)
	}
	// Single owner: one connection, so a scope's transaction sees its own writes.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return ormerrors.NewExecutionError(ormerrors.CodeStatementFailed,
			fmt.Sprintf("failed to open database %s", d.path), err)
	}
	d.db = sqlDB
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Stats returns the statistics sink, or nil.
func (d *DB) Stats() *observability.QueryStats { return d.opts.Stats }

// Scope begins a transaction, runs fn and commits, whatever fn returns.
// Statements that succeeded before a failure stay committed; there is no
// rollback. The error from fn takes precedence over a commit error.
func (d *DB) Scope(ctx context.Context, fn func(Executor) error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ormerrors.NewExecutionError(ormerrors.CodeConnClosed, "database is closed", nil)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return ormerrors.NewExecutionError(ormerrors.CodeStatementFailed, "failed to begin scope", err)
	}

	s := &Session{id: uuid.NewString(), tx: tx, stats: d.opts.Stats}
	defer func() {
		if cerr := tx.Commit(); cerr != nil {
			log.Printf("db: commit failed (session %s): %v", s.id, cerr)
			if err == nil {
				err = ormerrors.NewExecutionError(ormerrors.CodeCommitFailed, "failed to commit scope", cerr)
			}
		}
	}()

	return fn(s)
}

// Exec runs a statement outside any transaction. SQLite refuses some
// statements, such as VACUUM, inside one.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ormerrors.NewExecutionError(ormerrors.CodeConnClosed, "database is closed", nil)
	}

	start := time.Now()
	_, err := d.db.ExecContext(ctx, query, args...)
	d.record(query, time.Since(start), err)
	if err != nil {
		log.Printf("db: statement failed: %s: %v", query, err)
		return ormerrors.NewExecutionError(ormerrors.CodeStatementFailed, "statement failed", err).
			WithDetails(map[string]any{"sql": query})
	}
	return nil
}

// Reopen closes the database, runs fn with the file path, and opens the
// file again. It backs Clean and snapshot restores.
func (d *DB) Reopen(fn func(path string) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		if err := d.db.Close(); err != nil {
			return ormerrors.NewExecutionError(ormerrors.CodeStatementFailed, "failed to close database", err)
		}
		d.db = nil
	}

	if err := fn(d.path); err != nil {
		// Reopen whatever is on disk so the handle stays usable.
		if oerr := d.open(); oerr != nil {
			log.Printf("db: reopen after failure: %v", oerr)
		}
		return err
	}
	return d.open()
}

// Clean deletes the database file and starts over with an empty one.
func (d *DB) Clean() error {
	return d.Reopen(func(path string) error {
		for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return ormerrors.NewExecutionError(ormerrors.CodeStatementFailed,
					fmt.Sprintf("failed to remove %s", p), err)
			}
		}
		log.Printf("db: cleaned %s", path)
		return nil
	})
}

// Close closes the database. Further scopes fail.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *DB) record(query string, elapsed time.Duration, err error) {
	if d.opts.Stats != nil {
		d.opts.Stats.RecordStatement(query, elapsed, err != nil)
	}
}

// Session is the Executor handed to a Scope callback. It is only valid
// until the callback returns.
type Session struct {
	id    string
	tx    *sql.Tx
	stats *observability.QueryStats
}

// ID identifies the scope in logs.
func (s *Session) ID() string { return s.id }

// Stats returns the statistics sink, or nil.
func (s *Session) Stats() *observability.QueryStats { return s.stats }

// Execute runs a statement. A failing statement is logged and returned as
// an execution error; it is never retried.
func (s *Session) Execute(ctx context.Context, query string, args ...any) ([][]any, error) {
	start := time.Now()
	rows, err := s.execute(ctx, query, args)
	if s.stats != nil {
		s.stats.RecordStatement(query, time.Since(start), err != nil)
	}
	if err != nil {
		log.Printf("db: statement failed (session %s): %s: %v", s.id, query, err)
		return nil, ormerrors.NewExecutionError(ormerrors.CodeStatementFailed, "statement failed", err).
			WithDetails(map[string]any{"sql": query})
	}
	return rows, nil
}

func (s *Session) execute(ctx context.Context, query string, args []any) ([][]any, error) {
	if !returnsRows(query) {
		_, err := s.tx.ExecContext(ctx, query, args...)
		return nil, err
	}

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		row := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// returnsRows reports whether a statement produces a result set.
func returnsRows(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "PRAGMA", "VALUES", "EXPLAIN"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}
