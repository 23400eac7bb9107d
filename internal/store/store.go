// Package store owns the shared SQLite database that every claustrum
// invocation coordinates through. It provides short-lived transactional
// units of work with bounded retry on contention; all cross-session
// visibility rests on the serialization this store provides.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnavailable indicates the store could not be opened or a
// transaction could not complete within the retry ceiling. Callers at
// the hook boundary must degrade to a no-op, never block on it.
var ErrUnavailable = errors.New("store unavailable")

// Options bound how long an operation may wait on store contention.
type Options struct {
	// BusyTimeout is the SQLite busy_timeout pragma value.
	BusyTimeout time.Duration
	// MaxAttempts is the number of times WithTx retries a transaction
	// that fails with a busy condition before giving up.
	MaxAttempts int
	// RetryBackoff is the base sleep between attempts; it doubles each
	// retry.
	RetryBackoff time.Duration
}

// DefaultOptions match the config package defaults.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:  5 * time.Second,
		MaxAttempts:  5,
		RetryBackoff: 50 * time.Millisecond,
	}
}

// Store wraps the shared SQLite database.
type Store struct {
	db   *sql.DB
	path string
	opts Options
}

// Open opens (creating if necessary) the shared database at path and
// ensures the schema exists. Safe to call from every process; schema
// creation is idempotent.
//
// Write transactions take the database lock immediately (_txlock) so a
// check-then-insert inside one transaction is serialized against other
// writers rather than failing on a deferred lock upgrade.
func Open(path string, opts Options) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrUnavailable)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %v", ErrUnavailable, err)
	}

	dsn := "file:" + path + "?_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrUnavailable, err)
	}

	// A single connection per process avoids intra-process lock
	// contention; each invocation performs a handful of statements.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: exec %q: %v", ErrUnavailable, p, err)
		}
	}

	s := &Store{db: db, path: path, opts: opts}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", ErrUnavailable, err)
	}
	return s, nil
}

// DB exposes the underlying database for read-only queries. Mutations
// must go through WithTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx executes fn inside one transaction. On a busy condition the
// transaction is rolled back and retried with doubling backoff up to
// MaxAttempts, after which ErrUnavailable is returned. Any other error
// from fn aborts immediately and is returned as-is.
func (s *Store) WithTx(fn func(tx *sql.Tx) error) error {
	backoff := s.opts.RetryBackoff
	var lastErr error

	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		tx, err := s.db.Begin()
		if err != nil {
			if isBusy(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isBusy(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: gave up after %d attempts: %v", ErrUnavailable, s.opts.MaxAttempts, lastErr)
}

// isBusy reports whether err is a transient SQLite contention error
// worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
