// Package registry tracks live sessions in the shared store: identity,
// current task, declared files, and a last-seen heartbeat timestamp.
// "Active" is a computed predicate over last_seen and the TTL; expiry
// happens lazily when readers and GC sweeps apply it.
package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joewaller/claustrum/internal/store"
)

// ErrNotRegistered indicates an operation referenced a session id that
// has never heartbeat-ed. Recoverable: heartbeat first, then retry.
var ErrNotRegistered = errors.New("session not registered")

// Registry provides session presence operations over the shared store.
type Registry struct {
	store *store.Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Registry over the given store with the given session TTL.
func New(s *store.Store, ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		store: s,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the configured session time-to-live.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// cutoff returns the oldest last_seen (unix ms) still considered active.
func (r *Registry) cutoff() int64 {
	return r.now().Add(-r.ttl).UnixMilli()
}

// Heartbeat upserts the session row and bumps last_seen to now. A
// missing row is created with the given fields; on an existing row,
// empty Info fields leave the stored values unchanged. Idempotent and
// safe to call every turn.
func (r *Registry) Heartbeat(id string, info Info) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("heartbeat: session id is empty")
	}

	filesJSON, err := encodeFiles(info.Files)
	if err != nil {
		return fmt.Errorf("heartbeat: encode files: %w", err)
	}
	if info.Files == nil {
		filesJSON = ""
	}

	now := r.now().UnixMilli()
	return r.store.WithTx(func(tx *sql.Tx) error {
		return HeartbeatTx(tx, id, info.Task, filesJSON, info.CWD, now)
	})
}

// HeartbeatTx performs the heartbeat upsert inside an existing
// transaction. Empty task/files/cwd preserve the stored values;
// last_seen never moves backward.
func HeartbeatTx(tx *sql.Tx, id, task, filesJSON, cwd string, nowMs int64) error {
	_, err := tx.Exec(`
		INSERT INTO sessions (id, task, files, cwd, last_seen)
		VALUES (?, COALESCE(NULLIF(?, ''), ''), COALESCE(NULLIF(?, ''), '[]'), COALESCE(NULLIF(?, ''), ''), ?)
		ON CONFLICT(id) DO UPDATE SET
			task      = COALESCE(NULLIF(excluded.task, ''), sessions.task),
			files     = COALESCE(NULLIF(?, ''), sessions.files),
			cwd       = COALESCE(NULLIF(excluded.cwd, ''), sessions.cwd),
			last_seen = MAX(excluded.last_seen, sessions.last_seen)`,
		id, task, filesJSON, cwd, nowMs, filesJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Update changes the descriptive fields of an already-registered
// session. Returns ErrNotRegistered if the id has never heartbeat-ed.
func (r *Registry) Update(id string, info Info) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("update: session id is empty")
	}

	filesJSON, err := encodeFiles(info.Files)
	if err != nil {
		return fmt.Errorf("update: encode files: %w", err)
	}
	if info.Files == nil {
		filesJSON = ""
	}

	now := r.now().UnixMilli()
	return r.store.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE sessions SET
				task      = COALESCE(NULLIF(?, ''), task),
				files     = COALESCE(NULLIF(?, ''), files),
				last_seen = MAX(?, last_seen)
			WHERE id = ?`,
			info.Task, filesJSON, now, id,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotRegistered, id)
		}
		return nil
	})
}

// ListActive returns all sessions within the TTL window, most recent
// first, optionally excluding one id (typically the caller's own).
// Pure read; never mutates.
func (r *Registry) ListActive(excluding string) ([]Session, error) {
	rows, err := r.store.DB().Query(`
		SELECT id, task, files, cwd, last_seen
		FROM sessions
		WHERE last_seen >= ? AND id != ?
		ORDER BY last_seen DESC`,
		r.cutoff(), excluding,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s         Session
			filesJSON string
			lastSeen  int64
		)
		if err := rows.Scan(&s.ID, &s.Task, &filesJSON, &s.CWD, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Files = decodeFiles(filesJSON)
		s.LastSeen = time.UnixMilli(lastSeen)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Get returns the session with the given id if it is still active.
func (r *Registry) Get(id string) (Session, bool, error) {
	row := r.store.DB().QueryRow(`
		SELECT id, task, files, cwd, last_seen
		FROM sessions
		WHERE id = ? AND last_seen >= ?`,
		id, r.cutoff(),
	)

	var (
		s         Session
		filesJSON string
		lastSeen  int64
	)
	if err := row.Scan(&s.ID, &s.Task, &filesJSON, &s.CWD, &lastSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("get session: %w", err)
	}
	s.Files = decodeFiles(filesJSON)
	s.LastSeen = time.UnixMilli(lastSeen)
	return s, true, nil
}

// Remove deletes the session row immediately, regardless of the TTL
// clock. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) error {
	return r.store.WithTx(func(tx *sql.Tx) error {
		return RemoveTx(tx, id)
	})
}

// RemoveTx deletes a session row inside an existing transaction.
func RemoveTx(tx *sql.Tx, id string) error {
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ExpireStale removes every session past the TTL along with the claims
// it owns. Returns the number of sessions expired.
func (r *Registry) ExpireStale() (int, error) {
	var expired int
	err := r.store.WithTx(func(tx *sql.Tx) error {
		var err error
		expired, err = ExpireStaleTx(tx, r.cutoff())
		return err
	})
	return expired, err
}

// ExpireStaleTx removes sessions with last_seen before cutoffMs and
// the claims they own, inside an existing transaction. Claims go first
// so a crash between statements never leaves an orphaned claim.
func ExpireStaleTx(tx *sql.Tx, cutoffMs int64) (int, error) {
	if _, err := tx.Exec(`
		DELETE FROM claims WHERE owner_id IN
			(SELECT id FROM sessions WHERE last_seen < ?)`,
		cutoffMs,
	); err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM sessions WHERE last_seen < ?`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return int(n), nil
}

func encodeFiles(files []string) (string, error) {
	if files == nil {
		return "[]", nil
	}
	data, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeFiles(filesJSON string) []string {
	if filesJSON == "" || filesJSON == "[]" {
		return nil
	}
	var files []string
	if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
		return nil
	}
	return files
}
