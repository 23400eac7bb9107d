package filelock

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joewaller/claustrum/internal/store"
)

// Manager grants and releases exclusive file claims through the shared
// store. Liveness of a claim is the liveness of its owning session,
// computed against the session TTL on every read.
type Manager struct {
	store *store.Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Manager over the given store with the given session TTL.
func New(s *store.Store, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store: s,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) cutoff() int64 {
	return m.now().Add(-m.ttl).UnixMilli()
}

// Claim attempts to take exclusive ownership of path for sessionID.
// The existence check and the insert run in one transaction; two
// sessions racing for the same path are serialized by the store so
// exactly one wins. A claim whose owner has expired counts as absent
// and is taken over in place.
func (m *Manager) Claim(sessionID, path string) (Result, error) {
	path = Normalize(path)
	if sessionID == "" || path == "" {
		return Result{}, fmt.Errorf("claim: session id and path are required")
	}

	var res Result
	err := m.store.WithTx(func(tx *sql.Tx) error {
		var err error
		res, err = ClaimTx(tx, sessionID, path, m.now().UnixMilli(), m.cutoff())
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// ClaimTx performs the atomic check-and-insert inside an existing
// transaction, so callers can bundle it with a heartbeat.
func ClaimTx(tx *sql.Tx, sessionID, path string, nowMs, cutoffMs int64) (Result, error) {
	var (
		ownerID   string
		ownerSeen int64
		ownerTask string
	)
	err := tx.QueryRow(`
		SELECT c.owner_id, COALESCE(s.last_seen, 0), COALESCE(s.task, '')
		FROM claims c
		LEFT JOIN sessions s ON s.id = c.owner_id
		WHERE c.path = ?`,
		path,
	).Scan(&ownerID, &ownerSeen, &ownerTask)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(
			`INSERT INTO claims (path, owner_id, claimed_at) VALUES (?, ?, ?)`,
			path, sessionID, nowMs,
		); err != nil {
			return Result{}, fmt.Errorf("insert claim: %w", err)
		}
		return Result{Granted: true}, nil

	case err != nil:
		return Result{}, fmt.Errorf("check claim: %w", err)

	case ownerID == sessionID:
		return Result{Granted: true, AlreadyHeld: true}, nil

	case ownerSeen < cutoffMs:
		// Owner is expired: the claim is treated as absent and taken
		// over in place.
		if _, err := tx.Exec(
			`UPDATE claims SET owner_id = ?, claimed_at = ? WHERE path = ?`,
			sessionID, nowMs, path,
		); err != nil {
			return Result{}, fmt.Errorf("take over claim: %w", err)
		}
		return Result{Granted: true}, nil

	default:
		return Result{OwnerID: ownerID, OwnerTask: ownerTask}, nil
	}
}

// Release deletes the claim on path iff sessionID owns it. Releasing a
// claim you don't own, or one that doesn't exist, is a quiet no-op.
func (m *Manager) Release(sessionID, path string) error {
	path = Normalize(path)
	if sessionID == "" || path == "" {
		return fmt.Errorf("release: session id and path are required")
	}
	return m.store.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM claims WHERE path = ? AND owner_id = ?`,
			path, sessionID,
		); err != nil {
			return fmt.Errorf("delete claim: %w", err)
		}
		return nil
	})
}

// ReleaseAll deletes every claim owned by sessionID.
func (m *Manager) ReleaseAll(sessionID string) error {
	return m.store.WithTx(func(tx *sql.Tx) error {
		return ReleaseAllTx(tx, sessionID)
	})
}

// ReleaseAllTx bulk-releases a session's claims inside an existing
// transaction; used by expiry and done handling.
func ReleaseAllTx(tx *sql.Tx, sessionID string) error {
	if _, err := tx.Exec(`DELETE FROM claims WHERE owner_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete claims: %w", err)
	}
	return nil
}

// Owner returns the live owner of path, or ("", false) when the path
// is unclaimed or its claim's owner has expired.
func (m *Manager) Owner(path string) (string, bool, error) {
	var ownerID string
	err := m.store.DB().QueryRow(`
		SELECT c.owner_id
		FROM claims c
		JOIN sessions s ON s.id = c.owner_id
		WHERE c.path = ? AND s.last_seen >= ?`,
		Normalize(path), m.cutoff(),
	).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query owner: %w", err)
	}
	return ownerID, true, nil
}

// ListActive returns all claims held by non-expired sessions, ordered
// by path for deterministic output.
func (m *Manager) ListActive() ([]Claim, error) {
	rows, err := m.store.DB().Query(`
		SELECT c.path, c.owner_id, c.claimed_at
		FROM claims c
		JOIN sessions s ON s.id = c.owner_id
		WHERE s.last_seen >= ?
		ORDER BY c.path`,
		m.cutoff(),
	)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []Claim
	for rows.Next() {
		var (
			c         Claim
			claimedAt int64
		)
		if err := rows.Scan(&c.Path, &c.OwnerID, &claimedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		c.ClaimedAt = time.UnixMilli(claimedAt)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// SessionClaims returns the paths claimed by the given session, sorted.
func (m *Manager) SessionClaims(sessionID string) ([]string, error) {
	rows, err := m.store.DB().Query(
		`SELECT path FROM claims WHERE owner_id = ? ORDER BY path`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list session claims: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
