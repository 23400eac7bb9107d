package coord

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joewaller/claustrum/internal/config"
	"github.com/joewaller/claustrum/internal/filelock"
	"github.com/joewaller/claustrum/internal/logging"
	"github.com/joewaller/claustrum/internal/mailbox"
	"github.com/joewaller/claustrum/internal/registry"
	"github.com/joewaller/claustrum/internal/store"
)

// ErrInvalidInput indicates a malformed session id or path. Unlike
// store failures this is surfaced to the direct caller, never silently
// swallowed.
var ErrInvalidInput = errors.New("invalid input")

// maxIDLen bounds session ids; anything longer is not an identifier.
const maxIDLen = 128

// Coordinator composes the coordination components over one shared
// store handle.
type Coordinator struct {
	store     *store.Store
	registry  *registry.Registry
	claims    *filelock.Manager
	mailbox   *mailbox.Mailbox
	ttl       time.Duration
	retention time.Duration
	log       *logging.Logger
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides the time source for the coordinator and all of
// its components, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Coordinator over an already-open store.
func New(s *store.Store, ttl, retention time.Duration, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     s,
		ttl:       ttl,
		retention: retention,
		log:       logging.NopLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registry = registry.New(s, ttl, registry.WithClock(c.now))
	c.claims = filelock.New(s, ttl, filelock.WithClock(c.now))
	c.mailbox = mailbox.New(s, mailbox.WithClock(c.now))
	return c
}

// Open opens the shared store described by cfg and builds a
// Coordinator over it.
func Open(cfg *config.Config, opts ...Option) (*Coordinator, error) {
	s, err := store.Open(cfg.Store.ResolvePath(), store.Options{
		BusyTimeout:  cfg.Store.BusyTimeout(),
		MaxAttempts:  cfg.Store.MaxAttempts,
		RetryBackoff: cfg.Store.RetryBackoff(),
	})
	if err != nil {
		return nil, err
	}
	return New(s, cfg.Session.TTL, cfg.Mailbox.Retention, opts...), nil
}

// Close releases the store handle.
func (c *Coordinator) Close() error {
	return c.store.Close()
}

// TTL returns the session time-to-live in effect.
func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

func (c *Coordinator) cutoff() int64 {
	return c.now().Add(-c.ttl).UnixMilli()
}

func (c *Coordinator) pruneCutoff() int64 {
	return c.now().Add(-c.retention).UnixMilli()
}

// gcTx runs the maintenance sweep inside an existing transaction.
func (c *Coordinator) gcTx(tx *sql.Tx) error {
	expired, err := registry.ExpireStaleTx(tx, c.cutoff())
	if err != nil {
		return err
	}
	pruned, err := mailbox.PruneTx(tx, c.pruneCutoff())
	if err != nil {
		return err
	}
	if expired > 0 || pruned > 0 {
		c.log.Debug("gc sweep", "sessions_expired", expired, "messages_pruned", pruned)
	}
	return nil
}

// GCStats reports what a maintenance sweep removed.
type GCStats struct {
	SessionsExpired int
	MessagesPruned  int
}

// GC expires stale sessions (releasing their claims) and prunes
// messages past retention, in one transaction.
func (c *Coordinator) GC() (GCStats, error) {
	var stats GCStats
	err := c.store.WithTx(func(tx *sql.Tx) error {
		var err error
		stats.SessionsExpired, err = registry.ExpireStaleTx(tx, c.cutoff())
		if err != nil {
			return err
		}
		stats.MessagesPruned, err = mailbox.PruneTx(tx, c.pruneCutoff())
		return err
	})
	return stats, err
}

// Heartbeat registers or refreshes a session and runs the GC sweep in
// the same transaction.
func (c *Coordinator) Heartbeat(id string, info registry.Info) error {
	id, err := validateID(id)
	if err != nil {
		return err
	}
	return c.store.WithTx(func(tx *sql.Tx) error {
		if err := c.gcTx(tx); err != nil {
			return err
		}
		return registry.HeartbeatTx(tx, id, info.Task, filesParam(info.Files), info.CWD, c.now().UnixMilli())
	})
}

// Update changes a registered session's descriptive fields.
func (c *Coordinator) Update(id string, info registry.Info) error {
	if _, err := validateID(id); err != nil {
		return err
	}
	if _, err := c.GC(); err != nil {
		return err
	}
	return c.registry.Update(id, info)
}

// ListActive returns active peer sessions, most recent first. The GC
// sweep runs first so claims held by just-expired sessions are gone by
// the time anyone renders status.
func (c *Coordinator) ListActive(excluding string) ([]registry.Session, error) {
	if _, err := c.GC(); err != nil {
		return nil, err
	}
	return c.registry.ListActive(excluding)
}

// MarkDone removes the session immediately: its claims are released,
// its row deleted, and when summary is non-empty a done broadcast is
// sent — all in one transaction.
func (c *Coordinator) MarkDone(id, summary string) error {
	id, err := validateID(id)
	if err != nil {
		return err
	}
	return c.store.WithTx(func(tx *sql.Tx) error {
		if err := c.gcTx(tx); err != nil {
			return err
		}
		if summary != "" {
			if err := mailbox.SendTx(tx, id, mailbox.BroadcastRecipient, mailbox.KindDone, summary, c.now().UnixMilli()); err != nil {
				return err
			}
		}
		if err := filelock.ReleaseAllTx(tx, id); err != nil {
			return err
		}
		return registry.RemoveTx(tx, id)
	})
}

// Claim attempts to take the exclusive claim on path for the session.
// The heartbeat, GC sweep, and check-and-insert share one transaction:
// two processes racing for the same path are serialized by the store,
// so exactly one sees "no claim" and inserts.
func (c *Coordinator) Claim(id, path string) (filelock.Result, error) {
	id, err := validateID(id)
	if err != nil {
		return filelock.Result{}, err
	}
	path = filelock.Normalize(path)
	if path == "" {
		return filelock.Result{}, fmt.Errorf("%w: empty path", ErrInvalidInput)
	}

	var res filelock.Result
	err = c.store.WithTx(func(tx *sql.Tx) error {
		if err := c.gcTx(tx); err != nil {
			return err
		}
		now := c.now().UnixMilli()
		if err := registry.HeartbeatTx(tx, id, "", "", "", now); err != nil {
			return err
		}
		var err error
		res, err = filelock.ClaimTx(tx, id, path, now, c.cutoff())
		return err
	})
	if err != nil {
		return filelock.Result{}, err
	}
	if !res.Granted {
		c.log.Debug("claim conflict", "path", path, "owner", res.OwnerID)
	}
	return res, nil
}

// Release gives up the session's claim on path. Quiet no-op when the
// claim is missing or owned by someone else.
func (c *Coordinator) Release(id, path string) error {
	id, err := validateID(id)
	if err != nil {
		return err
	}
	path = filelock.Normalize(path)
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	if _, err := c.GC(); err != nil {
		return err
	}
	return c.claims.Release(id, path)
}

// ListClaims returns all claims held by live sessions.
func (c *Coordinator) ListClaims() ([]filelock.Claim, error) {
	if _, err := c.GC(); err != nil {
		return nil, err
	}
	return c.claims.ListActive()
}

// Send appends a directed or broadcast message.
func (c *Coordinator) Send(from, to string, kind mailbox.Kind, body string) error {
	from, err := validateID(from)
	if err != nil {
		return err
	}
	if to != mailbox.BroadcastRecipient {
		if to, err = validateID(to); err != nil {
			return err
		}
	}
	if _, err := c.GC(); err != nil {
		return err
	}
	return c.mailbox.Send(from, to, kind, body)
}

// FetchSince returns messages for the session with id greater than
// sinceID, ascending. The caller owns the cursor.
func (c *Coordinator) FetchSince(id string, sinceID int64) ([]mailbox.Message, error) {
	id, err := validateID(id)
	if err != nil {
		return nil, err
	}
	if _, err := c.GC(); err != nil {
		return nil, err
	}
	return c.mailbox.FetchSince(id, sinceID)
}

// Reset clears all coordination state: sessions, claims, and messages.
// Operator-triggered only.
func (c *Coordinator) Reset() error {
	return c.store.WithTx(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM claims`,
			`DELETE FROM messages`,
			`DELETE FROM sessions`,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return nil
	})
}

// filesParam renders a files slice for HeartbeatTx: nil means "leave
// the stored value alone", which the upsert expresses as empty string.
func filesParam(files []string) string {
	if files == nil {
		return ""
	}
	data, err := json.Marshal(files)
	if err != nil {
		return ""
	}
	return string(data)
}

// validateID normalizes and checks a session id.
func validateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	if len(id) > maxIDLen {
		return "", fmt.Errorf("%w: session id longer than %d bytes", ErrInvalidInput, maxIDLen)
	}
	if strings.ContainsAny(id, "\n\r\t") {
		return "", fmt.Errorf("%w: session id contains control characters", ErrInvalidInput)
	}
	return id, nil
}
