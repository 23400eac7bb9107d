package mailbox

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/joewaller/claustrum/internal/store"
)

// Mailbox stores and fetches directed and broadcast messages through
// the shared store.
type Mailbox struct {
	store *store.Store
	now   func() time.Time
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Mailbox) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Mailbox over the given store.
func New(s *store.Store, opts ...Option) *Mailbox {
	m := &Mailbox{
		store: s,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send appends a message. It always succeeds unless the store itself
// is unavailable.
func (m *Mailbox) Send(from, to string, kind Kind, body string) error {
	if from == "" {
		return fmt.Errorf("mailbox: message sender is required")
	}
	if to == "" {
		return fmt.Errorf("mailbox: message recipient is required")
	}
	if !ValidKind(kind) {
		return fmt.Errorf("mailbox: unknown message kind %q", kind)
	}

	now := m.now().UnixMilli()
	return m.store.WithTx(func(tx *sql.Tx) error {
		return SendTx(tx, from, to, kind, body, now)
	})
}

// SendTx appends a message inside an existing transaction.
func SendTx(tx *sql.Tx, from, to string, kind Kind, body string, nowMs int64) error {
	if _, err := tx.Exec(`
		INSERT INTO messages (from_id, to_id, kind, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		from, to, string(kind), body, nowMs,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// FetchSince returns every message addressed to sessionID or to
// broadcast with id > sinceID, in ascending id order. The caller is
// expected to persist the highest id it has seen as its own cursor.
// Pure read; never mutates.
func (m *Mailbox) FetchSince(sessionID string, sinceID int64) ([]Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("mailbox: session id is required")
	}

	rows, err := m.store.DB().Query(`
		SELECT id, from_id, to_id, kind, body, created_at
		FROM messages
		WHERE (to_id = ? OR to_id = ?) AND id > ?
		ORDER BY id ASC`,
		sessionID, BroadcastRecipient, sinceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Recent returns the most recent messages (any recipient), newest
// last, up to limit. Used for status display.
func (m *Mailbox) Recent(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := m.store.DB().Query(`
		SELECT id, from_id, to_id, kind, body, created_at
		FROM (
			SELECT id, from_id, to_id, kind, body, created_at
			FROM messages ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Prune deletes messages older than the retention window, regardless
// of read state. Returns the number deleted.
func (m *Mailbox) Prune(retention time.Duration) (int, error) {
	var pruned int
	err := m.store.WithTx(func(tx *sql.Tx) error {
		var err error
		pruned, err = PruneTx(tx, m.now().Add(-retention).UnixMilli())
		return err
	})
	return pruned, err
}

// PruneTx deletes messages created before cutoffMs inside an existing
// transaction.
func PruneTx(tx *sql.Tx, cutoffMs int64) (int, error) {
	res, err := tx.Exec(`DELETE FROM messages WHERE created_at < ?`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	return int(n), nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var (
			msg       Message
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.From, &msg.To, &kind, &msg.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = Kind(kind)
		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
