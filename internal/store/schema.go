package store

// Schema for the three coordination tables. Timestamps are unix
// milliseconds. claims.path is an exact-match key; messages.id is the
// delivery order.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id        TEXT PRIMARY KEY,
	task      TEXT NOT NULL DEFAULT '',
	files     TEXT NOT NULL DEFAULT '[]',
	cwd       TEXT NOT NULL DEFAULT '',
	last_seen INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
	path       TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	claimed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_owner ON claims(owner_id);
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(to_id, id);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
`

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(schema)
	return err
}
