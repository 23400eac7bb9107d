package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CursorStore persists each session's mailbox cursor — the highest
// message id it has been shown — as a small file under the state
// directory. The store holds the messages; the reader holds the
// cursor.
type CursorStore struct {
	dir string
}

// NewCursorStore returns a store rooted at dir (typically
// {stateDir}/cursors).
func NewCursorStore(dir string) *CursorStore {
	return &CursorStore{dir: dir}
}

// Load returns the session's cursor, or zero when no cursor exists or
// the file is unreadable. Zero means "show everything still retained",
// which at worst repeats messages — never loses them.
func (s *CursorStore) Load(sessionID string) int64 {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// Save records the session's cursor. The write is atomic: a torn write
// must not corrupt the cursor into a value past unseen messages.
func (s *CursorStore) Save(sessionID string, id int64) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cursor directory: %w", err)
	}
	return atomicWriteFile(s.path(sessionID), []byte(strconv.FormatInt(id, 10)), 0o644)
}

func (s *CursorStore) path(sessionID string) string {
	return filepath.Join(s.dir, sanitizeName(sessionID)+".cursor")
}

// sanitizeName maps a session id to a safe filename component.
func sanitizeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

// atomicWriteFile writes data via a temp file in the same directory
// followed by a rename, so the target is never partially written.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}
