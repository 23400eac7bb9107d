package filelock

import (
	"path/filepath"
	"strings"
	"time"
)

// Claim represents an exclusive ownership claim on a file path.
type Claim struct {
	Path      string    // Normalized path being claimed
	OwnerID   string    // Session that owns the claim
	ClaimedAt time.Time // When the claim was established
}

// Result is the outcome of a claim attempt. A rejection is not an
// error: it carries the identity of the live owner so the caller can
// report who holds the file.
type Result struct {
	// Granted is true when the caller now owns the path.
	Granted bool
	// AlreadyHeld is true when the caller already owned the path
	// before this call (re-claiming your own file is a no-op success).
	AlreadyHeld bool
	// OwnerID identifies the live session holding the claim when
	// Granted is false.
	OwnerID string
	// OwnerTask is the owning session's task description, for display.
	OwnerTask string
}

// Normalize canonicalizes a claim path so that equivalent spellings
// collide on the exact-match key.
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
