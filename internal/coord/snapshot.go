package coord

import (
	"github.com/joewaller/claustrum/internal/filelock"
	"github.com/joewaller/claustrum/internal/mailbox"
	"github.com/joewaller/claustrum/internal/registry"
)

// Snapshot is a point-in-time view of coordination state, used by the
// status command. It is assembled from three reads after a GC sweep;
// it is not a transactionally consistent cut, which is fine for a
// human-facing display.
type Snapshot struct {
	Sessions []registry.Session
	Claims   []filelock.Claim
	Messages []mailbox.Message
}

// recentMessages bounds how much mailbox history status displays.
const recentMessages = 20

// Snapshot collects active sessions, live claims, and recent messages.
func (c *Coordinator) Snapshot() (Snapshot, error) {
	if _, err := c.GC(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	var err error
	if snap.Sessions, err = c.registry.ListActive(""); err != nil {
		return Snapshot{}, err
	}
	if snap.Claims, err = c.claims.ListActive(); err != nil {
		return Snapshot{}, err
	}
	if snap.Messages, err = c.mailbox.Recent(recentMessages); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
