// Package filelock provides advisory exclusive file claims across
// claustrum sessions.
//
// When multiple agent sessions run in parallel on one machine, they may
// attempt to edit the same file simultaneously. The filelock package
// prevents this by tracking claims in the shared SQLite store: sessions
// claim files before editing and release them when done. Because the
// sessions are separate processes, the check-then-insert happens inside
// a single write transaction — that transaction's serialization is the
// entire mutual-exclusion guarantee.
//
// A claim has no lifetime of its own: it is live exactly while its
// owning session is live, and is swept away with the session when the
// session expires or calls done.
//
// # Basic Usage
//
//	mgr := filelock.New(store, ttl)
//
//	// Claim a file before editing
//	res, err := mgr.Claim("session-1", "pkg/foo.go")
//	if err == nil && !res.Granted {
//	    // res.OwnerID holds the path
//	}
//
//	// Release when done
//	err = mgr.Release("session-1", "pkg/foo.go")
//
//	// Release everything on shutdown
//	err = mgr.ReleaseAll("session-1")
//
// Claim acquisition never waits or queues: it is an instantaneous
// accept/reject. A rejected claim is routine control flow, returned as
// a value rather than an error.
package filelock
