// Package mailbox provides inter-session messaging through the shared
// store. Messages are directed at one session or broadcast to all, and
// are read with a cursor: a reader asks for everything after the last
// message id it has seen and persists the new high-water mark itself.
// The mailbox keeps no per-reader state, which keeps reads idempotent
// and side-effect-free.
//
// Messages are ephemeral. A GC sweep deletes anything older than the
// retention window regardless of read state; the mailbox is a bounded
// notification channel, not a knowledge base.
package mailbox
