// Package coord wires the session registry, claim manager, and mailbox
// into the coordination operations that hooks and CLI commands invoke.
//
// Every invocation is a separate short-lived process; the Coordinator
// exists for the duration of one operation. There is no background
// maintenance, so every entry point runs an opportunistic GC sweep
// (expire stale sessions, release their claims, prune old messages)
// before its own work — this is how the store self-heals without a
// daemon.
package coord
