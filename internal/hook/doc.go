// Package hook implements the host-tool hook boundary. Each hook event
// reads a JSON payload from stdin, performs its coordination work, and
// reports an Outcome (exit code plus stdout/stderr text).
//
// The boundary is fail-open: coordination is advisory, so an internal
// failure of any kind — unreadable payload, unopenable store, busy
// database — degrades to "allow" with exit 0 and no output. The one
// intentional exception is a confirmed claim conflict on pre-edit,
// which blocks the edit with ExitBlock and a one-line reason.
package hook
