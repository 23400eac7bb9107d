package registry

import "time"

// Session is one independent running agent process registered in the
// shared store. Its liveness is computed from LastSeen against the TTL,
// never tracked by a timer.
type Session struct {
	ID       string
	Task     string
	Files    []string
	CWD      string
	LastSeen time.Time
}

// Age returns how long ago the session last heartbeat-ed.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.LastSeen)
}

// Info carries the descriptive fields a session reports on heartbeat.
// Empty fields leave the stored value unchanged.
type Info struct {
	Task  string
	Files []string
	CWD   string
}
