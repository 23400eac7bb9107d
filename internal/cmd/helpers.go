package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joewaller/claustrum/internal/config"
	"github.com/joewaller/claustrum/internal/coord"
	"github.com/joewaller/claustrum/internal/logging"
)

// sessionFlag is the --session value shared by session-scoped commands.
// Falls back to the CLAUSTRUM_SESSION_ID environment variable so hook
// scripts and shell sessions don't have to thread the id through every
// invocation.
var sessionFlag string

func resolveSessionID() (string, error) {
	if sessionFlag != "" {
		return sessionFlag, nil
	}
	if id := os.Getenv("CLAUSTRUM_SESSION_ID"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no session id: pass --session or set CLAUSTRUM_SESSION_ID")
}

// openCoordinator loads config and opens the coordinator plus its
// logger. The caller must Close both.
func openCoordinator() (*coord.Coordinator, *logging.Logger, error) {
	cfg := config.Get()

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		if l, err := logging.NewLogger(config.StateDir(), cfg.Logging.Level); err == nil {
			log = l
		}
	}

	c, err := coord.Open(cfg, coord.WithLogger(log))
	if err != nil {
		_ = log.Close()
		return nil, nil, fmt.Errorf("open coordination store: %w", err)
	}
	return c, log, nil
}

// formatAge renders a duration since a timestamp for display.
func formatAge(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Second:
		return "now"
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
}

// shortID abbreviates uuid-style session ids for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
