package hook

import (
	"fmt"
	"io"
	"strings"

	"github.com/joewaller/claustrum/internal/config"
	"github.com/joewaller/claustrum/internal/coord"
	"github.com/joewaller/claustrum/internal/logging"
	"github.com/joewaller/claustrum/internal/mailbox"
	"github.com/joewaller/claustrum/internal/registry"
)

// Exit codes understood by the host tool.
const (
	ExitAllow = 0
	ExitBlock = 2
)

// Event names the hook entry points.
type Event string

const (
	EventPreEdit    Event = "pre-edit"
	EventPostEdit   Event = "post-edit"
	EventTurnStart  Event = "turn-start"
	EventSessionEnd Event = "session-end"
)

// Outcome is what a hook invocation reports back to the host tool.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func allow() Outcome {
	return Outcome{ExitCode: ExitAllow}
}

// Runner executes hook events against an open coordinator.
type Runner struct {
	c       *coord.Coordinator
	cursors *CursorStore
	log     *logging.Logger
}

// NewRunner builds a Runner. A nil logger degrades to no-op.
func NewRunner(c *coord.Coordinator, cursors *CursorStore, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Runner{c: c, cursors: cursors, log: log}
}

// Execute opens the coordinator from cfg, decodes the payload from
// input, and dispatches the event. All setup failures are swallowed
// into "allow": a broken coordination layer must never block the host
// tool.
func Execute(cfg *config.Config, log *logging.Logger, event Event, input io.Reader) Outcome {
	if log == nil {
		log = logging.NopLogger()
	}

	p, err := DecodePayload(input)
	if err != nil || p.SessionID == "" {
		log.Debug("hook payload unusable", "event", string(event), "error", err)
		return allow()
	}

	c, err := coord.Open(cfg, coord.WithLogger(log))
	if err != nil {
		log.Warn("store unavailable, allowing", "event", string(event), "error", err)
		return allow()
	}
	defer c.Close()

	r := NewRunner(c, NewCursorStore(config.CursorDir()), log)
	switch event {
	case EventPreEdit:
		return r.PreEdit(p)
	case EventPostEdit:
		return r.PostEdit(p)
	case EventTurnStart:
		return r.TurnStart(p)
	case EventSessionEnd:
		return r.SessionEnd(p)
	default:
		log.Debug("unknown hook event", "event", string(event))
		return allow()
	}
}

// PreEdit claims the file about to be edited. Only a confirmed
// conflict blocks; a grant or any failure allows the edit.
func (r *Runner) PreEdit(p Payload) Outcome {
	path := strings.TrimSpace(p.ToolInput.FilePath)
	if path == "" {
		return allow()
	}

	res, err := r.c.Claim(p.SessionID, path)
	if err != nil {
		r.log.Warn("claim failed, allowing", "path", path, "error", err)
		return allow()
	}
	if res.Granted {
		return allow()
	}

	reason := fmt.Sprintf("%s is being edited by session %s", path, shortID(res.OwnerID))
	if res.OwnerTask != "" {
		reason += fmt.Sprintf(" (%s)", res.OwnerTask)
	}
	return Outcome{ExitCode: ExitBlock, Stderr: reason + "\n"}
}

// PostEdit broadcasts that the file changed so peers hear about it on
// their next turn.
func (r *Runner) PostEdit(p Payload) Outcome {
	path := strings.TrimSpace(p.ToolInput.FilePath)
	if path == "" {
		return allow()
	}
	if err := r.c.Send(p.SessionID, mailbox.BroadcastRecipient, mailbox.KindFileChange, path); err != nil {
		r.log.Warn("file-change broadcast failed", "path", path, "error", err)
	}
	return allow()
}

// TurnStart refreshes the session's heartbeat and renders pending
// coordination context: active peers and unseen messages. Prints
// nothing when the session is alone with an empty inbox.
func (r *Runner) TurnStart(p Payload) Outcome {
	if err := r.c.Heartbeat(p.SessionID, registry.Info{CWD: p.CWD}); err != nil {
		r.log.Warn("heartbeat failed", "error", err)
		return allow()
	}

	peers, err := r.c.ListActive(p.SessionID)
	if err != nil {
		r.log.Warn("list peers failed", "error", err)
		return allow()
	}

	cursor := r.cursors.Load(p.SessionID)
	msgs, err := r.c.FetchSince(p.SessionID, cursor)
	if err != nil {
		r.log.Warn("fetch messages failed", "error", err)
		return allow()
	}

	if len(msgs) > 0 {
		if err := r.cursors.Save(p.SessionID, msgs[len(msgs)-1].ID); err != nil {
			r.log.Warn("persist cursor failed", "error", err)
		}
	}

	out := renderContext(p.SessionID, peers, msgs)
	return Outcome{ExitCode: ExitAllow, Stdout: out}
}

// SessionEnd removes the session, releasing its claims; a summary in
// the payload goes out as a done broadcast.
func (r *Runner) SessionEnd(p Payload) Outcome {
	if err := r.c.MarkDone(p.SessionID, strings.TrimSpace(p.Summary)); err != nil {
		r.log.Warn("mark done failed", "error", err)
	}
	return allow()
}

// renderContext formats the turn-start block. Empty when there is
// nothing to say. A session's own broadcasts are not echoed back.
func renderContext(selfID string, peers []registry.Session, msgs []mailbox.Message) string {
	var inbox []mailbox.Message
	for _, m := range msgs {
		if m.From != selfID {
			inbox = append(inbox, m)
		}
	}
	if len(peers) == 0 && len(inbox) == 0 {
		return ""
	}

	var b strings.Builder
	if len(peers) > 0 {
		b.WriteString("Other active sessions:\n")
		for _, p := range peers {
			b.WriteString("  - " + shortID(p.ID))
			if p.Task != "" {
				b.WriteString(": " + p.Task)
			}
			if len(p.Files) > 0 {
				b.WriteString(" [" + strings.Join(p.Files, ", ") + "]")
			}
			b.WriteString("\n")
		}
	}
	if len(inbox) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Messages for you:\n")
		for _, m := range inbox {
			b.WriteString(fmt.Sprintf("  [%s] %s: %s\n", m.Kind, shortID(m.From), m.Body))
		}
	}
	return b.String()
}

// shortID abbreviates uuid-style session ids for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
