package mailbox

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/joewaller/claustrum/internal/store"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMailbox(t *testing.T) (*Mailbox, *fakeClock) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "coord.db"), store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{t: time.Now()}
	return New(s, WithClock(clock.Now)), clock
}

func TestSendValidation(t *testing.T) {
	mb, _ := newTestMailbox(t)

	tests := []struct {
		name string
		from string
		to   string
		kind Kind
	}{
		{"missing from", "", "b", KindNote},
		{"missing to", "a", "", KindNote},
		{"unknown kind", "a", "b", Kind("gossip")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mb.Send(tt.from, tt.to, tt.kind, "body"); err == nil {
				t.Error("Send() = nil, want error")
			}
		})
	}
}

func TestFetchSinceDirectedAndBroadcast(t *testing.T) {
	mb, _ := newTestMailbox(t)

	if err := mb.Send("a", "b", KindNote, "for b"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if err := mb.Send("a", BroadcastRecipient, KindNote, "for everyone"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if err := mb.Send("a", "c", KindNote, "for c only"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	msgs, err := mb.FetchSince("b", 0)
	if err != nil {
		t.Fatalf("FetchSince() error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("FetchSince(b) = %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "for b" || msgs[1].Body != "for everyone" {
		t.Errorf("bodies = %q, %q", msgs[0].Body, msgs[1].Body)
	}
}

func TestFetchSinceCursorSemantics(t *testing.T) {
	mb, _ := newTestMailbox(t)

	for _, body := range []string{"one", "two", "three"} {
		if err := mb.Send("a", BroadcastRecipient, KindNote, body); err != nil {
			t.Fatalf("Send(%s) error: %v", body, err)
		}
	}

	all, err := mb.FetchSince("b", 0)
	if err != nil {
		t.Fatalf("FetchSince() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("FetchSince(0) = %d messages, want 3", len(all))
	}

	// IDs are strictly increasing in delivery order.
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Errorf("ids not increasing: %d then %d", all[i-1].ID, all[i].ID)
		}
	}

	// A cursor at the highest seen id returns nothing; no re-delivery.
	rest, err := mb.FetchSince("b", all[len(all)-1].ID)
	if err != nil {
		t.Fatalf("FetchSince(cursor) error: %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("FetchSince(high cursor) = %d messages, want 0", len(rest))
	}

	// A mid-stream cursor returns only what follows it.
	tail, err := mb.FetchSince("b", all[0].ID)
	if err != nil {
		t.Fatalf("FetchSince(mid cursor) error: %v", err)
	}
	if len(tail) != 2 || tail[0].Body != "two" {
		t.Errorf("FetchSince(mid cursor) = %+v, want [two three]", tail)
	}
}

func TestBroadcastVisibleToLateRegistrants(t *testing.T) {
	mb, _ := newTestMailbox(t)

	if err := mb.Send("a", BroadcastRecipient, KindNote, "renamed UserService to AccountService"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	// A session that never existed at send time still sees the
	// broadcast from cursor zero, as long as it's within retention.
	msgs, err := mb.FetchSince("latecomer", 0)
	if err != nil {
		t.Fatalf("FetchSince() error: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("FetchSince(latecomer) = %d messages, want 1", len(msgs))
	}
}

func TestPruneByRetention(t *testing.T) {
	mb, clock := newTestMailbox(t)

	if err := mb.Send("a", BroadcastRecipient, KindNote, "old"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	clock.Advance(2 * time.Hour)
	if err := mb.Send("a", BroadcastRecipient, KindNote, "recent"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	pruned, err := mb.Prune(time.Hour)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	msgs, err := mb.FetchSince("b", 0)
	if err != nil {
		t.Fatalf("FetchSince() error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "recent" {
		t.Errorf("after prune = %+v, want only recent", msgs)
	}
}

func TestRecentReturnsNewestInOrder(t *testing.T) {
	mb, _ := newTestMailbox(t)

	for _, body := range []string{"one", "two", "three"} {
		if err := mb.Send("a", "b", KindNote, body); err != nil {
			t.Fatalf("Send(%s) error: %v", body, err)
		}
	}

	msgs, err := mb.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Body != "two" || msgs[1].Body != "three" {
		t.Errorf("Recent(2) = %+v, want [two three]", msgs)
	}
}

func TestIsBroadcast(t *testing.T) {
	if !(Message{To: BroadcastRecipient}).IsBroadcast() {
		t.Error("broadcast message not detected")
	}
	if (Message{To: "b"}).IsBroadcast() {
		t.Error("directed message reported as broadcast")
	}
}
