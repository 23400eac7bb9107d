package mailbox

import "time"

// Kind identifies the category of an inter-session message.
type Kind string

const (
	// KindNote is a free-text note from one session to another or to all.
	KindNote Kind = "note"

	// KindFileChange announces that the sender edited a file.
	KindFileChange Kind = "file_change"

	// KindDone announces that the sender finished its work, with an
	// optional summary.
	KindDone Kind = "done"
)

// BroadcastRecipient is the special "to" value for messages intended
// for all sessions.
const BroadcastRecipient = "broadcast"

// Message represents a single inter-session communication. ID is
// assigned by the store and defines delivery order.
type Message struct {
	ID        int64
	From      string
	To        string
	Kind      Kind
	Body      string
	CreatedAt time.Time
}

// IsBroadcast returns true if the message is addressed to all sessions.
func (m Message) IsBroadcast() bool {
	return m.To == BroadcastRecipient
}

// validKinds for validation at the send boundary.
var validKinds = map[Kind]bool{
	KindNote:       true,
	KindFileChange: true,
	KindDone:       true,
}

// ValidKind returns true if the given kind is known.
func ValidKind(k Kind) bool {
	return validKinds[k]
}
