package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a timeline entry
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
	// SenderSystem is reserved for locally-synthesized status and error notices
	SenderSystem Sender = "system"
)

// Valid reports whether s is one of the known senders
func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderBot, SenderSystem:
		return true
	}
	return false
}

// Both prefixes are reserved for this client: a confirmed id from the backend
// carrying either one is rejected by the timeline merge.
const (
	// ProvisionalPrefix marks ids generated locally for optimistic entries
	ProvisionalPrefix = "temp-"
	// SystemPrefix marks ids of locally-synthesized system notices
	SystemPrefix = "sys-"
)

// Message is the atomic unit of the timeline. It is never mutated after creation.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	Timestamp int64 // epoch millis, display only
}

// IsProvisional reports whether the message carries a locally generated id
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

// IsLocal reports whether the id was generated on this client (provisional or system)
func (m Message) IsLocal() bool {
	return m.IsProvisional() || strings.HasPrefix(m.ID, SystemPrefix)
}

// IsValid reports whether the message has every field needed to be shown
func (m Message) IsValid() bool {
	return m.ID != "" && m.Text != "" && m.Sender.Valid()
}

// Time returns the timestamp as a time.Time (zero when unset)
func (m Message) Time() time.Time {
	if m.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp)
}

// NewProvisionalID returns a fresh id in the provisional subspace
func NewProvisionalID() string {
	return ProvisionalPrefix + uuid.NewString()
}

// NewSystemID returns a fresh id for a system notice
func NewSystemID() string {
	return SystemPrefix + uuid.NewString()
}

// NewProvisional builds an optimistic placeholder message
func NewProvisional(text string, sender Sender, now time.Time) Message {
	return Message{
		ID:        NewProvisionalID(),
		Text:      text,
		Sender:    sender,
		Timestamp: now.UnixMilli(),
	}
}

// NewSystemNotice builds a system message with a local id
func NewSystemNotice(text string, now time.Time) Message {
	return Message{
		ID:        NewSystemID(),
		Text:      text,
		Sender:    SenderSystem,
		Timestamp: now.UnixMilli(),
	}
}

// Page is one fetch result: messages strictly after the requested cursor
type Page struct {
	Items      []Message
	NextCursor string
	// Degraded is set when the fetch failed and this page is the empty fallback
	Degraded bool
}

// SubmitAck is what the backend returns for a submitted message. The sync
// engine does not rely on it; only the login handshake reads UserID.
type SubmitAck struct {
	UserID string
	Reply  string
}

// AccessState is the blocked/unblocked status of the automated responder
type AccessState int

const (
	AccessUnblocked AccessState = iota
	AccessBlocked
)

func (s AccessState) String() string {
	if s == AccessBlocked {
		return "blocked"
	}
	return "unblocked"
}
