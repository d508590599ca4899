package domain

import (
	"context"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// ============ Transport interface ============

// ChatTransport issues the remote operations of the webhook backend. It has no state of its own.
type ChatTransport interface {
	// Submit sends an outgoing message attributed to user (fire-and-forget)
	Submit(ctx context.Context, user entity.User, text string) (*entity.SubmitAck, error)

	// FetchPage returns messages strictly after cursor. It never fails: on any
	// error the page is empty, Degraded is set and NextCursor equals cursor.
	FetchPage(ctx context.Context, userID, cursor string) entity.Page

	// SetAccessState blocks or unblocks the automated responder for email
	SetAccessState(ctx context.Context, email string, state entity.AccessState) error
}

// Registrar performs the login handshake that yields the backend user id
type Registrar interface {
	Register(ctx context.Context, name, email string) (*entity.User, error)
}

// ============ Session store interface ============

// SessionStore persists the logged-in user across process restarts
type SessionStore interface {
	LoadUser() (*entity.User, error)
	SaveUser(user entity.User) error
	ClearUser() error
}

// ============ Backend interfaces (local development server) ============

// MessageRepository stores contacts and their message log
type MessageRepository interface {
	// UpsertContact returns the contact for email, creating it on first use
	UpsertContact(ctx context.Context, name, email string) (*entity.Contact, error)

	// Append stores a record for userID; CreatedAt is strictly increasing per user
	Append(ctx context.Context, userID, content, direction string) (*entity.Record, error)

	// ListAfter returns records created strictly after afterTs (empty means all)
	// and the cursor for the next call
	ListAfter(ctx context.Context, userID, afterTs string) ([]entity.Record, string, error)

	// SetBlocked updates the responder access of the contact with email
	SetBlocked(ctx context.Context, email string, blocked bool) error

	// IsBlocked reports the responder access of userID
	IsBlocked(ctx context.Context, userID string) (bool, error)
}

// ChatResponder handles the webhook operations of the backend
type ChatResponder interface {
	// HandleMessage stores an inbound message and schedules the automated reply
	HandleMessage(ctx context.Context, name, email, text string) (*entity.SubmitAck, error)

	// Messages returns the log page after afterTs
	Messages(ctx context.Context, userID, afterTs string) ([]entity.Record, string, error)

	// SetAccess blocks or unblocks the automated reply for email
	SetAccess(ctx context.Context, email string, state entity.AccessState) error

	// Close waits for scheduled replies to finish
	Close()
}
