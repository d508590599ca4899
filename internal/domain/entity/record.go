package entity

import "time"

// Record directions as stored by the backend
const (
	DirectionUser = "user"
	DirectionBot  = "bot"
)

// Contact is a backend-side chat user keyed by email
type Contact struct {
	ID      string
	Name    string
	Email   string
	Blocked bool
}

// Record is one stored message of the backend log
type Record struct {
	ID        string
	UserID    string
	Content   string
	Direction string
	CreatedAt time.Time
}

// CursorLayout is the format of created_at and next_after_ts
const CursorLayout = time.RFC3339Nano
