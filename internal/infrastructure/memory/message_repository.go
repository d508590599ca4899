package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// messageRepository is the in-memory implementation of MessageRepository.
// Contacts are keyed by lower-cased email; each contact owns an append-only log.
type messageRepository struct {
	mu       sync.RWMutex
	contacts map[string]*entity.Contact // email -> contact
	byID     map[string]*entity.Contact // id -> contact
	logs     map[string][]entity.Record // user id -> records in creation order
	now      func() time.Time
}

// NewMessageRepository creates an empty repository
func NewMessageRepository() domain.MessageRepository {
	return newMessageRepository(time.Now)
}

func newMessageRepository(now func() time.Time) *messageRepository {
	return &messageRepository{
		contacts: make(map[string]*entity.Contact),
		byID:     make(map[string]*entity.Contact),
		logs:     make(map[string][]entity.Record),
		now:      now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpsertContact returns the contact for email, creating it on first use.
// A non-empty name replaces the stored one.
func (r *messageRepository) UpsertContact(ctx context.Context, name, email string) (*entity.Contact, error) {
	key := normalizeEmail(email)
	if key == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.contacts[key]; ok {
		if name != "" {
			c.Name = name
		}
		copied := *c
		return &copied, nil
	}

	c := &entity.Contact{
		ID:    uuid.New().String(),
		Name:  name,
		Email: key,
	}
	r.contacts[key] = c
	r.byID[c.ID] = c
	copied := *c
	return &copied, nil
}

// Append stores a record. CreatedAt is bumped past the last record of the
// user so that cursors never skip a message written in the same instant.
func (r *messageRepository) Append(ctx context.Context, userID, content, direction string) (*entity.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}

	created := r.now().UTC()
	log := r.logs[userID]
	if n := len(log); n > 0 && !created.After(log[n-1].CreatedAt) {
		created = log[n-1].CreatedAt.Add(time.Microsecond)
	}

	rec := entity.Record{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   content,
		Direction: direction,
		CreatedAt: created,
	}
	r.logs[userID] = append(log, rec)
	return &rec, nil
}

// ListAfter returns records strictly after afterTs. The returned cursor is
// the created_at of the last record, or afterTs when nothing is newer.
func (r *messageRepository) ListAfter(ctx context.Context, userID, afterTs string) ([]entity.Record, string, error) {
	var after time.Time
	if afterTs != "" {
		t, err := time.Parse(entity.CursorLayout, afterTs)
		if err != nil {
			return nil, "", fmt.Errorf("after_ts %q: %w", afterTs, domain.ErrInvalidInput)
		}
		after = t
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.Record
	for _, rec := range r.logs[userID] {
		if afterTs == "" || rec.CreatedAt.After(after) {
			out = append(out, rec)
		}
	}

	next := afterTs
	if n := len(out); n > 0 {
		next = out[n-1].CreatedAt.Format(entity.CursorLayout)
	}
	return out, next, nil
}

// SetBlocked updates the access of the contact with email
func (r *messageRepository) SetBlocked(ctx context.Context, email string, blocked bool) error {
	key := normalizeEmail(email)
	if key == "" {
		return fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[key]
	if !ok {
		return fmt.Errorf("contact %s: %w", key, domain.ErrNotFound)
	}
	c.Blocked = blocked
	return nil
}

// IsBlocked reports the access of userID
func (r *messageRepository) IsBlocked(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[userID]
	if !ok {
		return false, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return c.Blocked, nil
}
