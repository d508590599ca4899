package chatsync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// DefaultProvisionalTTL is how long a provisional entry stays outstanding
// before a new provisional entry with the same text and sender may replace it
const DefaultProvisionalTTL = 2 * time.Minute

// MergeResult reports what a Merge call did to the timeline
type MergeResult struct {
	Added      []entity.Message // confirmed messages appended, in order
	Reconciled int              // provisional entries superseded
	Skipped    int              // invalid, reserved-id or already-present messages dropped
}

// Timeline is the ordered, de-duplicated collection of messages shown to the user.
// Every mutation goes through Merge, AppendLocal or Reset and is serialized by mu.
type Timeline struct {
	mu        sync.Mutex
	entries   []entity.Message
	confirmed map[string]struct{}

	provisionalTTL time.Duration
	now            func() time.Time
	changes        chan struct{}
	logger         *slog.Logger
}

// NewTimeline creates an empty timeline
func NewTimeline(provisionalTTL time.Duration, logger *slog.Logger) *Timeline {
	if provisionalTTL <= 0 {
		provisionalTTL = DefaultProvisionalTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Timeline{
		confirmed:      make(map[string]struct{}),
		provisionalTTL: provisionalTTL,
		now:            time.Now,
		changes:        make(chan struct{}, 1),
		logger:         logger.With("component", "timeline"),
	}
}

// Merge reconciles a batch of backend-confirmed messages into the timeline.
// It is idempotent: merging the same batch twice yields the same timeline as once.
func (t *Timeline) Merge(batch []entity.Message) MergeResult {
	var res MergeResult
	if len(batch) == 0 {
		return res
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, in := range batch {
		if !in.IsValid() {
			t.logger.Warn("skipping invalid confirmed message",
				"id", in.ID,
				"sender", string(in.Sender),
				"has_text", in.Text != "",
			)
			res.Skipped++
			continue
		}
		// Reserved local prefixes are never valid confirmed ids: such an entry
		// would later be matched or expired as if it were a local placeholder.
		if in.IsLocal() {
			t.logger.Warn("skipping confirmed message with reserved local id prefix", "id", in.ID)
			res.Skipped++
			continue
		}

		// Already present: an idempotent re-poll must not consume a newer provisional entry
		if _, ok := t.confirmed[in.ID]; ok {
			res.Skipped++
			continue
		}

		// Only the first matching provisional entry is consumed per incoming message
		if idx := t.findProvisional(in.Text, in.Sender); idx >= 0 {
			t.removeAt(idx)
			res.Reconciled++
		}

		t.entries = append(t.entries, in)
		t.confirmed[in.ID] = struct{}{}
		res.Added = append(res.Added, in)
	}

	if len(res.Added) > 0 || res.Reconciled > 0 {
		t.notify()
	}
	return res
}

// AppendLocal inserts a provisional or system message without reconciliation.
// It reports false when the message was not added: it is invalid, or an
// outstanding provisional entry with the same text and sender already exists.
func (t *Timeline) AppendLocal(msg entity.Message) bool {
	if !msg.IsValid() {
		t.logger.Warn("skipping invalid local message", "id", msg.ID, "sender", string(msg.Sender))
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.IsProvisional() {
		if idx := t.findProvisional(msg.Text, msg.Sender); idx >= 0 {
			existing := t.entries[idx]
			if t.now().Sub(existing.Time()) < t.provisionalTTL {
				return false
			}
			// timed out: superseded by the newer placeholder
			t.removeAt(idx)
		}
	}

	t.entries = append(t.entries, msg)
	t.notify()
	return true
}

// Snapshot returns a copy of the current entries in display order
func (t *Timeline) Snapshot() []entity.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]entity.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Reset empties the timeline (clear chat)
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.confirmed = make(map[string]struct{})
	t.notify()
}

// Changes signals after each mutation. Signals coalesce, so a reader must
// take a fresh Snapshot rather than count notifications.
func (t *Timeline) Changes() <-chan struct{} {
	return t.changes
}

func (t *Timeline) findProvisional(text string, sender entity.Sender) int {
	for i, e := range t.entries {
		if e.IsProvisional() && e.Text == text && e.Sender == sender {
			return i
		}
	}
	return -1
}

func (t *Timeline) removeAt(idx int) {
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
}

// notify must be called with mu held
func (t *Timeline) notify() {
	select {
	case t.changes <- struct{}{}:
	default:
	}
}
