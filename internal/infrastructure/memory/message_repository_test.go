package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

func TestUpsertContact(t *testing.T) {
	ctx := context.Background()
	r := newMessageRepository(time.Now)

	first, err := r.UpsertContact(ctx, "Ana", "Ana@Example.com ")
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	second, err := r.UpsertContact(ctx, "", "ana@example.com")
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}
	if second.Name != "Ana" {
		t.Errorf("name = %q, want kept", second.Name)
	}

	if _, err := r.UpsertContact(ctx, "x", "  "); !domain.IsInvalidInput(err) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestAppendAndListAfter(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newMessageRepository(func() time.Time { return fixed })

	c, _ := r.UpsertContact(ctx, "Ana", "ana@example.com")
	a, err := r.Append(ctx, c.ID, "oi", entity.DirectionUser)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	b, _ := r.Append(ctx, c.ID, "olá!", entity.DirectionBot)
	if !b.CreatedAt.After(a.CreatedAt) {
		t.Fatalf("created_at not increasing: %v then %v", a.CreatedAt, b.CreatedAt)
	}

	tests := []struct {
		name     string
		afterTs  string
		wantIDs  []string
		wantNext string
	}{
		{"from start", "", []string{a.ID, b.ID}, b.CreatedAt.Format(entity.CursorLayout)},
		{"after first", a.CreatedAt.Format(entity.CursorLayout), []string{b.ID}, b.CreatedAt.Format(entity.CursorLayout)},
		{"nothing newer", b.CreatedAt.Format(entity.CursorLayout), nil, b.CreatedAt.Format(entity.CursorLayout)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, next, err := r.ListAfter(ctx, c.ID, tt.afterTs)
			if err != nil {
				t.Fatalf("ListAfter: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
			if next != tt.wantNext {
				t.Errorf("next = %q, want %q", next, tt.wantNext)
			}
		})
	}

	if _, _, err := r.ListAfter(ctx, c.ID, "yesterday"); !domain.IsInvalidInput(err) {
		t.Errorf("err = %v, want invalid input", err)
	}
	if _, err := r.Append(ctx, "missing", "x", entity.DirectionUser); !domain.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestSetBlocked(t *testing.T) {
	ctx := context.Background()
	r := newMessageRepository(time.Now)
	c, _ := r.UpsertContact(ctx, "Ana", "ana@example.com")

	if err := r.SetBlocked(ctx, "ANA@example.com", true); err != nil {
		t.Fatalf("SetBlocked: %v", err)
	}
	if blocked, _ := r.IsBlocked(ctx, c.ID); !blocked {
		t.Error("contact not blocked")
	}
	if err := r.SetBlocked(ctx, "bob@example.com", true); !domain.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}
