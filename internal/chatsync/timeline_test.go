package chatsync

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func confirmed(id, text string, sender entity.Sender) entity.Message {
	return entity.Message{ID: id, Text: text, Sender: sender, Timestamp: time.Now().UnixMilli()}
}

func ids(msgs []entity.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func assertNoDuplicateConfirmed(t *testing.T, msgs []entity.Message) {
	t.Helper()
	seen := make(map[string]bool)
	for _, m := range msgs {
		if m.IsLocal() {
			continue
		}
		if seen[m.ID] {
			t.Fatalf("confirmed id %q appears twice in %v", m.ID, ids(msgs))
		}
		seen[m.ID] = true
	}
}

func TestTimelineMerge(t *testing.T) {
	tests := []struct {
		name           string
		local          []entity.Message
		batches        [][]entity.Message
		wantTexts      []string
		wantReconciled int
	}{
		{
			name: "appends in order received",
			batches: [][]entity.Message{{
				confirmed("m1", "hi", entity.SenderUser),
				confirmed("m2", "hello", entity.SenderBot),
			}},
			wantTexts: []string{"hi", "hello"},
		},
		{
			name: "re-poll of the same batch is idempotent",
			batches: [][]entity.Message{
				{confirmed("m1", "hi", entity.SenderUser)},
				{confirmed("m1", "hi", entity.SenderUser)},
			},
			wantTexts: []string{"hi"},
		},
		{
			name: "duplicate ids inside one batch collapse",
			batches: [][]entity.Message{{
				confirmed("m1", "hi", entity.SenderUser),
				confirmed("m1", "hi", entity.SenderUser),
			}},
			wantTexts: []string{"hi"},
		},
		{
			name:  "confirmed message supersedes matching provisional",
			local: []entity.Message{entity.NewProvisional("hi", entity.SenderUser, time.Now())},
			batches: [][]entity.Message{
				{confirmed("m1", "hi", entity.SenderUser)},
			},
			wantTexts:      []string{"hi"},
			wantReconciled: 1,
		},
		{
			name:  "sender must match for reconciliation",
			local: []entity.Message{entity.NewProvisional("hi", entity.SenderBot, time.Now())},
			batches: [][]entity.Message{
				{confirmed("m1", "hi", entity.SenderUser)},
			},
			wantTexts: []string{"hi", "hi"},
		},
		{
			name: "one incoming message consumes only one provisional",
			local: []entity.Message{
				entity.NewProvisional("a", entity.SenderUser, time.Now()),
				entity.NewProvisional("b", entity.SenderUser, time.Now()),
			},
			batches: [][]entity.Message{
				{confirmed("m1", "a", entity.SenderUser)},
			},
			wantTexts:      []string{"b", "a"},
			wantReconciled: 1,
		},
		{
			name:  "second identical confirmed message finds nothing left to consume",
			local: []entity.Message{entity.NewProvisional("a", entity.SenderUser, time.Now())},
			batches: [][]entity.Message{{
				confirmed("m1", "a", entity.SenderUser),
				confirmed("m2", "a", entity.SenderUser),
			}},
			wantTexts:      []string{"a", "a"},
			wantReconciled: 1,
		},
		{
			name: "unmatched confirmed message is still appended",
			local: []entity.Message{
				entity.NewSystemNotice("notice", time.Now()),
			},
			batches: [][]entity.Message{
				{confirmed("m1", "hello", entity.SenderBot)},
			},
			wantTexts: []string{"notice", "hello"},
		},
		{
			name: "messages missing id, text or sender are skipped",
			batches: [][]entity.Message{{
				{ID: "", Text: "no id", Sender: entity.SenderUser},
				{ID: "m2", Text: "", Sender: entity.SenderUser},
				{ID: "m3", Text: "no sender"},
				confirmed("m4", "ok", entity.SenderBot),
			}},
			wantTexts: []string{"ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewTimeline(time.Minute, testLogger)
			for _, m := range tt.local {
				if !tl.AppendLocal(m) {
					t.Fatalf("AppendLocal(%q) rejected", m.Text)
				}
			}

			reconciled := 0
			for _, b := range tt.batches {
				reconciled += tl.Merge(b).Reconciled
			}

			got := tl.Snapshot()
			assertNoDuplicateConfirmed(t, got)
			if len(got) != len(tt.wantTexts) {
				t.Fatalf("timeline = %v, want texts %v", ids(got), tt.wantTexts)
			}
			for i, want := range tt.wantTexts {
				if got[i].Text != want {
					t.Errorf("entry %d text = %q, want %q", i, got[i].Text, want)
				}
			}
			if reconciled != tt.wantReconciled {
				t.Errorf("reconciled = %d, want %d", reconciled, tt.wantReconciled)
			}
		})
	}
}

func TestTimelineRepollDoesNotConsumeNewerProvisional(t *testing.T) {
	tl := NewTimeline(time.Minute, testLogger)
	batch := []entity.Message{confirmed("m1", "hi", entity.SenderUser)}
	tl.Merge(batch)

	// user sends "hi" again; the old record is re-polled before the new one arrives
	tl.AppendLocal(entity.NewProvisional("hi", entity.SenderUser, time.Now()))
	res := tl.Merge(batch)

	if res.Reconciled != 0 {
		t.Fatalf("re-polled message consumed a provisional entry")
	}
	got := tl.Snapshot()
	if len(got) != 2 || !got[1].IsProvisional() {
		t.Fatalf("timeline = %v, want confirmed + provisional", ids(got))
	}
}

func TestTimelineMergeRejectsReservedIDPrefixes(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "provisional prefix", id: entity.ProvisionalPrefix + "x"},
		{name: "system prefix", id: entity.SystemPrefix + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewTimeline(time.Minute, testLogger)
			pending := entity.NewProvisional("hi", entity.SenderUser, time.Now())
			tl.AppendLocal(pending)

			res := tl.Merge([]entity.Message{confirmed(tt.id, "hi", entity.SenderUser)})

			if res.Skipped != 1 || res.Reconciled != 0 || len(res.Added) != 0 {
				t.Fatalf("result = %+v, want one skipped and nothing reconciled", res)
			}
			got := tl.Snapshot()
			if len(got) != 1 || got[0].ID != pending.ID {
				t.Errorf("timeline = %v, want only %s", ids(got), pending.ID)
			}
		})
	}
}

func TestTimelineAppendLocal(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("outstanding provisional duplicate is rejected", func(t *testing.T) {
		tl := NewTimeline(time.Minute, testLogger)
		tl.now = func() time.Time { return base.Add(10 * time.Second) }

		if !tl.AppendLocal(entity.NewProvisional("hi", entity.SenderUser, base)) {
			t.Fatal("first provisional rejected")
		}
		if tl.AppendLocal(entity.NewProvisional("hi", entity.SenderUser, base.Add(5*time.Second))) {
			t.Error("duplicate outstanding provisional accepted")
		}
		if tl.Len() != 1 {
			t.Errorf("len = %d, want 1", tl.Len())
		}
	})

	t.Run("timed-out provisional is superseded", func(t *testing.T) {
		tl := NewTimeline(time.Minute, testLogger)
		tl.now = func() time.Time { return base.Add(2 * time.Minute) }

		old := entity.NewProvisional("hi", entity.SenderUser, base)
		tl.AppendLocal(old)
		fresh := entity.NewProvisional("hi", entity.SenderUser, base.Add(2*time.Minute))
		if !tl.AppendLocal(fresh) {
			t.Fatal("fresh provisional rejected")
		}

		got := tl.Snapshot()
		if len(got) != 1 || got[0].ID != fresh.ID {
			t.Errorf("timeline = %v, want only %s", ids(got), fresh.ID)
		}
	})

	t.Run("system notices are never collision-checked", func(t *testing.T) {
		tl := NewTimeline(time.Minute, testLogger)
		tl.AppendLocal(entity.NewSystemNotice("same", base))
		tl.AppendLocal(entity.NewSystemNotice("same", base))
		if tl.Len() != 2 {
			t.Errorf("len = %d, want 2", tl.Len())
		}
	})

	t.Run("invalid local message is rejected", func(t *testing.T) {
		tl := NewTimeline(time.Minute, testLogger)
		if tl.AppendLocal(entity.Message{ID: "sys-1", Sender: entity.SenderSystem}) {
			t.Error("message without text accepted")
		}
	})
}

func TestTimelineChangesAndReset(t *testing.T) {
	tl := NewTimeline(time.Minute, testLogger)
	tl.Merge([]entity.Message{confirmed("m1", "hi", entity.SenderUser)})

	select {
	case <-tl.Changes():
	default:
		t.Fatal("expected change notification after merge")
	}

	// no-op merge does not notify
	tl.Merge([]entity.Message{confirmed("m1", "hi", entity.SenderUser)})
	select {
	case <-tl.Changes():
		t.Fatal("unexpected notification for idempotent merge")
	default:
	}

	tl.Reset()
	if tl.Len() != 0 {
		t.Fatalf("len after reset = %d", tl.Len())
	}
	// after reset the same id may be shown again
	tl.Merge([]entity.Message{confirmed("m1", "hi", entity.SenderUser)})
	if tl.Len() != 1 {
		t.Errorf("len = %d, want 1", tl.Len())
	}
}

func TestTimelineConcurrentMutations(t *testing.T) {
	tl := NewTimeline(time.Minute, testLogger)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("m%d", i)
				tl.Merge([]entity.Message{confirmed(id, id, entity.SenderBot)})
				tl.AppendLocal(entity.NewProvisional(id, entity.SenderBot, time.Now()))
			}
		}(w)
	}
	wg.Wait()

	assertNoDuplicateConfirmed(t, tl.Snapshot())

	// at most one provisional per (text, sender)
	seen := make(map[string]bool)
	for _, m := range tl.Snapshot() {
		if !m.IsProvisional() {
			continue
		}
		key := string(m.Sender) + "|" + m.Text
		if seen[key] {
			t.Fatalf("two provisional entries for %s", key)
		}
		seen[key] = true
	}
}
