package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestClient(t *testing.T, h http.HandlerFunc) (*APIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewAPIClient(srv.URL, 2*time.Second, testLogger)
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}
	return c, srv
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost:5678", "http://localhost:5678", false},
		{"http://localhost:5678/", "http://localhost:5678", false},
		{"https://n8n.example.com/webhook", "https://n8n.example.com", false},
		{"https://example.com/n8n/", "https://example.com/n8n", false},
		{"https://example.com/n8n/webhook/", "https://example.com/n8n", false},
		{"", "", true},
		{"ftp://example.com", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		got, err := normalizeServerURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("normalizeServerURL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeServerURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubmit(t *testing.T) {
	user := entity.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}

	t.Run("posts a one-element array", func(t *testing.T) {
		var got []map[string]string
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/webhook/chat" {
				t.Errorf("request = %s %s", r.Method, r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("content type = %q", ct)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode body: %v", err)
			}
			w.Write([]byte(`[{"reply":"oi!","user_id":"u1"}]`))
		})

		ack, err := c.Submit(context.Background(), user, "hello")
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if len(got) != 1 || got[0]["name"] != "Ana" || got[0]["email"] != "ana@example.com" || got[0]["message"] != "hello" {
			t.Errorf("body = %v", got)
		}
		if ack.Reply != "oi!" || ack.UserID != "u1" {
			t.Errorf("ack = %+v", ack)
		}
	})

	t.Run("empty body is still success", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		if _, err := c.Submit(context.Background(), user, "hello"); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	})

	t.Run("non-2xx is a server error", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "workflow crashed", http.StatusInternalServerError)
		})
		_, err := c.Submit(context.Background(), user, "hello")
		if !domain.IsServer(err) {
			t.Fatalf("err = %v, want server error", err)
		}
	})

	t.Run("unreachable host is a network error", func(t *testing.T) {
		c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		srv.Close()
		_, err := c.Submit(context.Background(), user, "hello")
		if !domain.IsNetwork(err) {
			t.Fatalf("err = %v, want network error", err)
		}
	})

	t.Run("timeout is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		c, err := NewAPIClient(srv.URL, 50*time.Millisecond, testLogger)
		if err != nil {
			t.Fatalf("NewAPIClient: %v", err)
		}
		if _, err := c.Submit(context.Background(), user, "hello"); !domain.IsNetwork(err) {
			t.Fatalf("err = %v, want network error", err)
		}
	})
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantID   string
		wantErr  func(error) bool
	}{
		{"array response", `[{"reply":"Olá!","user_id":"abc"}]`, "abc", nil},
		{"object response", `{"reply":"Olá!","user_id":"xyz"}`, "xyz", nil},
		{"missing user id", `[{"reply":"Olá!"}]`, "", domain.IsMalformedData},
		{"empty array", `[]`, "", domain.IsMalformedData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var body []map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				if len(body) != 1 || body[0]["message"] != "Olá" {
					t.Errorf("handshake body = %v", body)
				}
				w.Write([]byte(tt.response))
			})

			user, err := c.Register(context.Background(), "Ana", "ana@example.com")
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("err = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			if user.ID != tt.wantID || user.Name != "Ana" || user.Email != "ana@example.com" {
				t.Errorf("user = %+v", user)
			}
		})
	}
}

func TestFetchPage(t *testing.T) {
	t.Run("query parameters", func(t *testing.T) {
		var queries []map[string][]string
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/webhook/get-messages" {
				t.Errorf("path = %s", r.URL.Path)
			}
			queries = append(queries, r.URL.Query())
			w.Write([]byte(`{"messages":[],"next_after_ts":"t1"}`))
		})

		c.FetchPage(context.Background(), "u1", "")
		c.FetchPage(context.Background(), "u1", "2025-01-01T10:00:00Z")

		if len(queries) != 2 {
			t.Fatalf("requests = %d", len(queries))
		}
		if _, ok := queries[0]["after_ts"]; ok {
			t.Error("after_ts sent with empty cursor")
		}
		if queries[0]["user_id"][0] != "u1" {
			t.Errorf("user_id = %v", queries[0]["user_id"])
		}
		if queries[1]["after_ts"][0] != "2025-01-01T10:00:00Z" {
			t.Errorf("after_ts = %v", queries[1]["after_ts"])
		}
	})

	t.Run("maps records and skips malformed ones", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"messages": [
					{"id":"m1","content":"hi","direction":"user","created_at":"2025-01-01T10:00:00Z"},
					{"id":2,"content":"hello","direction":"bot","created_at":"2025-01-01 10:00:01"},
					{"id":"m3","content":"","direction":"bot"},
					{"content":"no id"},
					"garbage",
					{"id":"m6","content":"later","direction":"outbound","created_at":1735725602000}
				],
				"next_after_ts": "2025-01-01T10:00:02Z"
			}`))
		})

		page := c.FetchPage(context.Background(), "u1", "")
		if page.Degraded {
			t.Fatal("page degraded")
		}
		if page.NextCursor != "2025-01-01T10:00:02Z" {
			t.Errorf("next cursor = %q", page.NextCursor)
		}
		if len(page.Items) != 3 {
			t.Fatalf("items = %+v, want 3", page.Items)
		}

		want := []entity.Message{
			{ID: "m1", Text: "hi", Sender: entity.SenderUser, Timestamp: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli()},
			{ID: "2", Text: "hello", Sender: entity.SenderBot, Timestamp: time.Date(2025, 1, 1, 10, 0, 1, 0, time.UTC).UnixMilli()},
			{ID: "m6", Text: "later", Sender: entity.SenderBot, Timestamp: 1735725602000},
		}
		for i, w := range want {
			if page.Items[i] != w {
				t.Errorf("item %d = %+v, want %+v", i, page.Items[i], w)
			}
		}
	})

	t.Run("missing created_at falls back to now", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"messages":[{"id":"m1","content":"hi","direction":"user"}],"next_after_ts":"t1"}`))
		})
		fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return fixed }

		page := c.FetchPage(context.Background(), "u1", "")
		if len(page.Items) != 1 || page.Items[0].Timestamp != fixed.UnixMilli() {
			t.Errorf("items = %+v", page.Items)
		}
	})

	t.Run("empty next cursor keeps the current one", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"messages":[]}`))
		})
		page := c.FetchPage(context.Background(), "u1", "c7")
		if page.Degraded || page.NextCursor != "c7" {
			t.Errorf("page = %+v", page)
		}
	})

	degraded := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"body is not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>oops</html>`))
		}},
		{"messages field missing", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"next_after_ts":"t9"}`))
		}},
	}
	for _, tt := range degraded {
		t.Run("degrades on "+tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)
			page := c.FetchPage(context.Background(), "u1", "c1")
			if !page.Degraded || len(page.Items) != 0 || page.NextCursor != "c1" {
				t.Errorf("page = %+v, want empty degraded page at c1", page)
			}
		})
	}

	t.Run("degrades when unreachable", func(t *testing.T) {
		c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		srv.Close()
		page := c.FetchPage(context.Background(), "u1", "c1")
		if !page.Degraded || page.NextCursor != "c1" {
			t.Errorf("page = %+v", page)
		}
	})
}

func TestSetAccessState(t *testing.T) {
	tests := []struct {
		name     string
		state    entity.AccessState
		wantPath string
	}{
		{"block", entity.AccessBlocked, "/webhook/api/v1/bloqueio"},
		{"unblock", entity.AccessUnblocked, "/webhook/api/v1/desbloqueio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != tt.wantPath {
					t.Errorf("request = %s %s, want POST %s", r.Method, r.URL.Path, tt.wantPath)
				}
				json.NewDecoder(r.Body).Decode(&body)
				w.WriteHeader(http.StatusNoContent)
			})

			if err := c.SetAccessState(context.Background(), "ana@example.com", tt.state); err != nil {
				t.Fatalf("SetAccessState: %v", err)
			}
			if body["email"] != "ana@example.com" {
				t.Errorf("body = %v", body)
			}
		})
	}

	t.Run("failure is a server error", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		err := c.SetAccessState(context.Background(), "ana@example.com", entity.AccessBlocked)
		if !domain.IsServer(err) {
			t.Fatalf("err = %v, want server error", err)
		}
	})
}
