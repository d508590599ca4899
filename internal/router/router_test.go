package router

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/types"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/handler"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/handler/dto"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/infrastructure/memory"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/usecase"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestServer(t *testing.T, delay time.Duration) (*server.Hertz, domain.ChatResponder) {
	t.Helper()
	responder := usecase.NewResponderUsecase(memory.NewMessageRepository(), delay, testLogger)
	t.Cleanup(responder.Close)

	h := server.New()
	Setup(h,
		handler.NewWebhookHandler(responder, testLogger),
		handler.NewHealthHandler("test"),
		metrics.New(),
		testLogger,
	)
	return h, responder
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func body(s string) *ut.Body {
	return &ut.Body{Body: strings.NewReader(s), Len: len(s)}
}

func register(t *testing.T, h *server.Hertz, payload string) types.ChatReply {
	t.Helper()
	w := ut.PerformRequest(h.Engine, http.MethodPost, "/webhook/chat", body(payload), jsonHeader)
	resp := w.Result()
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode(), resp.Body())
	}
	var replies []types.ChatReply
	if err := sonic.Unmarshal(resp.Body(), &replies); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(replies) != 1 || replies[0].UserID == "" {
		t.Fatalf("replies = %+v", replies)
	}
	return replies[0]
}

func getMessages(t *testing.T, h *server.Hertz, userID, afterTs string) dto.MessageListResponse {
	t.Helper()
	url := "/webhook/get-messages?user_id=" + userID
	if afterTs != "" {
		url += "&after_ts=" + afterTs
	}
	w := ut.PerformRequest(h.Engine, http.MethodGet, url, nil)
	resp := w.Result()
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode(), resp.Body())
	}
	var page dto.MessageListResponse
	if err := sonic.Unmarshal(resp.Body(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return page
}

func TestChatAndGetMessages(t *testing.T) {
	h, _ := newTestServer(t, time.Millisecond)

	reply := register(t, h, `[{"name":"Ana","email":"ana@example.com","message":"Olá"}]`)
	if !strings.Contains(reply.Reply, "Ana") {
		t.Errorf("reply = %q", reply.Reply)
	}

	var page dto.MessageListResponse
	deadline := time.Now().Add(2 * time.Second)
	for {
		page = getMessages(t, h, reply.UserID, "")
		if len(page.Messages) == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(page.Messages))
	}
	if page.Messages[0].Direction != "user" || page.Messages[1].Direction != "bot" {
		t.Errorf("directions = %s, %s", page.Messages[0].Direction, page.Messages[1].Direction)
	}
	if page.NextAfterTs != string(page.Messages[1].CreatedAt) {
		t.Errorf("next_after_ts = %q, want last created_at", page.NextAfterTs)
	}

	// nothing after the cursor; the cursor is echoed back
	empty := getMessages(t, h, reply.UserID, page.NextAfterTs)
	if len(empty.Messages) != 0 || empty.NextAfterTs != page.NextAfterTs {
		t.Errorf("page after cursor = %+v", empty)
	}
}

func TestChatAcceptsObjectBody(t *testing.T) {
	h, _ := newTestServer(t, time.Hour)
	register(t, h, `{"name":"Ana","email":"ana@example.com","message":""}`)
}

func TestWebhookBadRequests(t *testing.T) {
	h, _ := newTestServer(t, time.Hour)

	tests := []struct {
		name   string
		method string
		url    string
		body   string
		want   int
	}{
		{"chat without email", http.MethodPost, "/webhook/chat", `[{"name":"Ana","message":"oi"}]`, http.StatusBadRequest},
		{"chat invalid json", http.MethodPost, "/webhook/chat", `[{`, http.StatusBadRequest},
		{"messages without user", http.MethodGet, "/webhook/get-messages", "", http.StatusBadRequest},
		{"messages bad cursor", http.MethodGet, "/webhook/get-messages?user_id=x&after_ts=ontem", "", http.StatusBadRequest},
		{"block without email", http.MethodPost, "/webhook/api/v1/bloqueio", `{}`, http.StatusBadRequest},
		{"unblock unknown contact", http.MethodPost, "/webhook/api/v1/desbloqueio", `{"email":"bob@example.com"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b *ut.Body
			if tt.body != "" {
				b = body(tt.body)
			}
			w := ut.PerformRequest(h.Engine, tt.method, tt.url, b, jsonHeader)
			if got := w.Result().StatusCode(); got != tt.want {
				t.Errorf("status = %d, want %d (body %s)", got, tt.want, w.Result().Body())
			}
		})
	}
}

func TestBlockSuppressesReply(t *testing.T) {
	h, responder := newTestServer(t, 20*time.Millisecond)
	reply := register(t, h, `[{"name":"Ana","email":"ana@example.com","message":""}]`)

	w := ut.PerformRequest(h.Engine, http.MethodPost, "/webhook/api/v1/bloqueio", body(`{"email":"ana@example.com"}`), jsonHeader)
	if w.Result().StatusCode() != http.StatusOK {
		t.Fatalf("block status = %d", w.Result().StatusCode())
	}
	var access dto.AccessResponse
	if err := sonic.Unmarshal(w.Result().Body(), &access); err != nil || !access.Success || access.State != "blocked" {
		t.Fatalf("access = %+v, err = %v", access, err)
	}

	register(t, h, `[{"name":"Ana","email":"ana@example.com","message":"quero agendar"}]`)
	time.Sleep(60 * time.Millisecond)
	responder.Close()

	if page := getMessages(t, h, reply.UserID, ""); len(page.Messages) != 1 {
		t.Errorf("messages = %d, want only the inbound one", len(page.Messages))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestServer(t, time.Hour)

	if w := ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil); w.Result().StatusCode() != http.StatusOK {
		t.Errorf("ping status = %d", w.Result().StatusCode())
	}
	ut.PerformRequest(h.Engine, http.MethodGet, "/health/live", nil)

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/metrics", nil)
	if w.Result().StatusCode() != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Result().StatusCode())
	}
	if !strings.Contains(string(w.Result().Body()), `aikoctl_devserver_requests_total{code="200",method="GET",route="/ping"} 1`) {
		t.Errorf("request counter missing:\n%s", w.Result().Body())
	}
}
