package handler

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/types"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/handler/dto"
)

// WebhookHandler serves the chat webhooks the CLI talks to
type WebhookHandler struct {
	responder domain.ChatResponder
	logger    *slog.Logger
}

// NewWebhookHandler creates the webhook handler
func NewWebhookHandler(responder domain.ChatResponder, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		responder: responder,
		logger:    logger,
	}
}

// Chat handles POST /webhook/chat. The body is an array with one submission;
// a bare object is accepted too.
func (h *WebhookHandler) Chat(ctx context.Context, c *app.RequestContext) {
	sub, err := decodeSubmission(c.Request.Body())
	if err != nil {
		h.logger.Warn("failed to decode chat submission", "error", err)
		BadRequestResponse(c, "invalid request body")
		return
	}
	if sub.Email == "" {
		BadRequestResponse(c, "email is required")
		return
	}

	ack, err := h.responder.HandleMessage(ctx, sub.Name, sub.Email, sub.Message)
	if err != nil {
		h.logger.Error("failed to handle message", "email", sub.Email, "error", err)
		ErrorResponse(c, err)
		return
	}

	c.JSON(consts.StatusOK, []types.ChatReply{{Reply: ack.Reply, UserID: ack.UserID}})
}

// GetMessages handles GET /webhook/get-messages?user_id=&after_ts=
func (h *WebhookHandler) GetMessages(ctx context.Context, c *app.RequestContext) {
	userID := c.Query("user_id")
	afterTs := c.Query("after_ts")

	records, next, err := h.responder.Messages(ctx, userID, afterTs)
	if err != nil {
		ErrorResponse(c, err)
		return
	}

	resp := dto.MessageListResponse{
		Messages:    make([]types.WireMessage, 0, len(records)),
		NextAfterTs: next,
	}
	for _, r := range records {
		resp.Messages = append(resp.Messages, types.WireMessage{
			ID:        types.Scalar(r.ID),
			Content:   r.Content,
			Direction: r.Direction,
			CreatedAt: types.Scalar(r.CreatedAt.Format(entity.CursorLayout)),
		})
	}
	c.JSON(consts.StatusOK, resp)
}

// Block handles POST /webhook/api/v1/bloqueio
func (h *WebhookHandler) Block(ctx context.Context, c *app.RequestContext) {
	h.setAccess(ctx, c, entity.AccessBlocked)
}

// Unblock handles POST /webhook/api/v1/desbloqueio
func (h *WebhookHandler) Unblock(ctx context.Context, c *app.RequestContext) {
	h.setAccess(ctx, c, entity.AccessUnblocked)
}

func (h *WebhookHandler) setAccess(ctx context.Context, c *app.RequestContext, state entity.AccessState) {
	var req types.AccessRequest
	if err := sonic.Unmarshal(c.Request.Body(), &req); err != nil || req.Email == "" {
		BadRequestResponse(c, "email is required")
		return
	}

	if err := h.responder.SetAccess(ctx, req.Email, state); err != nil {
		ErrorResponse(c, err)
		return
	}

	c.JSON(consts.StatusOK, dto.AccessResponse{
		Success: true,
		Email:   req.Email,
		State:   state.String(),
	})
}

func decodeSubmission(body []byte) (types.ChatSubmission, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var subs []types.ChatSubmission
		if err := sonic.Unmarshal(body, &subs); err != nil {
			return types.ChatSubmission{}, err
		}
		if len(subs) == 0 {
			return types.ChatSubmission{}, nil
		}
		return subs[0], nil
	}

	var sub types.ChatSubmission
	err := sonic.Unmarshal(body, &sub)
	return sub, err
}
