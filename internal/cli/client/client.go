package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/types"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// DefaultTimeout bounds every request when no timeout is configured
const DefaultTimeout = 10 * time.Second

// Operation names used in errors, logs and metrics
const (
	opSubmit    = "submit"
	opFetch     = "fetch_page"
	opAccess    = "set_access_state"
	opRegister  = "register"
	maxErrorLen = 256
)

// greetingText is submitted by the login handshake to obtain a user id
const greetingText = "Olá"

// created_at layouts accepted besides RFC3339
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// APIClient wraps Hertz Client for HTTP communication with the webhook backend.
// It implements domain.ChatTransport and domain.Registrar and keeps no sync state.
type APIClient struct {
	client  *client.Client
	server  string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

var (
	_ domain.ChatTransport = (*APIClient)(nil)
	_ domain.Registrar     = (*APIClient)(nil)
)

// NewAPIClient creates a new API client
func NewAPIClient(server string, timeout time.Duration, logger *slog.Logger) (*APIClient, error) {
	// Normalize server URL
	normalizedServer, err := normalizeServerURL(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	c, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithMaxIdleConnDuration(60*time.Second),
		client.WithDialer(standard.NewDialer()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &APIClient{
		client:  c,
		server:  normalizedServer,
		timeout: timeout,
		logger:  logger.With("component", "transport"),
		now:     time.Now,
	}, nil
}

// Server returns the normalized base URL
func (c *APIClient) Server() string {
	return c.server
}

// normalizeServerURL ensures the URL has a scheme and no trailing slash.
// A path prefix (reverse proxy mount) is kept.
func normalizeServerURL(server string) (string, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return "", fmt.Errorf("empty server URL")
	}
	// Add scheme if missing
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}

	// Parse and validate
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	path := strings.TrimRight(u.Path, "/")
	// Tolerate a base URL that already ends in the webhook prefix
	path = strings.TrimSuffix(path, webhookPrefix)
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path), nil
}

// Submit posts one outgoing message. The reply, if any, is returned but the
// message itself is only delivered to the timeline by a later poll.
func (c *APIClient) Submit(ctx context.Context, user entity.User, text string) (*entity.SubmitAck, error) {
	reqBody := []types.ChatSubmission{{
		Name:    user.Name,
		Email:   user.Email,
		Message: text,
	}}

	body, err := c.postJSON(ctx, opSubmit, endpointChat, reqBody)
	if err != nil {
		return nil, err
	}

	ack := &entity.SubmitAck{}
	if reply, ok := decodeReply(body); ok {
		ack.UserID = reply.UserID
		ack.Reply = reply.Reply
	}
	return ack, nil
}

// Register performs the login handshake: it submits the greeting and reads
// the user id the backend assigns to the email.
func (c *APIClient) Register(ctx context.Context, name, email string) (*entity.User, error) {
	user := entity.User{Name: name, Email: email}

	ack, err := c.Submit(ctx, user, greetingText)
	if err != nil {
		return nil, err
	}
	if ack.UserID == "" {
		return nil, domain.NewMalformedDataError(opRegister, "backend did not return user_id")
	}

	user.ID = ack.UserID
	c.logger.Debug("registered", "user_id", user.ID, "email", email)
	return &user, nil
}

// FetchPage returns messages after cursor. Failures are logged and degrade to
// an empty page that keeps the cursor.
func (c *APIClient) FetchPage(ctx context.Context, userID, cursor string) entity.Page {
	page, err := c.fetchPage(ctx, userID, cursor)
	if err != nil {
		c.logger.Warn("fetch failed, keeping cursor",
			"error", err,
			"kind", domain.Kind(err),
			"cursor", cursor,
		)
		return entity.Page{NextCursor: cursor, Degraded: true}
	}
	return page
}

func (c *APIClient) fetchPage(ctx context.Context, userID, cursor string) (entity.Page, error) {
	query := url.Values{}
	query.Set("user_id", userID)
	if cursor != "" {
		query.Set("after_ts", cursor)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(consts.MethodGet)
	req.SetRequestURI(c.server + endpointGetMessages + "?" + query.Encode())

	if err := c.do(ctx, opFetch, req, resp); err != nil {
		return entity.Page{}, err
	}

	var wire types.MessagePage
	if err := sonic.Unmarshal(resp.Body(), &wire); err != nil {
		return entity.Page{}, domain.NewMalformedDataError(opFetch, err.Error())
	}
	if wire.Messages == nil {
		return entity.Page{}, domain.NewMalformedDataError(opFetch, "response has no messages field")
	}

	items := make([]entity.Message, 0, len(*wire.Messages))
	for i, raw := range *wire.Messages {
		msg, err := c.toMessage(raw)
		if err != nil {
			c.logger.Warn("skipping malformed message", "index", i, "error", err)
			continue
		}
		items = append(items, msg)
	}

	next := string(wire.NextAfterTs)
	if next == "" {
		next = cursor
	}
	return entity.Page{Items: items, NextCursor: next}, nil
}

// SetAccessState blocks or unblocks the automated responder for email
func (c *APIClient) SetAccessState(ctx context.Context, email string, state entity.AccessState) error {
	endpoint := endpointUnblock
	if state == entity.AccessBlocked {
		endpoint = endpointBlock
	}

	if _, err := c.postJSON(ctx, opAccess, endpoint, types.AccessRequest{Email: email}); err != nil {
		return err
	}
	c.logger.Debug("access state changed", "email", email, "state", state.String())
	return nil
}

// postJSON sends body as JSON and returns a copy of the response body
func (c *APIClient) postJSON(ctx context.Context, op, endpoint string, body any) ([]byte, error) {
	bodyBytes, err := sonic.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(c.server + endpoint)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBody(bodyBytes)

	if err := c.do(ctx, op, req, resp); err != nil {
		return nil, err
	}

	// resp is released on return
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

// do executes req with the configured timeout and classifies failures
func (c *APIClient) do(ctx context.Context, op string, req *protocol.Request, resp *protocol.Response) error {
	if err := ctx.Err(); err != nil {
		return domain.NewNetworkError(op, err)
	}

	start := c.now()
	if err := c.client.DoTimeout(ctx, req, resp, c.timeout); err != nil {
		return domain.NewNetworkError(op, err)
	}

	status := resp.StatusCode()
	c.logger.Debug("request done",
		"op", op,
		"method", string(req.Method()),
		"status", status,
		"latency", c.now().Sub(start),
	)

	if status < 200 || status >= 300 {
		return domain.NewServerError(op, status, truncate(string(resp.Body()), maxErrorLen))
	}
	return nil
}

// toMessage converts one raw item. Items without id or content are rejected.
func (c *APIClient) toMessage(raw []byte) (entity.Message, error) {
	var w types.WireMessage
	if err := sonic.Unmarshal(raw, &w); err != nil {
		return entity.Message{}, err
	}
	if w.ID == "" {
		return entity.Message{}, errors.New("missing id")
	}
	if w.Content == "" {
		return entity.Message{}, errors.New("missing content")
	}

	sender := entity.SenderBot
	if strings.EqualFold(w.Direction, "user") {
		sender = entity.SenderUser
	}

	return entity.Message{
		ID:        string(w.ID),
		Text:      w.Content,
		Sender:    sender,
		Timestamp: c.parseTimestamp(string(w.CreatedAt)),
	}, nil
}

// parseTimestamp returns epoch millis. Unparseable or missing values fall back to now.
func (c *APIClient) parseTimestamp(value string) int64 {
	value = strings.TrimSpace(value)
	if value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			// epoch seconds vs millis
			if n < 1e12 {
				return n * 1000
			}
			return n
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UnixMilli()
			}
		}
	}
	return c.now().UnixMilli()
}

// decodeReply reads the chat webhook response, which is either an array of
// replies or a single object. It returns the first reply.
func decodeReply(body []byte) (types.ChatReply, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return types.ChatReply{}, false
	}

	if strings.HasPrefix(trimmed, "[") {
		var replies []types.ChatReply
		if err := sonic.UnmarshalString(trimmed, &replies); err != nil || len(replies) == 0 {
			return types.ChatReply{}, false
		}
		return replies[0], true
	}

	var reply types.ChatReply
	if err := sonic.UnmarshalString(trimmed, &reply); err != nil {
		return types.ChatReply{}, false
	}
	return reply, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
