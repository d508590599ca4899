package chatsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
)

// DefaultReplyWindow bounds how long the typing indicator stays on after a send
const DefaultReplyWindow = 60 * time.Second

// Texts shown on the send path
const (
	blockRequestedNotice = "🔒 Solicitação de bloqueio enviada."
	sendFailedNotice     = "Erro ao enviar mensagem. Tente novamente."
	sendFailedBanner     = "Falha na comunicação com o servidor."
	commandFailedBanner  = "Falha ao executar comando."
)

// Options tunes a Session
type Options struct {
	PollInterval   time.Duration
	ReplyWindow    time.Duration
	ProvisionalTTL time.Duration
	// OptimisticEcho shows sent text immediately as a provisional user entry
	OptimisticEcho bool
}

// Session owns the timeline, the cursor, the poll loop and the dispatcher for
// one logged-in user. The presentation layer talks only to the Session.
type Session struct {
	user       entity.User
	transport  domain.ChatTransport
	timeline   *Timeline
	cursor     *Cursor
	poller     *Poller
	dispatcher *Dispatcher
	opts       Options
	metrics    *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	banner     string
	busy       int
	lastSentAt time.Time
}

// NewSession wires a session for user. The user id and email are required
// inputs to every transport call.
func NewSession(user entity.User, transport domain.ChatTransport, opts Options, collector *metrics.Collector, logger *slog.Logger) (*Session, error) {
	if user.ID == "" || user.Email == "" {
		return nil, errors.New("session requires a user with id and email")
	}
	if transport == nil {
		return nil, errors.New("session requires a transport")
	}
	if opts.ReplyWindow <= 0 {
		opts.ReplyWindow = DefaultReplyWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("user_id", user.ID)

	s := &Session{
		user:      user,
		transport: transport,
		timeline:  NewTimeline(opts.ProvisionalTTL, logger),
		cursor:    &Cursor{},
		opts:      opts,
		metrics:   collector,
		logger:    logger.With("component", "session"),
		now:       time.Now,
	}
	s.dispatcher = NewDispatcher(transport, s.timeline, user, collector, logger)
	s.poller = NewPoller(PollerConfig{
		Transport: transport,
		Timeline:  s.timeline,
		Cursor:    s.cursor,
		UserID:    user.ID,
		Interval:  opts.PollInterval,
		OnMerge:   s.observeMerge,
		Metrics:   collector,
		Logger:    logger,
	})
	return s, nil
}

// Start begins the history load and the recurring poll
func (s *Session) Start(ctx context.Context) error {
	return s.poller.Start(ctx)
}

// Close stops polling (logout or view teardown). Safe to call more than once.
func (s *Session) Close() {
	s.poller.Stop()
}

// Done is closed once the poll loop has exited
func (s *Session) Done() <-chan struct{} {
	return s.poller.Done()
}

// Ready is closed once the history load has been attempted
func (s *Session) Ready() <-chan struct{} {
	return s.poller.Ready()
}

// Send submits text. Blank text is ignored. Failures are converted into a
// system entry plus the error banner, and also returned to the caller.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.begin()
	defer s.end()

	now := s.now()
	// Local feedback for the typed block command; the text still goes to the chat webhook
	if ParseCommand(text) == CommandBlock {
		s.timeline.AppendLocal(entity.NewProvisional(blockRequestedNotice, entity.SenderBot, now))
	}
	if s.opts.OptimisticEcho {
		s.timeline.AppendLocal(entity.NewProvisional(text, entity.SenderUser, now))
	}

	// set before submitting: the reply may be merged by a poll before Submit returns
	s.mu.Lock()
	s.lastSentAt = now
	s.mu.Unlock()

	_, err := s.transport.Submit(ctx, s.user, text)
	s.metrics.ObserveSend(domain.Kind(err))
	if err != nil {
		s.mu.Lock()
		if s.lastSentAt.Equal(now) {
			s.lastSentAt = time.Time{}
		}
		s.mu.Unlock()
		s.logger.Error("send failed", "error", err, "kind", domain.Kind(err))
		s.timeline.AppendLocal(entity.NewSystemNotice(sendFailedNotice, s.now()))
		s.setBanner(sendFailedBanner)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Debug("message sent, waiting for poll to deliver it")
	return nil
}

// Command dispatches a privileged command (see ParseCommand)
func (s *Session) Command(ctx context.Context, raw string) (Command, error) {
	s.begin()
	defer s.end()

	cmd, err := s.dispatcher.Dispatch(ctx, raw)
	if err != nil {
		s.setBanner(commandFailedBanner)
	}
	return cmd, err
}

// Typing reports whether the remote is presumably producing a reply: a send
// is in flight or succeeded, no bot message has arrived since, and the reply
// window is open.
func (s *Session) Typing(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSentAt.IsZero() {
		return false
	}
	return now.Sub(s.lastSentAt) < s.opts.ReplyWindow
}

// Busy reports whether a send or command is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy > 0
}

// Banner returns the transient error banner ("" when none)
func (s *Session) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// ClearBanner dismisses the error banner
func (s *Session) ClearBanner() {
	s.setBanner("")
}

// ClearChat empties the timeline. The cursor is kept so history is not re-fetched.
func (s *Session) ClearChat() {
	s.timeline.Reset()
	s.ClearBanner()
}

// PollNow asks the poll loop for an immediate fetch
func (s *Session) PollNow() {
	s.poller.PollNow()
}

// Timeline returns the session's timeline
func (s *Session) Timeline() *Timeline {
	return s.timeline
}

// Cursor returns the session's cursor store
func (s *Session) Cursor() *Cursor {
	return s.cursor
}

// User returns the logged-in user
func (s *Session) User() entity.User {
	return s.user
}

// PollState returns the poll loop state
func (s *Session) PollState() PollState {
	return s.poller.State()
}

// LastSync returns when the poll loop last fetched successfully
func (s *Session) LastSync() time.Time {
	return s.poller.LastSync()
}

func (s *Session) begin() {
	s.mu.Lock()
	s.busy++
	s.banner = ""
	s.mu.Unlock()
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
}

func (s *Session) setBanner(text string) {
	s.mu.Lock()
	s.banner = text
	s.mu.Unlock()
}

// observeMerge clears the typing flag once a bot reply arrives
func (s *Session) observeMerge(res MergeResult) {
	for _, m := range res.Added {
		if m.Sender == entity.SenderBot {
			s.mu.Lock()
			s.lastSentAt = time.Time{}
			s.mu.Unlock()
			return
		}
	}
}
