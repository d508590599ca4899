package chatsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
)

// Command is the closed set of privileged actions the dispatcher understands
type Command int

const (
	CommandUnknown Command = iota
	CommandBlock
	CommandUnblock
)

// System notice texts shown to the user
const (
	blockedNotice       = "🔒 Você bloqueou a Aiko. (Ação via Painel)"
	unblockedNotice     = "🔓 Você desbloqueou a Aiko."
	commandFailedFormat = "Erro ao executar comando: %s. Tente novamente."
)

// ParseCommand resolves raw user input once, at the boundary. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseCommand(raw string) Command {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bloquear":
		return CommandBlock
	case "desbloquear":
		return CommandUnblock
	default:
		return CommandUnknown
	}
}

// String returns the normalized command word
func (c Command) String() string {
	switch c {
	case CommandBlock:
		return "bloquear"
	case CommandUnblock:
		return "desbloquear"
	}
	return "unknown"
}

// AccessState maps the command to the desired access state
func (c Command) AccessState() (entity.AccessState, bool) {
	switch c {
	case CommandBlock:
		return entity.AccessBlocked, true
	case CommandUnblock:
		return entity.AccessUnblocked, true
	}
	return entity.AccessUnblocked, false
}

func (c Command) successNotice() string {
	if c == CommandBlock {
		return blockedNotice
	}
	return unblockedNotice
}

// Dispatcher routes privileged commands to the access-state endpoint and
// reports the outcome as a system entry. It never touches the cursor or
// provisional entries; its timeline writes go through AppendLocal only.
type Dispatcher struct {
	transport domain.ChatTransport
	timeline  *Timeline
	user      entity.User
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher acting on behalf of user
func NewDispatcher(transport domain.ChatTransport, timeline *Timeline, user entity.User, collector *metrics.Collector, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		transport: transport,
		timeline:  timeline,
		user:      user,
		metrics:   collector,
		logger:    logger.With("component", "dispatcher"),
		now:       time.Now,
	}
}

// Dispatch executes raw as a command. Unrecognized input is ignored and
// returns CommandUnknown with a nil error.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) (Command, error) {
	cmd := ParseCommand(raw)
	state, ok := cmd.AccessState()
	if !ok {
		d.logger.Debug("ignoring unrecognized command", "input", raw)
		return CommandUnknown, nil
	}

	err := d.transport.SetAccessState(ctx, d.user.Email, state)
	d.metrics.ObserveCommand(cmd.String(), domain.Kind(err))
	if err != nil {
		d.logger.Error("access command failed",
			"command", cmd.String(),
			"error", err,
		)
		d.timeline.AppendLocal(entity.NewSystemNotice(fmt.Sprintf(commandFailedFormat, cmd), d.now()))
		return cmd, fmt.Errorf("%s command failed: %w", cmd, err)
	}

	d.logger.Debug("access state changed", "command", cmd.String(), "state", state.String())
	d.timeline.AppendLocal(entity.NewSystemNotice(cmd.successNotice(), d.now()))
	return cmd, nil
}
