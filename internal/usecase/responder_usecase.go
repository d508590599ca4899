package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// responderUsecase is the ChatResponder of the development backend.
// Inbound messages are stored at once; the automated reply is stored after
// replyDelay unless the contact is blocked at that moment.
type responderUsecase struct {
	repo       domain.MessageRepository
	replyDelay time.Duration
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResponderUsecase creates the responder.
//
// Parameters:
//   - repo: contact and message storage
//   - replyDelay: time between an inbound message and the stored reply
//   - logger: structured logger
func NewResponderUsecase(repo domain.MessageRepository, replyDelay time.Duration, logger *slog.Logger) domain.ChatResponder {
	ctx, cancel := context.WithCancel(context.Background())
	return &responderUsecase{
		repo:       repo,
		replyDelay: replyDelay,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// HandleMessage stores the inbound message and schedules the reply. The login
// greeting is an ordinary message and is stored and answered like any other;
// an empty text only creates the contact.
func (u *responderUsecase) HandleMessage(ctx context.Context, name, email, text string) (*entity.SubmitAck, error) {
	contact, err := u.repo.UpsertContact(ctx, name, email)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return &entity.SubmitAck{UserID: contact.ID}, nil
	}

	if _, err := u.repo.Append(ctx, contact.ID, text, entity.DirectionUser); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if contact.Blocked {
		u.logger.Info("responder blocked, reply skipped", "user_id", contact.ID)
		return &entity.SubmitAck{UserID: contact.ID}, nil
	}

	reply := composeReply(contact.Name, text)
	u.schedule(contact.ID, reply)
	return &entity.SubmitAck{UserID: contact.ID, Reply: reply}, nil
}

func (u *responderUsecase) schedule(userID, reply string) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		timer := time.NewTimer(u.replyDelay)
		defer timer.Stop()
		select {
		case <-u.ctx.Done():
			return
		case <-timer.C:
		}

		// blocking after the message arrived still suppresses the reply
		blocked, err := u.repo.IsBlocked(u.ctx, userID)
		if err != nil || blocked {
			return
		}
		if _, err := u.repo.Append(u.ctx, userID, reply, entity.DirectionBot); err != nil {
			u.logger.Error("failed to store reply", "user_id", userID, "error", err)
			return
		}
		u.logger.Debug("reply stored", "user_id", userID)
	}()
}

// Messages returns the log page after afterTs
func (u *responderUsecase) Messages(ctx context.Context, userID, afterTs string) ([]entity.Record, string, error) {
	if userID == "" {
		return nil, "", fmt.Errorf("user_id is required: %w", domain.ErrInvalidInput)
	}
	return u.repo.ListAfter(ctx, userID, afterTs)
}

// SetAccess blocks or unblocks the automated reply
func (u *responderUsecase) SetAccess(ctx context.Context, email string, state entity.AccessState) error {
	if err := u.repo.SetBlocked(ctx, email, state == entity.AccessBlocked); err != nil {
		return err
	}
	u.logger.Info("responder access changed", "email", email, "state", state.String())
	return nil
}

// Close cancels pending replies and waits for them
func (u *responderUsecase) Close() {
	u.cancel()
	u.wg.Wait()
}

// composeReply picks a canned answer for the scheduling assistant
func composeReply(name, text string) string {
	lower := strings.ToLower(text)
	switch {
	case hasAny(lower, "olá", "ola", "oi", "bom dia", "boa tarde", "boa noite"):
		if name == "" {
			return "Olá! Sou a Aiko, posso ajudar a agendar um horário."
		}
		return fmt.Sprintf("Olá, %s! Sou a Aiko, posso ajudar a agendar um horário.", name)
	case hasAny(lower, "agendar", "agenda", "horário", "horario", "marcar"):
		return "Claro! Qual dia e horário você prefere?"
	case hasAny(lower, "cancelar", "desmarcar"):
		return "Tudo bem, qual agendamento você quer cancelar?"
	case hasAny(lower, "obrigad"):
		return "Por nada! Estou por aqui se precisar."
	default:
		return fmt.Sprintf("Recebi sua mensagem: %q. Em que posso ajudar?", text)
	}
}

func hasAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
