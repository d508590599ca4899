package mocks

import (
	"context"
	"sync"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// MockChatTransport is a mock implementation of domain.ChatTransport
type MockChatTransport struct {
	SubmitFunc         func(ctx context.Context, user entity.User, text string) (*entity.SubmitAck, error)
	FetchPageFunc      func(ctx context.Context, userID, cursor string) entity.Page
	SetAccessStateFunc func(ctx context.Context, email string, state entity.AccessState) error

	mu          sync.Mutex
	Submitted   []string
	FetchCursor []string
	AccessCalls []entity.AccessState
}

// Submit mocks the Submit method
func (m *MockChatTransport) Submit(ctx context.Context, user entity.User, text string) (*entity.SubmitAck, error) {
	m.mu.Lock()
	m.Submitted = append(m.Submitted, text)
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, user, text)
	}
	return &entity.SubmitAck{UserID: user.ID}, nil
}

// FetchPage mocks the FetchPage method
func (m *MockChatTransport) FetchPage(ctx context.Context, userID, cursor string) entity.Page {
	m.mu.Lock()
	m.FetchCursor = append(m.FetchCursor, cursor)
	m.mu.Unlock()

	if m.FetchPageFunc != nil {
		return m.FetchPageFunc(ctx, userID, cursor)
	}
	return entity.Page{NextCursor: cursor}
}

// SetAccessState mocks the SetAccessState method
func (m *MockChatTransport) SetAccessState(ctx context.Context, email string, state entity.AccessState) error {
	m.mu.Lock()
	m.AccessCalls = append(m.AccessCalls, state)
	m.mu.Unlock()

	if m.SetAccessStateFunc != nil {
		return m.SetAccessStateFunc(ctx, email, state)
	}
	return nil
}

// FetchCount returns how many times FetchPage was called
func (m *MockChatTransport) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.FetchCursor)
}

// Cursors returns a copy of the cursors passed to FetchPage
func (m *MockChatTransport) Cursors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.FetchCursor))
	copy(out, m.FetchCursor)
	return out
}
