package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

// DefaultServer is used when neither the session nor the app config names one
const DefaultServer = "http://localhost:5678"

// ErrNotLoggedIn is returned by LoadUser when no user is saved
var ErrNotLoggedIn = errors.New("not logged in, run 'aikoctl login' first")

// Session stores CLI state between invocations
type Session struct {
	Server string       `json:"server"`         // webhook backend base URL
	User   *SessionUser `json:"user,omitempty"` // current logged-in user
}

// SessionUser is the persisted form of entity.User
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FileStore keeps the session in a JSON file. It implements domain.SessionStore.
type FileStore struct {
	path string
}

var _ domain.SessionStore = (*FileStore)(nil)

// GetSessionPath returns the session file path (~/.aikoctl/session.json)
func GetSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".aikoctl", "session.json"), nil
}

// NewFileStore returns a store at path, or at the default location when path is empty
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := GetSessionPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileStore{path: path}, nil
}

// Path returns the session file location
func (s *FileStore) Path() string {
	return s.path
}

// Load loads the session from file. A missing file yields an empty session.
func (s *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess Session
	if err := sonic.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &sess, nil
}

// Save saves the session to file
func (s *FileStore) Save(sess *Session) error {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := sonic.ConfigStd.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write to file (0600 permission, user read/write only)
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// ServerOr returns the saved server, or fallback when none is saved
func (s *FileStore) ServerOr(fallback string) string {
	sess, err := s.Load()
	if err == nil && sess.Server != "" {
		return sess.Server
	}
	if fallback != "" {
		return fallback
	}
	return DefaultServer
}

// SetServer records the backend base URL
func (s *FileStore) SetServer(server string) error {
	sess, err := s.Load()
	if err != nil {
		return err
	}
	sess.Server = server
	return s.Save(sess)
}

// LoadUser returns the logged-in user or ErrNotLoggedIn
func (s *FileStore) LoadUser() (*entity.User, error) {
	sess, err := s.Load()
	if err != nil {
		return nil, err
	}
	if sess.User == nil || sess.User.ID == "" {
		return nil, ErrNotLoggedIn
	}
	return &entity.User{ID: sess.User.ID, Name: sess.User.Name, Email: sess.User.Email}, nil
}

// SaveUser persists user as the logged-in user
func (s *FileStore) SaveUser(user entity.User) error {
	sess, err := s.Load()
	if err != nil {
		return err
	}
	sess.User = &SessionUser{ID: user.ID, Name: user.Name, Email: user.Email}
	return s.Save(sess)
}

// ClearUser forgets the logged-in user and keeps the server
func (s *FileStore) ClearUser() error {
	sess, err := s.Load()
	if err != nil {
		return err
	}
	sess.User = nil
	return s.Save(sess)
}
