package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/chatsync"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/client"
	sessionconfig "github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/config"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/config"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/pkg/logger"
)

// configPath is the --config flag shared by all commands
var configPath string

// app bundles what every command needs
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *sessionconfig.FileStore
}

// loadApp loads configuration, sets up logging and opens the session store.
// fullscreen moves terminal log output to a file so it cannot corrupt the TUI.
func loadApp(fullscreen bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return nil, fmt.Errorf("config load failed")
	}

	store, err := sessionconfig.NewFileStore("")
	if err != nil {
		ui.PrintError("failed to locate session file: %v", err)
		return nil, fmt.Errorf("session store unavailable")
	}

	logCfg := cfg.Log
	if fullscreen && (logCfg.Output == "stdout" || logCfg.Output == "stderr") {
		logCfg.Output = "file"
		logCfg.FilePath = filepath.Join(filepath.Dir(store.Path()), "aikoctl.log")
	}
	log, err := logger.Setup(logCfg)
	if err != nil {
		ui.PrintError("failed to set up logging: %v", err)
		return nil, fmt.Errorf("logger setup failed")
	}

	return &app{cfg: cfg, logger: log, store: store}, nil
}

// newClient creates the transport for server, falling back to the saved or configured server
func (a *app) newClient(server string) (*client.APIClient, error) {
	if server == "" {
		server = a.store.ServerOr(a.cfg.Server.URL)
	}
	apiClient, err := client.NewAPIClient(server, a.cfg.Sync.RequestTimeout, a.logger)
	if err != nil {
		ui.PrintError("failed to create client: %v", err)
		return nil, fmt.Errorf("client creation failed")
	}
	return apiClient, nil
}

// requireUser returns the logged-in user or prints a login hint
func (a *app) requireUser() (*entity.User, error) {
	user, err := a.store.LoadUser()
	if err != nil {
		ui.PrintError("%v", err)
		return nil, fmt.Errorf("authentication required")
	}
	return user, nil
}

// newSession builds a sync session for the logged-in user
func (a *app) newSession(collector *metrics.Collector) (*chatsync.Session, error) {
	user, err := a.requireUser()
	if err != nil {
		return nil, err
	}
	apiClient, err := a.newClient("")
	if err != nil {
		return nil, err
	}

	session, err := chatsync.NewSession(*user, apiClient, chatsync.Options{
		PollInterval:   a.cfg.Sync.PollInterval,
		ReplyWindow:    a.cfg.Sync.ReplyWindow,
		ProvisionalTTL: a.cfg.Sync.ProvisionalTTL,
		OptimisticEcho: a.cfg.Sync.OptimisticEcho,
	}, collector, a.logger)
	if err != nil {
		ui.PrintError("failed to start session: %v", err)
		return nil, fmt.Errorf("session creation failed")
	}
	return session, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
