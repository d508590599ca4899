package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/tui"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
)

// chatCmd is the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "start interactive chat with Aiko",
	Long: `Start an interactive chat session with Aiko.

Features:
  • history is loaded on start, new messages are polled every sync.poll_interval
  • typing indicator while a reply is pending
  • /bloquear and /desbloquear pause or resume the automated responder

Logs go to ~/.aikoctl/aikoctl.log while the chat is open. When metrics.addr
is set, Prometheus metrics are served at http://<addr>/metrics.`,
	Example: `  # Start interactive chat
  $ aikoctl chat

  # Keyboard controls:
  • Enter      send message
  • Ctrl+B/U   block/unblock the responder
  • Ctrl+L     clear the chat
  • Ctrl+R     poll now
  • Esc        quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.SilenceUsage = true
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp(true)
	if err != nil {
		return err
	}

	collector := metrics.New()
	session, err := a.newSession(collector)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if a.cfg.Metrics.Addr != "" {
		go metrics.NewServer(a.cfg.Metrics.Addr, collector, a.logger).Run(ctx)
	}

	if err := session.Start(ctx); err != nil {
		ui.PrintError("failed to start polling: %v", err)
		return fmt.Errorf("session start failed")
	}
	defer session.Close()

	if err := tui.NewChatProgram(session).Run(ctx); err != nil {
		return fmt.Errorf("failed to run chat TUI: %w", err)
	}
	return nil
}
