package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
)

// sendCmd is the send command
var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "send one message",
	Long: `Send one message to Aiko and exit. The reply arrives asynchronously;
use 'aikoctl history -f' to watch for it.`,
	Example: `  $ aikoctl send Olá, tudo bem?
  $ aikoctl send "Quero agendar um horário"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.SilenceUsage = true
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		ui.PrintError("message is empty")
		return fmt.Errorf("invalid arguments")
	}

	a, err := loadApp(false)
	if err != nil {
		return err
	}
	session, err := a.newSession(nil)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Sync.RequestTimeout)
	defer cancel()

	if err := session.Send(ctx, text); err != nil {
		ui.PrintErrorBox(session.Banner(), err.Error())
		return fmt.Errorf("send failed")
	}

	ui.PrintSuccess("Message sent")
	return nil
}
