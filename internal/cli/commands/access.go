package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/chatsync"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
)

// blockCmd pauses the automated responder
var blockCmd = newAccessCmd(chatsync.CommandBlock,
	"block",
	"pause the automated responder",
	"Block Aiko for your email: the backend stops sending automated replies until you unblock.",
)

// unblockCmd resumes the automated responder
var unblockCmd = newAccessCmd(chatsync.CommandUnblock,
	"unblock",
	"resume the automated responder",
	"Unblock Aiko for your email: automated replies resume.",
)

func newAccessCmd(command chatsync.Command, use, short, long string) *cobra.Command {
	c := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		Example: fmt.Sprintf("  $ aikoctl %s", use),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccess(command)
		},
	}
	c.SilenceUsage = true
	return c
}

func runAccess(command chatsync.Command) error {
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

	_, err = session.Command(ctx, command.String())

	// the dispatcher reports the outcome as a system entry
	notice := ""
	if entries := session.Timeline().Snapshot(); len(entries) > 0 {
		notice = entries[len(entries)-1].Text
	}
	if err != nil {
		ui.PrintErrorBox(notice, err.Error())
		return fmt.Errorf("%s failed", command)
	}

	ui.PrintSuccess("%s", notice)
	return nil
}
