package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/chatsync"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain/entity"
)

const historyWidth = 100

var historyFollow bool

// historyCmd prints the conversation
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "print the conversation history",
	Long: `Load the conversation history from the backend and print it.
With --follow, keep polling and print new messages as they arrive.`,
	Example: `  $ aikoctl history
  $ aikoctl history -f`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVarP(&historyFollow, "follow", "f", false, "keep polling and print new messages")
	historyCmd.SilenceUsage = true
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}
	session, err := a.newSession(nil)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := session.Start(ctx); err != nil {
		ui.PrintError("failed to start polling: %v", err)
		return fmt.Errorf("session start failed")
	}
	defer session.Close()

	select {
	case <-session.Ready():
	case <-ctx.Done():
		return nil
	}

	ui.PrintChatWelcomeBanner(session.User().Name)

	printed := make(map[string]bool)
	entries := session.Timeline().Snapshot()
	if len(entries) == 0 {
		ui.PrintInfo("No messages yet")
	}
	printNew(entries, printed)

	if !historyFollow {
		if banner := session.Banner(); banner != "" {
			ui.PrintWarning("%s", banner)
		}
		return nil
	}

	ui.PrintInfo("Following %s, press Ctrl+C to stop", session.User().Email)
	return follow(ctx, session, printed)
}

func follow(ctx context.Context, session *chatsync.Session, printed map[string]bool) error {
	status := time.NewTicker(time.Minute)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return nil
		case <-session.Timeline().Changes():
			printNew(session.Timeline().Snapshot(), printed)
		case now := <-status.C:
			if last := session.LastSync(); !last.IsZero() && now.Sub(last) > time.Minute {
				ui.PrintWarning("last successful sync %s", humanize.Time(last))
			}
		}
	}
}

// printNew prints confirmed entries and local notices that were not printed yet.
// Provisional entries are skipped; their confirmed copy is printed when it arrives.
func printNew(entries []entity.Message, printed map[string]bool) {
	var fresh []entity.Message
	for _, e := range entries {
		if e.IsProvisional() || printed[e.ID] {
			continue
		}
		printed[e.ID] = true
		fresh = append(fresh, e)
	}
	if len(fresh) > 0 {
		fmt.Println(ui.RenderTimeline(fresh, historyWidth))
	}
}
