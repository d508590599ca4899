package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/chatsync"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/loader"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
)

var (
	replayFile   string
	replaySettle time.Duration
)

// replayCmd runs a scripted conversation
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "run a scripted conversation from a YAML file",
	Long: `Run a ChatScript against the backend as the logged-in user and print
the resulting conversation.

Script format:
  kind: ChatScript
  steps:
    - send: "Olá"
    - wait: 3s
    - command: bloquear`,
	Example: `  $ aikoctl replay -f examples/agendamento.yaml
  $ aikoctl replay -f script.yaml --settle 10s`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "path to ChatScript YAML file (required)")
	replayCmd.Flags().DurationVar(&replaySettle, "settle", 5*time.Second, "time to keep polling after the last step")
	_ = replayCmd.MarkFlagRequired("file")
	replayCmd.SilenceUsage = true
}

func runReplay(cmd *cobra.Command, args []string) error {
	script, err := loader.LoadFromFile(replayFile)
	if err != nil {
		ui.PrintError("failed to load script: %v", err)
		return fmt.Errorf("script load failed")
	}
	actions, err := script.Actions()
	if err != nil {
		ui.PrintError("invalid script: %v", err)
		return fmt.Errorf("script load failed")
	}

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
	ui.PrintInfo("Replaying %d steps from %s", len(actions), replayFile)
	failed := runActions(ctx, session, actions)

	sleep(ctx, replaySettle)
	session.PollNow()
	sleep(ctx, time.Second)

	fmt.Println(ui.RenderTimeline(session.Timeline().Snapshot(), historyWidth))
	if failed > 0 {
		ui.PrintWarning("%d of %d steps failed", failed, len(actions))
		return fmt.Errorf("replay finished with errors")
	}
	ui.PrintSuccess("Replay finished")
	return nil
}

// runActions executes actions in order and returns how many failed.
// A failing step does not stop the script.
func runActions(ctx context.Context, session *chatsync.Session, actions []loader.Action) int {
	failed := 0
	for i, act := range actions {
		if ctx.Err() != nil {
			return failed
		}

		var err error
		switch act.Kind {
		case loader.StepSend:
			err = session.Send(ctx, act.Text)
		case loader.StepCommand:
			_, err = session.Command(ctx, act.Command.String())
		case loader.StepWait:
			sleep(ctx, act.Wait)
		}

		if err != nil {
			failed++
			ui.PrintWarning("step %d: %v", i+1, err)
		}
	}
	return failed
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
