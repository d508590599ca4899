package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
)

var logoutForce bool

// logoutCmd is the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "forget the saved user",
	Long: `Remove the saved user from ~/.aikoctl/session.json. The server address is kept.

By default, you will be prompted to confirm. Use --force to skip confirmation.`,
	Example: `  $ aikoctl logout
  $ aikoctl logout --force`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func init() {
	logoutCmd.Flags().BoolVarP(&logoutForce, "force", "f", false, "Skip confirmation prompt")
	logoutCmd.SilenceUsage = true
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}

	user, err := a.store.LoadUser()
	if err != nil {
		ui.PrintInfo("Not logged in")
		return nil
	}

	if !logoutForce {
		confirm := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Log out %s <%s>?", user.Name, user.Email),
			Default: false,
		}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			ui.PrintError("failed to read confirmation: %v", err)
			return fmt.Errorf("input failed")
		}
		if !confirm {
			ui.PrintInfo("Logout cancelled")
			return nil
		}
	}

	if err := a.store.ClearUser(); err != nil {
		ui.PrintError("failed to clear session: %v", err)
		return fmt.Errorf("logout failed")
	}

	ui.PrintSuccess("Logged out %s", user.Email)
	return nil
}
