package commands

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
)

var (
	loginName  string
	loginEmail string
)

// loginCmd is the login command
var loginCmd = &cobra.Command{
	Use:   "login [server]",
	Short: "register with the Aiko backend",
	Long: `Register your name and email with the Aiko backend and save the session locally.

The backend answers the first greeting with your user id. The id, name and
email are stored in ~/.aikoctl/session.json and used by every other command
until you log out.

If server is not provided, the saved server, then server.url from the config,
then http://localhost:5678 is used.`,
	Example: `  # Login to the default server (prompts for name and email)
  $ aikoctl login

  # Login to a custom server
  $ aikoctl login https://n8n.example.com -n Ana -e ana@example.com`,
	Args: cobra.MaximumNArgs(1), // Allow 0 or 1 server argument
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginName, "name", "n", "", "Your display name")
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Your email address")

	// Silence usage to avoid showing help on every error
	loginCmd.SilenceUsage = true
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}

	var server string
	if len(args) > 0 {
		server = args[0]
	}

	// 1. Prompt for name and email if not provided
	if loginName == "" {
		prompt := &survey.Input{Message: "Nome:"}
		if err := survey.AskOne(prompt, &loginName, survey.WithValidator(survey.Required)); err != nil {
			ui.PrintError("failed to read name: %v", err)
			return fmt.Errorf("input failed")
		}
	}
	if loginEmail == "" {
		prompt := &survey.Input{Message: "Email:"}
		if err := survey.AskOne(prompt, &loginEmail, survey.WithValidator(survey.Required), survey.WithValidator(validateEmail)); err != nil {
			ui.PrintError("failed to read email: %v", err)
			return fmt.Errorf("input failed")
		}
	}
	loginName = strings.TrimSpace(loginName)
	loginEmail = strings.TrimSpace(loginEmail)
	if err := validateEmail(loginEmail); err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("invalid email")
	}

	// 2. Create API client
	apiClient, err := a.newClient(server)
	if err != nil {
		return err
	}

	ui.PrintInfo("Connecting to %s...", apiClient.Server())

	// 3. Greeting handshake
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := apiClient.Register(ctx, loginName, loginEmail)
	if err != nil {
		ui.PrintErrorBox("Login Failed", err.Error())
		return fmt.Errorf("login failed")
	}

	// 4. Save session to local file
	if err := a.store.SetServer(apiClient.Server()); err != nil {
		ui.PrintError("failed to save session: %v", err)
		return fmt.Errorf("session save failed")
	}
	if err := a.store.SaveUser(*user); err != nil {
		ui.PrintError("failed to save session: %v", err)
		return fmt.Errorf("session save failed")
	}

	// 5. Display success message
	successContent := fmt.Sprintf(`Name:           %s
Email:          %s
User ID:        %s
Server:         %s
Session saved:  %s`,
		user.Name,
		user.Email,
		user.ID,
		apiClient.Server(),
		a.store.Path(),
	)
	ui.PrintSuccessBox("✓ Login Successful", successContent)

	// 6. Display usage hints
	fmt.Println()
	ui.PrintInfo("You can now use the following commands:")
	ui.PrintBold("  aikoctl chat            # Interactive chat")
	ui.PrintBold("  aikoctl history -f      # Follow the conversation")

	return nil
}

// validateEmail is a survey validator for email addresses
func validateEmail(ans interface{}) error {
	s, ok := ans.(string)
	if !ok {
		return errors.New("email must be text")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("invalid email address: %s", s)
	}
	return nil
}
