package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/commands"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/cli/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		// Handle unknown command errors specially
		errMsg := err.Error()
		if strings.Contains(errMsg, "unknown command") {
			ui.PrintError("%s", errMsg)
			fmt.Println("\nRun 'aikoctl --help' for usage.")
		}
		os.Exit(1)
	}
}
