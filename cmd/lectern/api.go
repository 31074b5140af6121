package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Lectern server via HTTP.

These commands require a running server (lectern serve).
Use --server to specify a custom server URL and --token for
protected calls such as process and jobs cancel.

Examples:
  lectern api health                      # Check server health
  lectern api process <book-id>           # Start processing a book
  lectern api jobs list --book <book-id>  # Jobs for one book
  lectern api books ask <book-id> "Who is the narrator?"`,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job management commands",
}

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Book status and chat commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt and per-book override commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func addCommands(parent *cobra.Command, eps []api.Endpoint) {
	for _, ep := range eps {
		if cmd := ep.Command(getServerURL); cmd != nil {
			parent.AddCommand(cmd)
		}
	}
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	addCommands(apiCmd, []api.Endpoint{
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.StatusEndpoint{},
		&endpoints.ProcessEndpoint{},
		&endpoints.SwaggerEndpoint{},
	})
	addCommands(jobsCmd, endpoints.JobCommands())
	addCommands(booksCmd, endpoints.BookCommands())
	addCommands(promptsCmd, endpoints.PromptCommands())

	apiCmd.AddCommand(jobsCmd)
	apiCmd.AddCommand(booksCmd)
	apiCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(apiCmd)
}
