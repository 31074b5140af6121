package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	authToken    string
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Book ingestion and question answering over uploaded books",
	Long: `Lectern turns uploaded books into searchable passages and answers
questions about them.

The pipeline includes:
  - Text extraction from PDF, DOCX and plain text
  - Page-aware chunking with overlap
  - Batched embeddings into Postgres/pgvector or an embedded index
  - Character personas for fiction and children's books
  - Tutor and in-character chat grounded on the retrieved passages`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lectern/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "lectern home directory (default: ~/.lectern)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&authToken, "token", "", "bearer token for protected API calls (default: $LECTERN_API_TOKEN)",
	)

	// Set output format and load the home .env before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		api.SetOutputFormat(outputFormat)
		if h, err := home.New(homeDir); err == nil {
			if err := config.LoadDotEnv(h.EnvPath()); err != nil {
				return err
			}
		}
		if authToken == "" {
			authToken = os.Getenv("LECTERN_API_TOKEN")
		}
		api.SetAuthToken(authToken)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory, creating it if needed.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	return h, nil
}

// configPath picks --config, then the home config file when it exists.
// Empty lets the manager search its default paths.
func configPath(h *home.Dir) string {
	if cfgFile != "" {
		return cfgFile
	}
	if h != nil && h.ConfigExists() {
		return h.ConfigPath()
	}
	return ""
}
