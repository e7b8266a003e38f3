package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/journalrag/internal/buildinfo"
)

// rootOptions are the persistent flags shared by subcommands.
type rootOptions struct {
	repo       string
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "journalrag",
		Short:   "Retrieval-augmented invoice journaling",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default <repo>/journalrag.yaml)")

	rootCmd.AddCommand(
		newInitCommand(),
		newCOACommand(opts),
		newClassifyCommand(opts),
		newJournalCommand(opts),
		newRunCommand(opts),
		newEvaluateCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}
