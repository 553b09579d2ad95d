package commands

import (
	"github.com/spf13/cobra"

	"github.com/fintrack-dev/fintrack/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "fintrack",
		Short:   "Import bank statements into a plain-text ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("repo", ".", "repository directory")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(),
		newBatchesCommand(),
		newServeCommand(),
	)

	return rootCmd
}

func repoFlag(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("repo")
	if err != nil || dir == "" {
		return "."
	}
	return dir
}
