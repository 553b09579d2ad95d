package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fintrack-dev/fintrack/internal/accounts"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/gitops"
	"github.com/fintrack-dev/fintrack/internal/rules"
)

const profilesTemplate = `# Import profiles add named column mappings for --profile.
#
# profiles:
#   - name: tangerine
#     mapping: {date: Date, description: Name, amount: Amount, sign: positive-income}
profiles: []
`

func newInitCommand() *cobra.Command {
	var user, currency string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new fintrack repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, user, currency, !noGit)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner of the imported transactions (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&currency, "currency", "CAD", "default currency")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not initialize a git repository")

	return cmd
}

func runInit(out io.Writer, dir, user, currency string, withGit bool) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	dirs := []string{
		"accounts",
		"rules",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(user)
	cfg.Currency = currency
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	svc := accounts.NewService(accounts.DefaultAccounts(currency))
	if err := svc.Save(dir); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}

	if err := rules.Save(filepath.Join(dir, cfg.Import.RulesFile), rules.Defaults()); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cfg.Import.ProfilesFile), []byte(profilesTemplate), 0o644); err != nil {
		return fmt.Errorf("writing profiles: %w", err)
	}

	gitignore := "*.db\n*.db-shm\n*.db-wal\n*.tmp\n*.bak\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if !withGit {
		fmt.Fprintf(out, "Initialized fintrack repository at %s\n", dir)
		return nil
	}

	if err := gitops.Init(dir); err != nil {
		return err
	}
	author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	hash, err := gitops.Commit(dir, "init: fintrack repository for "+user, author)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized fintrack repository at %s (%s)\n", dir, hash)
	return nil
}
