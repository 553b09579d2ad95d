package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/gitops"
	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/logger"
	"github.com/fintrack-dev/fintrack/internal/model"
)

type importFlags struct {
	account    string
	maps       []string
	sign       string
	profile    string
	dateFormat string
	delimiter  string
	header     string
	dryRun     bool
	scan       bool
}

func newImportCommand() *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a bank statement (CSV, TSV or XLSX)",
		Long: `Import a bank statement into the configured store.

Columns are mapped automatically; override with --map, e.g.
  fintrack import jan.csv --map date="Posting Date" --map amount=Amount

With --scan every statement in import/ is imported and moved to
import/processed/.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.scan == (len(args) == 1) {
				return errors.New("give exactly one of a file or --scan")
			}
			a, err := openApp(cmd, logger.FormatConsole)
			if err != nil {
				return err
			}
			defer a.Close()
			return runImport(cmd, a, f, args)
		},
	}

	cmd.Flags().StringVar(&f.account, "account", "", "account the statement belongs to (default from config)")
	cmd.Flags().StringArrayVar(&f.maps, "map", nil, "override a column mapping as field=column (repeatable)")
	cmd.Flags().StringVar(&f.sign, "sign", "", "sign convention for a single amount column (positive-income, positive-expense)")
	cmd.Flags().StringVar(&f.profile, "profile", "", "named mapping profile")
	cmd.Flags().StringVar(&f.dateFormat, "date-format", "", "Go layout for the date column, e.g. 02/01/2006")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "field delimiter (default detected)")
	cmd.Flags().StringVar(&f.header, "header", "auto", "whether the file has a header row (auto, yes, no)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "show what would be imported without writing")
	cmd.Flags().BoolVar(&f.scan, "scan", false, "import every statement in import/")

	return cmd
}

func runImport(cmd *cobra.Command, a *app, f importFlags, args []string) error {
	out := cmd.OutOrStdout()

	var paths []string
	if f.scan {
		files, err := importer.Scan(a.root)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(out, "No statements in import/")
			return nil
		}
		for _, fi := range files {
			paths = append(paths, fi.Path)
		}
	} else {
		paths = args
	}

	var touched []string
	for _, path := range paths {
		txns, err := importFile(cmd, a, f, path)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if f.dryRun {
			continue
		}
		touched = append(touched, ledgerPaths(txns)...)
		if f.scan {
			if err := importer.MarkProcessed(a.root, filepath.Base(path)); err != nil {
				return err
			}
		}
	}

	if f.dryRun {
		return nil
	}
	return a.commitToGit(out, paths, touched, f.scan)
}

// importFile runs one statement through a session and returns the
// transactions that were (or, on a dry run, would be) imported.
func importFile(cmd *cobra.Command, a *app, f importFlags, path string) ([]model.Transaction, error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}

	opts, err := a.sessionOptions(f)
	if err != nil {
		return nil, err
	}
	sess := importer.NewSession(a.store, opts)
	if err := sess.Upload(filepath.Base(path), data); err != nil {
		return nil, err
	}

	m, err := applyOverrides(sess.Mapping(), f, a.cfg.Import.SignConvention, a.cfg.Import.DateFormat)
	if err != nil {
		return nil, err
	}
	if err := sess.SetMapping(m); err != nil {
		fmt.Fprintf(out, "Columns: %s\n", strings.Join(sess.Table().Headers, ", "))
		return nil, err
	}

	p, err := sess.Preview(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "%s: %d rows, %d new, %d duplicates, %d skipped\n",
		filepath.Base(path), p.TotalRows, len(p.Transactions), p.DuplicateCount, len(p.Skipped))
	for _, pe := range p.Skipped {
		fmt.Fprintf(out, "  skipped %s\n", pe.Error())
	}

	if f.dryRun {
		printTransactions(out, p.Transactions)
		return p.Transactions, nil
	}

	summary, err := sess.Commit(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Imported %d transactions into %s (batch %s)\n", summary.ImportedCount, opts.AccountID, summary.BatchID)
	return p.Transactions, nil
}

func (a *app) sessionOptions(f importFlags) (importer.SessionOptions, error) {
	account := f.account
	if account == "" {
		account = a.cfg.DefaultAccount
	}
	if account == "" {
		return importer.SessionOptions{}, errors.New("no account: pass --account or set default_account")
	}

	opts := importer.SessionOptions{
		UserID:      a.cfg.User,
		AccountID:   account,
		Currency:    a.accounts.Currency(account, a.cfg.Currency),
		Categorizer: a.rules,
		Accounts:    a.accounts,
	}

	if f.profile != "" {
		p, ok := a.profiles.Get(f.profile)
		if !ok {
			return opts, fmt.Errorf("unknown profile %q (have %s)", f.profile, strings.Join(a.profiles.Names(), ", "))
		}
		opts.Mapping = &p.Mapping
	}

	if f.delimiter != "" {
		d := []rune(strings.ReplaceAll(f.delimiter, `\t`, "\t"))
		if len(d) != 1 {
			return opts, fmt.Errorf("delimiter must be a single character, got %q", f.delimiter)
		}
		opts.Detect.Delimiter = d[0]
	}
	switch strings.ToLower(f.header) {
	case "", "auto":
	case "yes", "true":
		opts.Detect.Header = importer.HeaderPresent
	case "no", "false":
		opts.Detect.Header = importer.HeaderAbsent
	default:
		return opts, fmt.Errorf("--header must be auto, yes or no, got %q", f.header)
	}
	return opts, nil
}

// applyOverrides layers --map, --sign and --date-format over m. Config
// defaults fill the sign and date format only when nothing else set them.
func applyOverrides(m model.FieldMapping, f importFlags, sign model.SignConvention, dateFormat string) (model.FieldMapping, error) {
	for _, kv := range f.maps {
		field, column, ok := strings.Cut(kv, "=")
		if !ok {
			return m, fmt.Errorf("--map %q: want field=column", kv)
		}
		fld, err := model.ParseField(field)
		if err != nil {
			return m, fmt.Errorf("--map %q: %w", kv, err)
		}
		m.Set(fld, strings.TrimSpace(column))
	}

	switch {
	case f.sign != "":
		m.Sign = model.SignConvention(f.sign)
	case m.Sign == "":
		m.Sign = sign
	}
	switch {
	case f.dateFormat != "":
		m.DateFormat = f.dateFormat
	case m.DateFormat == "":
		m.DateFormat = dateFormat
	}
	return m, nil
}

func printTransactions(out io.Writer, txns []model.Transaction) {
	for _, t := range txns {
		cat := ""
		if t.Category != "" {
			cat = " [" + t.Category + "]"
		}
		fmt.Fprintf(out, "  %s  %-7s %10s  %s%s\n", t.DateString(), t.Type, t.Amount.StringFixed(2), t.Description, cat)
	}
}

// ledgerPaths lists the year directories the ledger store writes txns to.
func ledgerPaths(txns []model.Transaction) []string {
	var dirs []string
	for _, t := range txns {
		y := fmt.Sprintf("%04d", t.Date.Year())
		if !slices.Contains(dirs, y) {
			dirs = append(dirs, y)
		}
	}
	return dirs
}

// commitToGit records a ledger import in git when the repository asks for it.
func (a *app) commitToGit(out io.Writer, files, touched []string, scanned bool) error {
	if a.driver() != config.DriverLedger || !a.cfg.Git.AutoCommit || !gitops.IsRepo(a.root) {
		return nil
	}

	paths := append([]string{"logs"}, touched...)
	if scanned {
		paths = append(paths, "import")
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}

	author := gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail}
	hash, err := gitops.Commit(a.root, "import: "+strings.Join(names, ", "), author, paths...)
	if errors.Is(err, gitops.ErrNothingToCommit) {
		return nil
	}
	if err != nil {
		return err
	}
	a.log.Info().Str("commit", hash).Strs("paths", paths).Msg("ledger committed to git")
	fmt.Fprintf(out, "Committed %s\n", hash)
	return nil
}
