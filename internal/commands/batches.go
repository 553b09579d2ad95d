package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/logger"
)

func newBatchesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List past imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, logger.FormatConsole)
			if err != nil {
				return err
			}
			defer a.Close()

			lister, ok := a.store.(importer.BatchLister)
			if !ok {
				return errors.New("store does not keep import history")
			}
			batches, err := lister.Batches(cmd.Context(), a.cfg.User)
			if err != nil {
				return err
			}
			if len(batches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No imports yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tBATCH\tACCOUNT\tFILE\tSTATUS\tIMPORTED\tDUPLICATES\tSKIPPED\tERROR")
			for _, b := range batches {
				fmt.Fprintf(w, "%s\t%.8s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					b.CreatedAt.Local().Format(time.DateTime), b.ID, b.AccountID, b.FileName,
					b.Status, b.ImportedRows, b.DuplicateRows, b.SkippedRows, b.ErrorMessage)
			}
			return w.Flush()
		},
	}
}
