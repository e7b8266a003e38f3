package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/journalrag/internal/importer"
	"github.com/cleared-dev/journalrag/internal/journal"
	"github.com/cleared-dev/journalrag/internal/pipeline"
)

func newJournalCommand(opts *rootOptions) *cobra.Command {
	var outPath string
	var seq int

	cmd := &cobra.Command{
		Use:   "journal <invoice-file>",
		Short: "Journal one invoice and print its postings as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seq < 1 {
				return fmt.Errorf("--seq must be at least 1, got %d", seq)
			}
			inv, err := importer.ParseFile(args[0])
			if err != nil {
				return err
			}
			date, err := inv.BookingDate(time.Now())
			if err != nil {
				return err
			}

			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			p, err := e.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Journal(cmd.Context(), inv)
			if err != nil {
				return err
			}
			stamped := journal.AssignEntryIDs(res.Postings, date, seq)

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}
			if err := journal.WritePostings(out, stamped); err != nil {
				return fmt.Errorf("writing postings: %w", err)
			}

			printSummary(cmd.ErrOrStderr(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write CSV to file instead of stdout")
	cmd.Flags().IntVar(&seq, "seq", 1, "entry sequence number within the month")

	return cmd
}

func printSummary(w io.Writer, res *pipeline.JournalResult) {
	fmt.Fprintf(w, "Balanced: %s (debit %s, credit %s)\n",
		yesNo(res.Balance.IsBalanced), res.Balance.TotalDebit.StringFixed(2), res.Balance.TotalCredit.StringFixed(2))
	fmt.Fprintf(w, "VAT compliant: %s\n", yesNo(res.VATCompliant))
	fmt.Fprintf(w, "Needs review: %s\n", yesNo(res.NeedsReview()))
	for _, v := range res.Violations {
		fmt.Fprintf(w, "Violation: %s\n", v.Error())
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
