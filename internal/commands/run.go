package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/importer"
	"github.com/cleared-dev/journalrag/internal/journal"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Journal every invoice in import/ into the monthly journals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			files, err := importer.Scan(e.repoRoot)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No invoices to process.")
				return nil
			}

			ctx := cmd.Context()
			p, err := e.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			svc := journal.NewService(e.repoRoot, p.Index())
			var done, failed int
			for _, f := range files {
				log := e.logger.With(zap.String("file", f.Name))

				inv, err := importer.ParseFile(f.Path)
				if err != nil {
					log.Error("Skipping unreadable invoice", zap.Error(err))
					failed++
					continue
				}
				date, err := inv.BookingDate(time.Now())
				if err != nil {
					log.Error("Skipping invoice with bad date", zap.Error(err))
					failed++
					continue
				}

				res, err := p.Journal(ctx, inv)
				if err != nil {
					if ctx.Err() != nil {
						return err
					}
					log.Error("Journaling failed", zap.Error(err))
					failed++
					continue
				}
				if !res.Valid() {
					log.Error("Postings failed validation; invoice left in import/",
						zap.Int("violations", len(res.Violations)))
					fmt.Fprintf(out, "%s: not journaled\n", f.Name)
					printSummary(out, res)
					failed++
					continue
				}

				if len(res.Postings) == 0 {
					log.Warn("Invoice produced no postings")
					fmt.Fprintf(out, "%s: no postings\n", f.Name)
					failed++
					continue
				}

				stamped, err := svc.Append(date, res.Postings)
				if err != nil {
					log.Error("Writing journal failed", zap.Error(err))
					failed++
					continue
				}
				if err := importer.MarkProcessed(e.repoRoot, f.Name); err != nil {
					return err
				}

				review := ""
				if res.NeedsReview() {
					review = " (needs review)"
				}
				fmt.Fprintf(out, "%s: %s, %d postings%s\n", f.Name, stamped[0].EntryGroup(), len(stamped), review)
				done++
			}

			fmt.Fprintf(out, "Journaled %d of %d invoices.\n", done, len(files))
			if failed > 0 {
				return fmt.Errorf("%d invoice(s) not journaled", failed)
			}
			return nil
		},
	}
}
