package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/journalrag/internal/evaluation"
	"github.com/cleared-dev/journalrag/internal/importer"
)

func newEvaluateCommand(opts *rootOptions) *cobra.Command {
	var embeddingQuality bool

	cmd := &cobra.Command{
		Use:   "evaluate <invoice-file> <expected-file>",
		Short: "Journal an invoice and score it against expected postings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := importer.ParseFile(args[0])
			if err != nil {
				return err
			}
			expected, err := evaluation.LoadExpected(args[1])
			if err != nil {
				return err
			}

			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			p, err := e.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Journal(ctx, inv)
			if err != nil {
				return err
			}

			in := evaluation.Input{
				Postings: res.Postings,
				Invoice:  inv,
				VATRate:  p.VATRate(),
				Expected: expected,
			}
			if embeddingQuality {
				in.Embedder = p.Embedder()
			}
			report, err := evaluation.Evaluate(ctx, in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balanced: %s (debit %s, credit %s)\n",
				yesNo(report.Balance.IsBalanced), report.Balance.TotalDebit.StringFixed(2), report.Balance.TotalCredit.StringFixed(2))
			fmt.Fprintf(out, "VAT compliant: %s\n", yesNo(report.VATCompliant))

			s := report.Pipeline
			fmt.Fprintf(out, "Accuracy: %.2f (%d of %d expected, %d generated)\n", s.Accuracy, s.Matches, s.Expected, s.Generated)
			for _, m := range s.Mismatches {
				fmt.Fprintf(out, "  #%d expected %s %s/%s, got %s %s/%s\n", m.Position+1,
					m.Expected.AccountCode, m.Expected.Debit.StringFixed(2), m.Expected.Credit.StringFixed(2),
					m.Generated.AccountCode, m.Generated.Debit.StringFixed(2), m.Generated.Credit.StringFixed(2))
			}
			for _, m := range s.Missing {
				fmt.Fprintf(out, "  missing %s %s/%s\n", m.AccountCode, m.Debit.StringFixed(2), m.Credit.StringFixed(2))
			}
			for _, x := range s.Extra {
				fmt.Fprintf(out, "  extra %s %s/%s\n", x.AccountCode, x.Debit.StringFixed(2), x.Credit.StringFixed(2))
			}
			if report.EmbeddingQuality != nil {
				fmt.Fprintf(out, "Embedding quality: %.4f\n", *report.EmbeddingQuality)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&embeddingQuality, "embedding-quality", false, "also score embedding similarity on curated pairs")

	return cmd
}
