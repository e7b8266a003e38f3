package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/journalrag/internal/classify"
	"github.com/cleared-dev/journalrag/internal/model"
)

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Classify a single line item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amount, err)
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

			item := model.LineItem{Description: strings.Join(args, " "), Amount: amt}
			res, err := p.Classify(cmd.Context(), item)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Candidates:")
			for _, c := range res.Candidates {
				fmt.Fprintf(out, "  %-6s %.4f  %s\n", c.Entry.Code, c.Score, c.Entry.Description)
			}
			switch o := res.Outcome.(type) {
			case classify.Matched:
				fmt.Fprintf(out, "Account: %s\n", o.Entry.Line())
			case classify.Unmatched:
				fmt.Fprintf(out, "Account: %s (unmatched answer %q, needs review)\n", res.Account, o.Raw)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "0", "line item amount")

	return cmd
}
