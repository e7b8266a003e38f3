package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/journalrag/internal/accounts"
)

func newCOACommand(opts *rootOptions) *cobra.Command {
	coaCmd := &cobra.Command{
		Use:   "coa",
		Short: "Chart of accounts operations",
	}
	coaCmd.AddCommand(newCOAListCommand(opts), newCOAKeywordsCommand(opts))
	return coaCmd
}

func newCOAListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			entries, err := e.chart()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, entry := range entries {
				fmt.Fprintf(out, "%-6s %s\n", entry.Code, entry.Description)
			}
			return nil
		},
	}
}

func newCOAKeywordsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keywords <text>",
		Short: "Look up an account by description keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			entries, err := e.chart()
			if err != nil {
				return err
			}
			code, ok := accounts.NewKeywordMap(entries).Lookup(strings.Join(args, " "))
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no keyword match")
				return nil
			}
			for _, entry := range entries {
				if entry.Code == code {
					fmt.Fprintln(cmd.OutOrStdout(), entry.Line())
					return nil
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
}
