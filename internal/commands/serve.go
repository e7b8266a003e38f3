package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/journalrag/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classify and journal HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := e.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			return server.New(server.DefaultConfig(addr), p, e.logger).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}
