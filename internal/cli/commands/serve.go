package commands

import (
	"context"

	"github.com/leapstack-labs/sqlbridge/internal/bridge"
	"github.com/leapstack-labs/sqlbridge/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the query bridge over stdin/stdout",
		Long: `Run the sqlbridge server.

The server communicates over stdin/stdout using newline-delimited JSON.
Connections are resolved from sqlbridge.yaml, which is hot-reloaded when
it changes. Logs go to stderr; stdout carries only protocol messages.`,
		Example: `  # Start the bridge (usually launched by an IDE extension)
  sqlbridge serve

  # With an explicit config file
  sqlbridge serve --config /path/to/sqlbridge.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cc := GetCommandContext(cmd)

	resolver := config.NewResolver(cc.Cfg, cc.ConfigFile, cc.Logger)
	transport := bridge.NewTransport(cmd.InOrStdin(), cmd.OutOrStdout(), cc.Logger)
	server := bridge.NewServer(transport, resolver, cc.Logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Server exit (EOF or shutdown) also stops the config watcher.
		defer cancel()
		return server.Run(gctx)
	})
	g.Go(func() error {
		return resolver.Watch(gctx)
	})

	return g.Wait()
}
