package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Connection string
	Format     string
	Input      string
	BatchSize  int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a query against a configured connection",
		Long: `Execute SQL directly against one of the configured connections,
using the same streaming executors as the bridge server.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  sqlbridge query -c warehouse "SELECT * FROM orders LIMIT 10"

  # Read SQL from a file
  sqlbridge query -c warehouse -i report.sql

  # Output as JSON
  sqlbridge query -c warehouse "SELECT 1" --format json

  # Interactive mode
  sqlbridge query -c warehouse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryCmd(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Connection, "connection", "c", "", "Connection id from sqlbridge.yaml")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "Rows per batch (default from config)")

	return cmd
}

func runQueryCmd(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc := GetCommandContext(cmd)

	conn, err := resolveConnection(cc, opts.Connection)
	if err != nil {
		return err
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = cc.Cfg.BatchSize
	}

	// Determine SQL source
	var sqlText string
	switch {
	case len(args) > 0:
		sqlText = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlText = string(content)
	case !isTerminal(os.Stdin):
		// Read from stdin (piped input)
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlText = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, conn, opts)
	}

	return executeAndRender(cmd.Context(), cmd, conn, sqlText, opts)
}

// resolveConnection picks the connection to use. When no id is given and
// exactly one connection is configured, that one is used.
func resolveConnection(cc *CommandContext, id string) (core.ConnConfig, error) {
	if id == "" {
		if len(cc.Cfg.Connections) == 1 {
			for only, conn := range cc.Cfg.Connections {
				cc.Logger.Debug("using only configured connection", "connection_id", only)
				return conn, nil
			}
		}
		return core.ConnConfig{}, fmt.Errorf("no connection specified (use --connection; configured: %v)", connectionIDs(cc))
	}

	conn, ok := cc.Cfg.Connections[id]
	if !ok {
		return core.ConnConfig{}, fmt.Errorf("unknown connection %q (configured: %v)", id, connectionIDs(cc))
	}
	return conn, nil
}

func connectionIDs(cc *CommandContext) []string {
	ids := make([]string, 0, len(cc.Cfg.Connections))
	for id := range cc.Cfg.Connections {
		ids = append(ids, id)
	}
	return ids
}

// executeAndRender streams the statement, collecting batches for rendering.
func executeAndRender(ctx context.Context, cmd *cobra.Command, conn core.ConnConfig, sqlText string, opts *QueryOptions) error {
	cc := GetCommandContext(cmd)

	exec, err := executor.New(conn, cc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = exec.Close() }()

	if err := exec.Connect(ctx, conn); err != nil {
		return err
	}

	var (
		cols []core.Column
		all  [][]any
	)
	handle, err := exec.StreamQuery(ctx, executor.StreamOptions{
		SQL:       sqlText,
		BatchSize: opts.BatchSize,
		OnBatch: func(rows [][]any, c []core.Column) error {
			if cols == nil {
				cols = c
			}
			all = append(all, rows...)
			return nil
		},
	})
	if err != nil {
		return err
	}
	if err := handle.Wait(ctx); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return renderResults(cmd.OutOrStdout(), cols, all, opts.Format)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
