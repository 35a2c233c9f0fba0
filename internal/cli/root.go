// Package cli provides the command-line interface for sqlbridge.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sqlbridge/internal/cli/commands"
	"github.com/leapstack-labs/sqlbridge/internal/config"
	"github.com/spf13/cobra"

	// Import engine implementations so they register themselves
	_ "github.com/leapstack-labs/sqlbridge/pkg/executors/duckdb"
	_ "github.com/leapstack-labs/sqlbridge/pkg/executors/mysql"
	_ "github.com/leapstack-labs/sqlbridge/pkg/executors/postgres"
	_ "github.com/leapstack-labs/sqlbridge/pkg/executors/sqlite"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sqlbridge",
		Short: "sqlbridge - streaming SQL query bridge",
		Long: `sqlbridge is a local bridge process that executes SQL statements against
relational engines on behalf of a remote caller, streaming rows back in
batches with support for mid-flight cancellation.

It speaks newline-delimited JSON over stdin/stdout; connections are
declared in sqlbridge.yaml.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, configFileUsed, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			// The logger writes to stderr; stdout is the wire when serving.
			logger := newLogger(cmd, cfg)

			cc := &commands.CommandContext{
				Cfg:        cfg,
				Logger:     logger,
				ConfigFile: configFileUsed,
			}
			cmd.SetContext(commands.WithCommandContext(cmd.Context(), cc))

			if cfg.Verbose && configFileUsed != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFileUsed)
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Streaming SQL query bridge
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sqlbridge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Int("batch-size", 0, "default rows per result batch")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewConnectionsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))

	return rootCmd
}

// newLogger builds the CLI logger from config. --verbose forces debug.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
