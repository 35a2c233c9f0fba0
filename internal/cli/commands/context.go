// Package commands implements the sqlbridge CLI subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/sqlbridge/internal/config"
	"github.com/spf13/cobra"
)

// commandContextKey is used to store the CommandContext in the command's
// context.
type commandContextKey struct{}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg        *config.Config
	Logger     *slog.Logger
	ConfigFile string
}

// WithCommandContext stores the CommandContext in ctx.
func WithCommandContext(ctx context.Context, cc *CommandContext) context.Context {
	return context.WithValue(ctx, commandContextKey{}, cc)
}

// GetCommandContext retrieves the CommandContext from the command.
// Falls back to defaults so commands never dereference nil.
func GetCommandContext(cmd *cobra.Command) *CommandContext {
	if cc, ok := cmd.Context().Value(commandContextKey{}).(*CommandContext); ok {
		return cc
	}
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return &CommandContext{
		Cfg:    cfg,
		Logger: slog.New(slog.DiscardHandler),
	}
}
