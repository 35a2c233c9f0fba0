// Package sqlite provides a SQLite streaming executor for sqlbridge.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
	_ "modernc.org/sqlite" // sqlite driver
)

// Executor implements the executor.Executor interface for SQLite.
//
// SQLite is embedded: like DuckDB there is no administrative cancel
// connection. Aborting the stream context makes the driver interrupt the
// running statement via sqlite3_interrupt.
type Executor struct {
	executor.BaseSQLExecutor
}

// New creates a new SQLite executor instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		BaseSQLExecutor: executor.BaseSQLExecutor{Logger: logger},
	}
}

// Connect opens the SQLite database and pins the dedicated connection.
// Use ":memory:" as the path for an in-memory database.
func (e *Executor) Connect(ctx context.Context, cfg core.ConnConfig) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	e.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	if err := e.Pin(ctx, db, cfg); err != nil {
		return fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	return nil
}

// Ensure Executor implements the executor.Executor interface
var _ executor.Executor = (*Executor)(nil)
