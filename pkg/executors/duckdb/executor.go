// Package duckdb provides a DuckDB streaming executor for sqlbridge.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// identPattern constrains extension and setting names: INSTALL/LOAD/SET take
// no placeholders, so names are interpolated and must be plain identifiers.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Executor implements the executor.Executor interface for DuckDB.
//
// DuckDB is embedded: there is no server process and no administrative cancel
// connection. Cancellation is the local interrupt only - aborting the stream
// context makes the driver interrupt the running statement.
type Executor struct {
	executor.BaseSQLExecutor
}

// Params holds DuckDB-specific configuration, decoded from
// core.ConnConfig.Params with mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// New creates a new DuckDB executor instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		BaseSQLExecutor: executor.BaseSQLExecutor{Logger: logger},
	}
}

// Connect opens the DuckDB database and pins the dedicated connection.
// Use ":memory:" as the path for an in-memory database.
func (e *Executor) Connect(ctx context.Context, cfg core.ConnConfig) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	e.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := e.Pin(ctx, db, cfg); err != nil {
		return fmt.Errorf("failed to connect to duckdb: %w", err)
	}

	if err := e.applyParams(ctx, cfg); err != nil {
		_ = e.Close()
		return err
	}

	return nil
}

// applyParams installs extensions and applies session settings declared in
// the connection's params block.
func (e *Executor) applyParams(ctx context.Context, cfg core.ConnConfig) error {
	if len(cfg.Params) == 0 {
		return nil
	}

	var params Params
	if err := mapstructure.Decode(cfg.Params, &params); err != nil {
		return fmt.Errorf("failed to decode duckdb params: %w", err)
	}

	for _, ext := range params.Extensions {
		if !identPattern.MatchString(ext) {
			return fmt.Errorf("invalid extension name %q", ext)
		}
		if _, err := e.Conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
		e.Logger.Debug("loaded duckdb extension", slog.String("extension", ext))
	}

	for key, value := range params.Settings {
		if !identPattern.MatchString(key) {
			return fmt.Errorf("invalid setting name %q", key)
		}
		quoted := strings.ReplaceAll(value, "'", "''")
		if _, err := e.Conn.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", key, quoted)); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", key, err)
		}
	}

	return nil
}

// Ensure Executor implements the executor.Executor interface
var _ executor.Executor = (*Executor)(nil)
