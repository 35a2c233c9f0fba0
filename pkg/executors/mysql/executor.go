// Package mysql provides a MySQL/MariaDB streaming executor for sqlbridge.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	godriver "github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
)

// Executor implements the executor.Executor interface for MySQL.
//
// The server-side cancel primitive is KILL QUERY: at connect time the
// connection id of the dedicated connection is captured, and a cancel request
// opens a short-lived administrative connection that issues KILL QUERY
// against that id, interrupting the in-flight statement without tearing the
// connection down.
type Executor struct {
	executor.BaseSQLExecutor

	connectionID uint64
	adminDSN     string
}

// New creates a new MySQL executor instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		BaseSQLExecutor: executor.BaseSQLExecutor{Logger: logger},
	}
}

// Connect establishes the dedicated MySQL connection and captures its
// connection id for later cancellation.
func (e *Executor) Connect(ctx context.Context, cfg core.ConnConfig) error {
	dsn := buildDSN(cfg)

	e.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open mysql connection: %w", err)
	}

	if err := e.Pin(ctx, db, cfg); err != nil {
		return fmt.Errorf("failed to connect to mysql: %w", err)
	}

	var id uint64
	if err := e.Conn.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&id); err != nil {
		_ = e.Close()
		return fmt.Errorf("failed to read connection id: %w", err)
	}

	e.connectionID = id
	e.adminDSN = dsn
	e.AdminCancel = e.killQuery
	e.Logger.Debug("mysql connection established", slog.Uint64("connection_id", id))
	return nil
}

// killQuery opens a short-lived administrative connection and interrupts the
// statement running on the captured connection id.
func (e *Executor) killQuery(ctx context.Context) error {
	admin, err := sql.Open("mysql", e.adminDSN)
	if err != nil {
		return fmt.Errorf("failed to open admin connection: %w", err)
	}
	defer func() { _ = admin.Close() }()

	// KILL QUERY does not accept placeholders; the id is a server-assigned
	// integer captured at connect time.
	if _, err := admin.ExecContext(ctx, killQueryStatement(e.connectionID)); err != nil {
		return fmt.Errorf("failed to kill query on connection %d: %w", e.connectionID, err)
	}

	e.Logger.Debug("query killed", slog.Uint64("connection_id", e.connectionID))
	return nil
}

// ConnectionID returns the server connection id of the dedicated connection.
// Zero before Connect.
func (e *Executor) ConnectionID() uint64 {
	return e.connectionID
}

func killQueryStatement(id uint64) string {
	return fmt.Sprintf("KILL QUERY %d", id)
}

// buildDSN constructs a MySQL DSN using the driver's own config type.
func buildDSN(cfg core.ConnConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := godriver.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", host, port)
	mc.DBName = cfg.Database
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.ParseTime = true
	mc.Timeout = 10 * time.Second

	if cfg.Options != nil {
		if mc.Params == nil {
			mc.Params = make(map[string]string, len(cfg.Options))
		}
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}

	return mc.FormatDSN()
}

// Ensure Executor implements the executor.Executor interface
var _ executor.Executor = (*Executor)(nil)
