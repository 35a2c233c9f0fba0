// Package postgres provides a PostgreSQL streaming executor for sqlbridge.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
)

// Executor implements the executor.Executor interface for PostgreSQL.
//
// The server-side cancel primitive is pg_cancel_backend: at connect time the
// backend process id of the dedicated connection is captured, and a cancel
// request opens a short-lived administrative connection that asks the server
// to interrupt that specific backend.
type Executor struct {
	executor.BaseSQLExecutor

	backendPID int
	adminDSN   string
}

// New creates a new PostgreSQL executor instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		BaseSQLExecutor: executor.BaseSQLExecutor{Logger: logger},
	}
}

// Connect establishes the dedicated PostgreSQL connection and captures its
// backend pid for later cancellation.
func (e *Executor) Connect(ctx context.Context, cfg core.ConnConfig) error {
	dsn := buildDSN(cfg)

	e.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := e.Pin(ctx, db, cfg); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	var pid int
	if err := e.Conn.QueryRowContext(ctx, "SELECT pg_backend_pid()").Scan(&pid); err != nil {
		_ = e.Close()
		return fmt.Errorf("failed to read backend pid: %w", err)
	}

	e.backendPID = pid
	e.adminDSN = dsn
	e.AdminCancel = e.cancelBackend
	e.Logger.Debug("postgres connection established", slog.Int("backend_pid", pid))
	return nil
}

// cancelBackend opens a short-lived administrative connection and asks the
// server to interrupt the captured backend process.
func (e *Executor) cancelBackend(ctx context.Context) error {
	admin, err := sql.Open("pgx", e.adminDSN)
	if err != nil {
		return fmt.Errorf("failed to open admin connection: %w", err)
	}
	defer func() { _ = admin.Close() }()

	var ok bool
	if err := admin.QueryRowContext(ctx, "SELECT pg_cancel_backend($1)", e.backendPID).Scan(&ok); err != nil {
		return fmt.Errorf("failed to cancel backend %d: %w", e.backendPID, err)
	}
	if !ok {
		return fmt.Errorf("backend %d was not cancelled (already gone?)", e.backendPID)
	}

	e.Logger.Debug("backend cancelled", slog.Int("backend_pid", e.backendPID))
	return nil
}

// BackendPID returns the server process id of the dedicated connection.
// Zero before Connect.
func (e *Executor) BackendPID() int {
	return e.backendPID
}

// buildDSN constructs a PostgreSQL connection string in key=value format.
func buildDSN(cfg core.ConnConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// Ensure Executor implements the executor.Executor interface
var _ executor.Executor = (*Executor)(nil)
