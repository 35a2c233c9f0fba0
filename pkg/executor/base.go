package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

// BaseSQLExecutor provides the common database/sql streaming machinery for
// executors. Embed this struct in concrete engine implementations; engines
// supply Connect (which must set DB and Conn) and, where the engine has one,
// an AdminCancel func wired to its server-side cancel primitive.
type BaseSQLExecutor struct {
	// DB is the pool opened by the engine's Connect.
	DB *sql.DB

	// Conn is the dedicated connection pinned for this execution's lifetime.
	Conn *sql.Conn

	Cfg    core.ConnConfig
	Logger *slog.Logger

	// AdminCancel, when set by the engine, issues a best-effort server-side
	// termination of this execution's statement over a short-lived
	// administrative connection. Its failures never fail the overall cancel.
	AdminCancel func(ctx context.Context) error
}

// Pin acquires the dedicated connection from the pool and verifies it.
// Engines call this from Connect after opening the pool.
func (b *BaseSQLExecutor) Pin(ctx context.Context, db *sql.DB, cfg core.ConnConfig) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	b.DB = db
	b.Conn = conn
	b.Cfg = cfg
	return nil
}

// Close releases the pinned connection and the pool. Safe to call more than
// once and on every exit path.
func (b *BaseSQLExecutor) Close() error {
	if b.Conn != nil {
		if b.Logger != nil {
			b.Logger.Debug("releasing dedicated connection")
		}
		_ = b.Conn.Close()
		b.Conn = nil
	}
	if b.DB != nil {
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// IsConnected returns true if a dedicated connection is pinned.
func (b *BaseSQLExecutor) IsConnected() bool {
	return b.Conn != nil
}

// StreamQuery starts the statement on the pinned connection and returns an
// Execution handle. Rows are delivered through opts.OnBatch in bounded
// batches; production pauses while each batch flushes.
func (b *BaseSQLExecutor) StreamQuery(ctx context.Context, opts StreamOptions) (*Execution, error) {
	if b.Conn == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if opts.OnBatch == nil {
		return nil, fmt.Errorf("OnBatch callback is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	streamCtx, abort := context.WithCancel(ctx)
	exec := newExecution(abort, b.AdminCancel, b.Logger)

	go b.stream(streamCtx, abort, exec, opts)

	return exec, nil
}

// stream drives one execution to a terminal state. It always releases the
// streaming context; the connection itself is released by Close, which the
// caller runs on every exit path.
func (b *BaseSQLExecutor) stream(ctx context.Context, abort context.CancelFunc, exec *Execution, opts StreamOptions) {
	defer abort()

	exec.setState(StateStreaming)
	start := time.Now()

	err := b.streamRows(ctx, exec, opts)

	if exec.Cancelled() {
		// A cooperative stop is not an error; the driver abort surfaces as a
		// context cancellation which we discard here.
		if b.Logger != nil {
			b.Logger.Debug("query cancelled", "rows_delivered", exec.Rows(), "elapsed", time.Since(start))
		}
		exec.finish(nil)
		return
	}

	if err != nil {
		exec.finish(err)
		return
	}

	if b.Logger != nil {
		b.Logger.Debug("query completed", "rows", exec.Rows(), "elapsed", time.Since(start))
	}
	exec.finish(nil)
}

func (b *BaseSQLExecutor) streamRows(ctx context.Context, exec *Execution, opts StreamOptions) error {
	//nolint:rowserrcheck // rows.Err() is checked after the iteration loop
	rows, err := b.Conn.QueryContext(ctx, opts.SQL)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Column descriptors are captured exactly once and reused for every batch.
	cols, err := describeColumns(rows)
	if err != nil {
		return fmt.Errorf("failed to describe result columns: %w", err)
	}

	batch := make([][]any, 0, opts.BatchSize)

	flush := func() error {
		if err := opts.OnBatch(batch, cols); err != nil {
			return fmt.Errorf("batch callback failed: %w", err)
		}
		exec.addRows(int64(len(batch)))
		// Fresh backing array: forwarded batches are never reused.
		batch = make([][]any, 0, opts.BatchSize)
		return nil
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		batch = append(batch, normalizeRow(values))

		if len(batch) == opts.BatchSize {
			// Backpressure checkpoint: the driver does not advance until the
			// batch has been flushed through the callback.
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("query stream failed: %w", err)
	}

	if len(batch) > 0 {
		exec.setState(StateFlushingFinalBatch)
		if err := flush(); err != nil {
			return err
		}
	}

	if opts.OnDone != nil {
		opts.OnDone()
	}
	return nil
}

// describeColumns builds the column descriptor set from the result metadata.
func describeColumns(rows *sql.Rows) ([]core.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]core.Column, len(types))
	for i, ct := range types {
		nullable, _ := ct.Nullable()
		cols[i] = core.Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
			Position: i + 1,
		}
	}
	return cols, nil
}

// normalizeRow converts driver values into JSON-friendly representations.
func normalizeRow(values []any) []any {
	for i, v := range values {
		switch t := v.(type) {
		case []byte:
			// Raw bytes would serialize as base64; callers expect text.
			values[i] = string(t)
		case time.Time:
			values[i] = t.Format(time.RFC3339Nano)
		}
	}
	return values
}
