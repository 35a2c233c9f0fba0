// Package executor defines the streaming query execution contract that all
// engine implementations must satisfy.
//
// An Executor runs exactly one statement over one dedicated connection:
// Connect pins the connection (and captures the engine's server-side session
// identifier where one exists), StreamQuery delivers rows in bounded batches
// through a caller-supplied callback, and the returned Execution handle
// supports asynchronous cancellation with best-effort server-side
// termination followed by mandatory local teardown.
//
// Concrete engine implementations are in pkg/executors/ subdirectories and
// register themselves with this package's factory registry via init().
package executor

import (
	"context"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

// DefaultBatchSize is used when StreamOptions.BatchSize is zero or negative.
const DefaultBatchSize = 1000

// BatchFunc receives one batch of rows together with the column descriptors
// for the execution. Row production is paused while the callback runs and
// resumes only after it returns, which bounds memory use under a slow
// consumer. Returning an error aborts the stream.
type BatchFunc func(rows [][]any, cols []core.Column) error

// StreamOptions configures one streaming execution.
type StreamOptions struct {
	// SQL is the statement to execute.
	SQL string

	// BatchSize is the maximum number of rows per batch.
	// Zero or negative selects DefaultBatchSize.
	BatchSize int

	// OnBatch is invoked for every batch, including the final partial one.
	// Required.
	OnBatch BatchFunc

	// OnDone, if set, runs after the last batch has been flushed on natural
	// completion. It does not run on error or cancellation.
	OnDone func()
}

// Executor is the contract implemented by every engine.
type Executor interface {
	// Connect opens the database and pins the dedicated connection that the
	// subsequent StreamQuery will use. Engines with a server-side cancel
	// primitive capture their session identifier here, on that same
	// connection.
	Connect(ctx context.Context, cfg core.ConnConfig) error

	// StreamQuery starts the statement asynchronously and returns an
	// Execution handle. It is invoked at most once per Executor.
	StreamQuery(ctx context.Context, opts StreamOptions) (*Execution, error)

	// Close releases the pinned connection and the underlying pool.
	// Safe to call on every exit path, including after cancellation.
	Close() error
}
