package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// adminCancelTimeout bounds the administrative cancel connection's round-trip
// so a hung cancel attempt cannot wedge the bridge.
const adminCancelTimeout = 5 * time.Second

// State tracks the lifecycle of one streaming execution.
type State int32

// Execution states. Completed and Cancelled are terminal. The connect phase
// is not represented here: an Execution only exists once StreamQuery has
// started, and callers cover cancellation before that point themselves.
const (
	StateCreated State = iota
	StateStreaming
	StateFlushingFinalBatch
	StateCompleted
	StateCancelling
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStreaming:
		return "streaming"
	case StateFlushingFinalBatch:
		return "flushing_final_batch"
	case StateCompleted:
		return "completed"
	case StateCancelling:
		return "cancelling"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Execution is the handle returned by StreamQuery. It owns the completion
// signal and the cancel operation for one in-flight statement.
type Execution struct {
	done chan struct{}
	err  error

	rows      atomic.Int64
	state     atomic.Int32
	cancelled atomic.Bool

	cancelOnce sync.Once

	// abort cancels the streaming context, stopping row production and
	// unblocking the driver. This is the mandatory local teardown step.
	abort context.CancelFunc

	// adminCancel issues the engine's server-side cancel primitive over a
	// short-lived administrative connection. Nil for embedded engines.
	adminCancel func(ctx context.Context) error

	logger *slog.Logger
}

func newExecution(abort context.CancelFunc, adminCancel func(ctx context.Context) error, logger *slog.Logger) *Execution {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Execution{
		done:        make(chan struct{}),
		abort:       abort,
		adminCancel: adminCancel,
		logger:      logger,
	}
	e.state.Store(int32(StateCreated))
	return e
}

// Wait blocks until every row has been delivered and the final batch flushed,
// or until ctx is done. It returns the driver error for failed executions and
// nil for both successful and cancelled ones; use Cancelled to tell the two
// apart.
func (e *Execution) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the execution reaches a terminal state.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Rows reports the number of rows delivered through OnBatch so far.
func (e *Execution) Rows() int64 {
	return e.rows.Load()
}

// State returns the current lifecycle state.
func (e *Execution) State() State {
	return State(e.state.Load())
}

// Cancelled reports whether Cancel was invoked before the execution finished.
func (e *Execution) Cancelled() bool {
	return e.cancelled.Load()
}

// Cancel stops the execution. It first attempts the engine's server-side
// cancel primitive (failures are swallowed), then unconditionally aborts the
// local row stream. Idempotent; a no-op once the execution is terminal.
// It returns once local teardown has begun, not once the remote engine has
// confirmed the statement stopped.
func (e *Execution) Cancel(ctx context.Context) error {
	e.cancelOnce.Do(func() {
		select {
		case <-e.done:
			// Already terminal.
			return
		default:
		}

		e.setState(StateCancelling)
		e.cancelled.Store(true)

		if e.adminCancel != nil {
			actx, cancel := context.WithTimeout(ctx, adminCancelTimeout)
			defer cancel()
			if err := e.adminCancel(actx); err != nil {
				e.logger.Debug("server-side cancel failed, falling back to local abort", "error", err)
			}
		}

		e.abort()
	})
	return nil
}

func (e *Execution) setState(s State) {
	e.state.Store(int32(s))
}

// addRows records rows actually delivered (called after a batch flushes).
func (e *Execution) addRows(n int64) {
	e.rows.Add(n)
}

// finish marks the execution terminal and releases waiters. The cancelled
// flag decides the terminal state; err carries a driver failure, if any.
func (e *Execution) finish(err error) {
	e.err = err
	if e.cancelled.Load() {
		e.setState(StateCancelled)
	} else {
		e.setState(StateCompleted)
	}
	close(e.done)
}
