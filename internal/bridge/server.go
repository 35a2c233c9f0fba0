// Package bridge implements the sqlbridge server: newline-delimited JSON
// framing over a duplex stream, and the orchestrator that binds incoming
// query requests to sessions, drives the engine streaming executors, and
// projects their events onto notifications keyed by session id.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlbridge/internal/session"
	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
)

// ConnectionResolver maps a connection id to connection parameters.
// The parameter store itself is owned elsewhere (configuration, a secrets
// manager); the bridge only consumes it.
type ConnectionResolver interface {
	Resolve(id string) (core.ConnConfig, error)
}

type handlerFunc func(ctx context.Context, id *json.RawMessage, params json.RawMessage)

// Server orchestrates sessions and streaming executions over one transport.
type Server struct {
	transport *Transport
	sessions  *session.Registry
	resolver  ConnectionResolver
	logger    *slog.Logger

	// handlers is the per-instance method dispatch table, built once at
	// construction so dispatch carries no hidden global state.
	handlers map[string]handlerFunc

	// newExecutor is the executor factory; overridable in tests.
	newExecutor func(cfg core.ConnConfig, logger *slog.Logger) (executor.Executor, error)

	// wg tracks in-flight query runs for orderly shutdown.
	wg sync.WaitGroup
}

// NewServer creates a bridge server over the given transport.
// If logger is nil, a discard logger is used.
func NewServer(t *Transport, resolver ConnectionResolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		transport:   t,
		sessions:    session.NewRegistry(logger),
		resolver:    resolver,
		logger:      logger,
		newExecutor: executor.New,
	}
	s.handlers = map[string]handlerFunc{
		MethodCreateSession:  s.handleCreateSession,
		MethodRun:            s.handleRun,
		MethodCancel:         s.handleCancel,
		MethodGetSession:     s.handleGetSession,
		MethodListSessions:   s.handleListSessions,
		MethodDestroySession: s.handleDestroySession,
	}
	return s
}

// Sessions exposes the session registry.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

// Run processes messages until the input stream closes or ctx is done,
// then waits for in-flight query runs to reach their terminal notification.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("bridge server starting", "engines", executor.ListEngines())

	err := s.transport.ReadLoop(ctx, func(msg *Message) {
		s.dispatch(ctx, msg)
	})

	s.wg.Wait()
	s.transport.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// dispatch routes one message through the method table. Unknown request
// methods get an error response; notifications are ignored whether or not
// the method is known, so a missing id can never put `"id":null` replies or
// unacked side effects on the wire.
func (s *Server) dispatch(ctx context.Context, msg *Message) {
	if msg.Method == "" {
		// Not a request or notification we understand; nothing to correlate.
		return
	}

	s.logger.Debug("received", "method", msg.Method, "is_request", msg.IsRequest())

	h, ok := s.handlers[msg.Method]
	if !ok {
		if msg.IsRequest() {
			s.transport.SendError(msg.ID, &RPCError{
				Code:    CodeBadRequest,
				Message: "method not found: " + msg.Method,
			})
		}
		return
	}
	if !msg.IsRequest() {
		// Every bridge method expects a correlated response; a method sent
		// without an id has nothing to reply to and must not run.
		s.logger.Debug("ignoring notification for request-only method", "method", msg.Method)
		return
	}
	h(ctx, msg.ID, msg.Params)
}

// parseParams decodes request params, replying BAD_REQUEST on failure.
func (s *Server) parseParams(id *json.RawMessage, raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.transport.SendError(id, &RPCError{Code: CodeBadRequest, Message: "invalid params: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleCreateSession(_ context.Context, id *json.RawMessage, raw json.RawMessage) {
	var p createSessionParams
	if !s.parseParams(id, raw, &p) {
		return
	}

	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess := s.sessions.Create(sessionID, p.ConnectionID)
	s.transport.SendResponse(id, createSessionResult{Session: sess})
}

func (s *Server) handleRun(ctx context.Context, id *json.RawMessage, raw json.RawMessage) {
	var p runParams
	if !s.parseParams(id, raw, &p) {
		return
	}

	// All BAD_REQUEST checks run before any engine work starts, so a
	// rejected run has zero side effects.
	sess, ok := s.sessions.Get(p.SessionID)
	if !ok {
		s.transport.SendError(id, &RPCError{Code: CodeBadRequest, Message: "unknown session: " + p.SessionID})
		return
	}
	if p.SQL == "" {
		s.transport.SendError(id, &RPCError{Code: CodeBadRequest, Message: "sql must not be empty"})
		return
	}

	connectionID := p.ConnectionID
	if connectionID == "" {
		connectionID = sess.ConnectionID
	}
	if connectionID == "" {
		s.transport.SendError(id, &RPCError{Code: CodeBadRequest, Message: "no connection id for session " + p.SessionID})
		return
	}

	cfg, err := s.resolver.Resolve(connectionID)
	if err != nil {
		s.transport.SendError(id, &RPCError{Code: CodeBadRequest, Message: fmt.Sprintf("failed to resolve connection %q: %v", connectionID, err)})
		return
	}

	exec, err := s.newExecutor(cfg, s.logger.With("session_id", p.SessionID, "engine", cfg.Type))
	if err != nil {
		s.transport.SendError(id, &RPCError{Code: CodeBadRequest, Message: err.Error()})
		return
	}

	// Acknowledge immediately; every outcome is delivered through
	// notifications so the read loop stays responsive to query.cancel
	// while rows stream.
	s.transport.SendResponse(id, runAcceptedResult{SessionID: p.SessionID, Accepted: true})

	s.wg.Add(1)
	go s.runQuery(ctx, exec, p, cfg)
}

// runQuery drives one streaming execution to exactly one terminal
// notification (query.done or query.error). Connection release happens on
// every exit path.
func (s *Server) runQuery(ctx context.Context, exec executor.Executor, p runParams, cfg core.ConnConfig) {
	defer s.wg.Done()

	start := time.Now()
	logger := s.logger.With("session_id", p.SessionID, "engine", cfg.Type)

	rh := newRunHandle()
	cancelGen := s.sessions.RegisterCancel(p.SessionID, rh.Cancel)
	defer s.sessions.ClearCancel(p.SessionID, cancelGen)
	defer func() { _ = exec.Close() }()

	connectCtx, cancelConnect := context.WithCancel(ctx)
	rh.armConnect(cancelConnect)
	err := exec.Connect(connectCtx, cfg)
	cancelConnect()
	if err != nil {
		if rh.Cancelled() {
			logger.Debug("run cancelled while connecting")
			s.sendDone(p.SessionID, 0, start, StatusCancelled)
			return
		}
		logger.Warn("connection failed", "error", err)
		s.sendRunError(p.SessionID, CodeConnectionError, err)
		return
	}

	if rh.Cancelled() {
		// Cancel landed between connect and stream start.
		s.sendDone(p.SessionID, 0, start, StatusCancelled)
		return
	}

	var rowsSoFar int64
	handle, err := exec.StreamQuery(ctx, executor.StreamOptions{
		SQL:       p.SQL,
		BatchSize: p.BatchSize,
		OnBatch: func(rows [][]any, cols []core.Column) error {
			s.transport.SendNotification(NotifyResult, resultParams{
				SessionID: p.SessionID,
				Rows:      rows,
				Columns:   cols,
			})
			rowsSoFar += int64(len(rows))
			s.transport.SendNotification(NotifyProgress, progressParams{
				SessionID: p.SessionID,
				RowsSoFar: rowsSoFar,
				ElapsedMS: time.Since(start).Milliseconds(),
			})
			return nil
		},
	})
	if err != nil {
		logger.Warn("failed to start stream", "error", err)
		s.sendRunError(p.SessionID, CodeEngineError, err)
		return
	}

	if alreadyCancelled := rh.attach(handle); alreadyCancelled {
		_ = handle.Cancel(ctx)
	}

	err = handle.Wait(ctx)

	switch {
	case handle.Cancelled():
		logger.Info("run cancelled", "rows", handle.Rows())
		s.sendDone(p.SessionID, handle.Rows(), start, StatusCancelled)
	case err != nil:
		logger.Warn("run failed", "error", err, "rows", handle.Rows())
		s.sendRunError(p.SessionID, CodeEngineError, err)
	default:
		logger.Info("run completed", "rows", handle.Rows(), "elapsed", time.Since(start))
		s.sendDone(p.SessionID, handle.Rows(), start, StatusSuccess)
	}
}

func (s *Server) sendDone(sessionID string, rows int64, start time.Time, status string) {
	s.transport.SendNotification(NotifyDone, doneParams{
		SessionID: sessionID,
		Rows:      rows,
		TimeMS:    time.Since(start).Milliseconds(),
		Status:    status,
	})
}

func (s *Server) sendRunError(sessionID, code string, err error) {
	s.transport.SendNotification(NotifyError, errorParams{
		SessionID: sessionID,
		Error:     &RPCError{Code: code, Message: err.Error()},
	})
}

func (s *Server) handleCancel(ctx context.Context, id *json.RawMessage, raw json.RawMessage) {
	var p sessionRefParams
	if !s.parseParams(id, raw, &p) {
		return
	}

	cancelled, err := s.sessions.Cancel(ctx, p.SessionID)
	if err != nil {
		s.logger.Warn("cancel reported an error", "session_id", p.SessionID, "error", err)
	}
	s.transport.SendResponse(id, cancelResult{Cancelled: cancelled})
}

func (s *Server) handleGetSession(_ context.Context, id *json.RawMessage, raw json.RawMessage) {
	var p sessionRefParams
	if !s.parseParams(id, raw, &p) {
		return
	}

	sess, ok := s.sessions.Get(p.SessionID)
	if !ok {
		s.transport.SendResponse(id, getSessionResult{Found: false})
		return
	}
	s.transport.SendResponse(id, getSessionResult{Found: true, Session: &sess})
}

func (s *Server) handleListSessions(_ context.Context, id *json.RawMessage, _ json.RawMessage) {
	s.transport.SendResponse(id, listSessionsResult{Sessions: s.sessions.List()})
}

func (s *Server) handleDestroySession(_ context.Context, id *json.RawMessage, raw json.RawMessage) {
	var p sessionRefParams
	if !s.parseParams(id, raw, &p) {
		return
	}

	removed := s.sessions.Remove(p.SessionID)
	s.transport.SendResponse(id, destroySessionResult{Removed: removed})
}

// runHandle tracks the cancellable state of one run across its phases.
// Before the execution handle exists, cancel aborts the connect; afterwards
// it delegates to the handle's two-step cancel.
type runHandle struct {
	mu            sync.Mutex
	cancelConnect context.CancelFunc
	exec          *executor.Execution
	cancelled     bool
}

func newRunHandle() *runHandle {
	return &runHandle{}
}

// Cancel implements session.CancelFunc for the run's current phase.
func (r *runHandle) Cancel(ctx context.Context) error {
	r.mu.Lock()
	r.cancelled = true
	exec := r.exec
	abort := r.cancelConnect
	r.mu.Unlock()

	if exec != nil {
		return exec.Cancel(ctx)
	}
	if abort != nil {
		abort()
	}
	return nil
}

func (r *runHandle) armConnect(cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelConnect = cancel
}

// attach records the execution handle and reports whether a cancel already
// arrived, in which case the caller must cancel the handle itself.
func (r *runHandle) attach(exec *executor.Execution) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec = exec
	return r.cancelled
}

func (r *runHandle) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}
