// Package session provides the in-memory registry that maps caller-visible
// session ids to their metadata and, while a query is running, the
// cancellation handle for that operation.
//
// The registry holds only the cancel function, never the full execution
// handle, so it stays decoupled from executor internals. A session with no
// registered handle is idle.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// CancelFunc cancels the live operation registered for a session.
// It blocks until local teardown of the operation has begun.
type CancelFunc func(ctx context.Context) error

// Session is the caller-visible view of one registered session.
type Session struct {
	ID           string    `json:"sessionId"`
	ConnectionID string    `json:"connectionId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Active       bool      `json:"active"`
}

type entry struct {
	session Session
	cancel  CancelFunc

	// gen counts handle registrations; ClearCancel only disarms when its
	// token matches, so a finished run cannot disarm a successor's handle.
	gen uint64
}

// Registry is the mutex-guarded mapping from session id to session state.
// It is the only mutable state shared across concurrent operations; every
// mutating operation completes under the lock with no blocking calls, so no
// half-updated entry is ever observable. The registered cancel function is
// invoked outside the lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	logger   *slog.Logger
}

// NewRegistry creates an empty session registry.
// If logger is nil, a discard logger is used.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		sessions: make(map[string]*entry),
		logger:   logger,
	}
}

// Create registers a session under id, overwriting any prior session with
// the same id. It always succeeds and returns the caller-visible view.
func (r *Registry) Create(id, connectionID string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Session{
		ID:           id,
		ConnectionID: connectionID,
		CreatedAt:    time.Now().UTC(),
	}
	r.sessions[id] = &entry{session: s}
	r.logger.Debug("session created", "session_id", id, "connection_id", connectionID)
	return s
}

// Get returns a snapshot of the session, if present.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return r.snapshot(e), true
}

// Remove deletes a session. Idempotent: returns true only if a session
// existed and was removed. It does not cancel a live operation; callers
// destroy sessions after observing a terminal notification.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	r.logger.Debug("session removed", "session_id", id)
	return true
}

// List returns a snapshot of all sessions, ordered by id.
func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, r.snapshot(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RegisterCancel attaches the cancellation handle for a session, replacing
// any prior handle, and returns the registration token to pass to
// ClearCancel. A no-op returning zero if the session does not exist. The
// registry does not serialize overlapping runs per session; replacement
// means the newest run owns the session's cancel.
func (r *Registry) RegisterCancel(id string, cancel CancelFunc) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return 0
	}
	e.gen++
	e.cancel = cancel
	return e.gen
}

// ClearCancel disarms the session's cancellation handle, if gen still names
// the current registration. Called after a run reaches its terminal
// notification; a stale token is a no-op, so a slow run clearing up after
// itself never disarms a handle a newer run has since registered.
func (r *Registry) ClearCancel(id string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok && e.gen == gen {
		e.cancel = nil
	}
}

// Cancel invokes the session's registered cancellation handle, awaiting its
// completion, and reports whether a live operation existed. The handle is
// disarmed before invocation, so a second Cancel is a no-op returning false
// until a new operation registers a handle. An error returned by the handle
// propagates to the caller but never corrupts registry state: the entry is
// still considered cancel-attempted.
func (r *Registry) Cancel(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || e.cancel == nil {
		r.mu.Unlock()
		return false, nil
	}
	cancel := e.cancel
	e.cancel = nil
	r.mu.Unlock()

	r.logger.Debug("cancelling session operation", "session_id", id)
	if err := cancel(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// snapshot builds the caller-visible view. Callers must hold r.mu.
func (r *Registry) snapshot(e *entry) Session {
	s := e.session
	s.Active = e.cancel != nil
	return s
}
