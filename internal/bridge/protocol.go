package bridge

import (
	"encoding/json"

	"github.com/leapstack-labs/sqlbridge/internal/session"
	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

// Message is one incoming newline-delimited JSON message. Requests carry an
// id; notifications do not. The distinction is made purely by the presence
// of the id field.
type Message struct {
	ID     *json.RawMessage `json:"id,omitempty"`
	Method string           `json:"method,omitempty"`
	Params json.RawMessage  `json:"params,omitempty"`
}

// IsRequest reports whether the message expects a response.
func (m *Message) IsRequest() bool {
	return m.ID != nil
}

// response is an outgoing reply to a request.
type response struct {
	ID     *json.RawMessage `json:"id"`
	Result any              `json:"result,omitempty"`
	Error  *RPCError        `json:"error,omitempty"`
}

// notification is an outgoing message with no id.
type notification struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// RPCError is the wire shape of a request failure.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Code + ": " + e.Message
}

// Error codes. BAD_REQUEST guarantees zero side effects; CONNECTION_ERROR
// guarantees zero rows were delivered; ENGINE_ERROR may follow delivered
// batches, which are not retracted. Cancellation is never an error: it is
// reported as a terminal done with status "cancelled".
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeConnectionError = "CONNECTION_ERROR"
	CodeEngineError     = "ENGINE_ERROR"
	CodeParseError      = "PARSE_ERROR"
)

// Run statuses carried by the terminal query.done notification.
const (
	StatusSuccess   = "success"
	StatusCancelled = "cancelled"
)

// Method and notification names.
const (
	MethodCreateSession  = "query.createSession"
	MethodRun            = "query.run"
	MethodCancel         = "query.cancel"
	MethodGetSession     = "query.getSession"
	MethodListSessions   = "query.listSessions"
	MethodDestroySession = "query.destroySession"

	NotifyResult     = "query.result"
	NotifyProgress   = "query.progress"
	NotifyDone       = "query.done"
	NotifyError      = "query.error"
	NotifyParseError = "bridge.parse_error"
)

// --- Request parameter shapes ---

type createSessionParams struct {
	SessionID    string `json:"sessionId,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
}

type runParams struct {
	SessionID    string `json:"sessionId"`
	ConnectionID string `json:"connectionId"`
	SQL          string `json:"sql"`
	BatchSize    int    `json:"batchSize,omitempty"`
}

type sessionRefParams struct {
	SessionID string `json:"sessionId"`
}

// --- Response result shapes ---

type createSessionResult struct {
	Session session.Session `json:"session"`
}

type runAcceptedResult struct {
	SessionID string `json:"sessionId"`
	Accepted  bool   `json:"accepted"`
}

type cancelResult struct {
	Cancelled bool `json:"cancelled"`
}

type getSessionResult struct {
	Found   bool             `json:"found"`
	Session *session.Session `json:"session,omitempty"`
}

type listSessionsResult struct {
	Sessions []session.Session `json:"sessions"`
}

type destroySessionResult struct {
	Removed bool `json:"removed"`
}

// --- Notification payload shapes ---

type resultParams struct {
	SessionID string        `json:"sessionId"`
	Rows      [][]any       `json:"rows"`
	Columns   []core.Column `json:"columns"`
}

type progressParams struct {
	SessionID string `json:"sessionId"`
	RowsSoFar int64  `json:"rowsSoFar"`
	ElapsedMS int64  `json:"elapsedMs"`
}

type doneParams struct {
	SessionID string `json:"sessionId"`
	Rows      int64  `json:"rows"`
	TimeMS    int64  `json:"timeMs"`
	Status    string `json:"status"`
}

type errorParams struct {
	SessionID string    `json:"sessionId"`
	Error     *RPCError `json:"error"`
}

type parseErrorParams struct {
	Error string `json:"error"`
	Line  string `json:"line,omitempty"`
}
