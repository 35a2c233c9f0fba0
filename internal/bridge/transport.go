package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// maxParseErrorEcho bounds how much of a malformed line is echoed back in a
// bridge.parse_error notification.
const maxParseErrorEcho = 256

// Transport frames and parses newline-delimited JSON messages over a duplex
// byte stream. It is purely a framing layer: request/response correlation
// belongs to the server.
//
// Every send serializes exactly one JSON object followed by a newline. Sends
// are safe for concurrent use and become no-ops once the underlying stream
// has closed; they never panic after close.
type Transport struct {
	r io.Reader
	w io.Writer

	writeMu sync.Mutex
	closed  bool

	logger *slog.Logger
}

// NewTransport creates a transport over the given reader/writer pair.
// If logger is nil, a discard logger is used.
func NewTransport(r io.Reader, w io.Writer, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transport{r: r, w: w, logger: logger}
}

// ReadLoop reads the input stream line by line, parses each complete line
// independently, and passes well-formed messages to handle. A line that
// fails to parse emits a bridge.parse_error notification and is otherwise
// ignored. The loop returns nil on EOF, or when ctx is done.
func (t *Transport) ReadLoop(ctx context.Context, handle func(*Message)) error {
	reader := bufio.NewReader(t.r)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			t.handleLine(bytes.TrimSpace(line), handle)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				t.logger.Info("client disconnected")
				return nil
			}
			return fmt.Errorf("failed to read input stream: %w", err)
		}
	}
}

func (t *Transport) handleLine(line []byte, handle func(*Message)) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		t.logger.Warn("ignoring malformed input line", "error", err)
		echo := string(line)
		if len(echo) > maxParseErrorEcho {
			echo = echo[:maxParseErrorEcho]
		}
		t.SendNotification(NotifyParseError, parseErrorParams{Error: err.Error(), Line: echo})
		return
	}
	handle(&msg)
}

// SendResponse sends a successful response for the request with the given id.
func (t *Transport) SendResponse(id *json.RawMessage, result any) {
	t.write(response{ID: id, Result: result})
}

// SendError sends an error response for the request with the given id.
func (t *Transport) SendError(id *json.RawMessage, rpcErr *RPCError) {
	t.write(response{ID: id, Error: rpcErr})
}

// SendNotification sends a notification (no id).
func (t *Transport) SendNotification(method string, params any) {
	t.write(notification{Method: method, Params: params})
}

// Close marks the transport closed; subsequent sends are no-ops.
// It does not close the underlying reader or writer.
func (t *Transport) Close() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.closed = true
}

func (t *Transport) write(msg any) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed {
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		t.logger.Error("failed to marshal outgoing message", "error", err)
		return
	}
	body = append(body, '\n')

	if _, err := t.w.Write(body); err != nil {
		// The stream is gone; all further sends become no-ops.
		t.logger.Warn("output stream closed", "error", err)
		t.closed = true
	}
}
