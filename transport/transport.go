// Package transport defines the contract between the stream pipeline and the
// concrete SSE/WebSocket adapters.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Task describes the work sent to the execution endpoint when a stream is
// opened. The client never interprets the parameters; they pass through.
type Task struct {
	TaskID string            `json:"task_id,omitempty"`
	Query  string            `json:"query"`
	Params map[string]string `json:"params,omitempty"`
	Meta   json.RawMessage   `json:"meta,omitempty"`
}

// Stream is one open connection delivering raw event records in order.
//
// Recv returns the next complete record, io.EOF on natural close, or a
// *Error on transport failure. Implementations must release the underlying
// connection on every exit path; Close is idempotent and safe to call
// concurrently with Recv.
type Stream interface {
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Transport opens one Stream per task invocation. Retry policy lives in the
// caller; a Transport never retries internally.
type Transport interface {
	Open(ctx context.Context, task Task) (Stream, error)
}

// ErrStreamClosed is returned by Recv after Close has been called.
var ErrStreamClosed = errors.New("transport: stream closed")

// Error is a transport-level failure: connection refused, non-2xx status, or
// abrupt socket closure.
type Error struct {
	// StatusCode is the HTTP status for request failures, zero otherwise.
	StatusCode int

	// Message describes the failure, typically the response body excerpt.
	Message string

	// Err wraps the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("transport error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is a transport-level failure.
func IsTransportError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
