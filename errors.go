package buildlogs

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates an argument failed validation.
	ErrValidation = errors.New("validation error")

	// ErrNoBody indicates a successful response carried no readable body.
	ErrNoBody = errors.New("response has no body")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrIdleTimeout indicates no data arrived within the configured idle
	// duration.
	ErrIdleTimeout = errors.New("idle timeout waiting for log data")

	// ErrUnknownRecord indicates a line parsed as JSON but matched no known
	// record shape.
	ErrUnknownRecord = errors.New("unrecognized record")
)

// TransportError is returned when the server answers with a non-2xx status.
type TransportError struct {
	StatusCode int
	Detail     string // server-provided detail, may be empty
}

func (e *TransportError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

// NetworkError wraps a connection failure, either while connecting or while
// reading the body.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a line that could not be turned into a Record.
// Streams swallow it and settle into StreamStateMalformed.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
