package mock

import "github.com/fastapicloud/buildlogs"

// Interface compliance check.
var _ buildlogs.Stream = (*Stream)(nil)

// Stream is a test double for buildlogs.Stream.
// Set the function fields for the methods you need. NextFn panics when nil
// to catch missing setup. StateFn, LinesFn and CloseFn are nil-safe (zero
// value, nil and no-op) because consumers commonly call them without the
// test caring about the result.
type Stream struct {
	NextFn  func() (buildlogs.Record, error)
	StateFn func() buildlogs.StreamState
	LinesFn func() []string
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (buildlogs.Record, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateIdle when StateFn is nil.
func (s *Stream) State() buildlogs.StreamState {
	if s.StateFn == nil {
		return buildlogs.StreamStateIdle
	}
	return s.StateFn()
}

// Lines delegates to LinesFn. Returns nil when LinesFn is nil.
func (s *Stream) Lines() []string {
	if s.LinesFn == nil {
		return nil
	}
	return s.LinesFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
