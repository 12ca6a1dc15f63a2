package buildlogs

// StreamState indicates the current state of a Stream or Session.
type StreamState int

const (
	StreamStateIdle      StreamState = iota // Before the first read.
	StreamStateStreaming                    // Connected, receiving lines.
	StreamStateCompleted                    // complete record or clean end of body.
	StreamStateFailed                       // failed record.
	StreamStateMalformed                    // Undecodable line ended the stream.
	StreamStateErrored                      // Transport, network or idle-timeout failure.
	StreamStateClosed                       // Cancelled before a terminal state.
)

var streamStateNames = [...]string{
	StreamStateIdle:      "idle",
	StreamStateStreaming: "streaming",
	StreamStateCompleted: "completed",
	StreamStateFailed:    "failed",
	StreamStateMalformed: "malformed",
	StreamStateErrored:   "errored",
	StreamStateClosed:    "closed",
}

func (s StreamState) String() string {
	if s < 0 || int(s) >= len(streamStateNames) {
		return "unknown"
	}
	return streamStateNames[s]
}

// Terminal reports whether no further lines can be produced in this state.
func (s StreamState) Terminal() bool {
	return s >= StreamStateCompleted
}

// Settled reports whether the stream ended cleanly from the consumer's point
// of view. A malformed line is indistinguishable from a clean end outside of
// this package's state reporting.
func (s StreamState) Settled() bool {
	return s == StreamStateCompleted || s == StreamStateMalformed
}

// Stream uses a pull-based iterator pattern over one build log response.
// Cancellation flows through the context passed to Source.Stream and through
// Close.
//
// Next returns only RecordMessage values. Terminal records are consumed
// internally and reported through State:
//   - StreamStateCompleted, StreamStateFailed, StreamStateMalformed: Next
//     returns io.EOF on this and every later call.
//   - StreamStateErrored: Next returns the terminal error on every later call.
//   - StreamStateClosed: Next returns ErrStreamClosed.
//
// Lines returns the texts of every message decoded so far, in arrival order.
// It remains valid after any terminal state.
type Stream interface {
	Next() (Record, error)
	State() StreamState
	Lines() []string
	Close() error
}
