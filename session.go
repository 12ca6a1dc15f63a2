package buildlogs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	SessionID    string
	DeploymentID string
	Lines        []string
	State        StreamState
	Err          error // transport failure, nil unless State is StreamStateErrored
	StartedAt    time.Time
	FinishedAt   time.Time // zero until State is terminal
}

// Session is one subscription to a deployment's log stream, from request to
// termination or cancellation. Lines only grow, in arrival order, and stop
// growing once the session is terminal. All methods are safe for concurrent
// use.
type Session struct {
	id           string
	deploymentID string
	cancel       context.CancelFunc
	now          func() time.Time
	onFinish     func(Snapshot)

	mu         sync.Mutex
	lines      []string
	state      StreamState
	err        error
	startedAt  time.Time
	finishedAt time.Time
	changed    chan struct{}
	done       chan struct{}
}

func newSession(deploymentID string, cancel context.CancelFunc, now func() time.Time, onFinish func(Snapshot)) *Session {
	return &Session{
		id:           uuid.NewString(),
		deploymentID: deploymentID,
		cancel:       cancel,
		now:          now,
		onFinish:     onFinish,
		state:        StreamStateIdle,
		startedAt:    now(),
		changed:      make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// ID returns the unique identifier of this session.
func (s *Session) ID() string { return s.id }

// DeploymentID returns the deployment this session streams.
func (s *Session) DeploymentID() string { return s.deploymentID }

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(0)
}

// SnapshotFrom is Snapshot with Lines holding only the lines from offset on.
// Consumers that remember how many lines they have seen use it to avoid
// copying the whole log on every change. offset is clamped to [0, Len()].
func (s *Session) SnapshotFrom(offset int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(offset)
}

func (s *Session) snapshotLocked(offset int) Snapshot {
	offset = min(max(offset, 0), len(s.lines))
	lines := make([]string, len(s.lines)-offset)
	copy(lines, s.lines[offset:])
	return Snapshot{
		SessionID:    s.id,
		DeploymentID: s.deploymentID,
		Lines:        lines,
		State:        s.state,
		Err:          s.err,
		StartedAt:    s.startedAt,
		FinishedAt:   s.finishedAt,
	}
}

// Lines returns a copy of the lines received so far.
func (s *Session) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// Len returns the number of lines received so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// State returns the current lifecycle state.
func (s *Session) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the transport failure that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done returns a channel that is closed once the session is terminal.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Changed returns a channel that is closed on the next append or state
// change. Call it again after each notification to keep listening.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Cancel stops the session and releases its connection. Lines received so
// far remain visible. Cancel is idempotent and has no effect on a session
// that is already terminal.
func (s *Session) Cancel() {
	s.finish(StreamStateClosed, nil)
	s.cancel()
}

// Wait blocks until the session is terminal or ctx is done.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// begin moves an idle session to streaming. It returns false if the session
// was cancelled in the meantime.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = StreamStateStreaming
	s.notifyLocked()
	return true
}

// append adds a line unless the session is terminal.
func (s *Session) append(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.lines = append(s.lines, text)
	s.notifyLocked()
	return true
}

// finish records the terminal state. Only the first call has any effect.
func (s *Session) finish(state StreamState, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = state
	s.err = err
	s.finishedAt = s.now()
	if s.onFinish != nil {
		s.onFinish(s.snapshotLocked(0))
	}
	s.notifyLocked()
	close(s.done)
	return true
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
