package buildlogs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Watcher drives build log streams from a Source into Sessions and keeps the
// last known snapshot per deployment.
type Watcher struct {
	source Source
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last map[string]Snapshot

	wg sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for session lifecycle events. A nil logger
// discards output.
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock sets the time source used for session timestamps.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWatcher creates a Watcher reading from source.
func NewWatcher(source Source, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source: source,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		last:   make(map[string]Snapshot),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe starts a fresh session for deploymentID. It never resumes an
// earlier session; the stream is read from the beginning. The session runs
// until the stream ends, ctx is cancelled, or Session.Cancel is called.
func (w *Watcher) Subscribe(ctx context.Context, deploymentID string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := newSession(deploymentID, cancel, w.now, w.remember)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()
		w.run(ctx, s)
	}()
	return s
}

// Last returns the snapshot of the most recently terminated session for
// deploymentID.
func (w *Watcher) Last(deploymentID string) (Snapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap, ok := w.last[deploymentID]
	return snap, ok
}

// Forget drops the cached snapshot for deploymentID.
func (w *Watcher) Forget(deploymentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.last, deploymentID)
}

// Wait blocks until every session reader has returned.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) remember(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last[snap.DeploymentID] = snap
}

// run is the single reader for s. It owns the stream and closes it on return.
func (w *Watcher) run(ctx context.Context, s *Session) {
	log := w.logger.With("session_id", s.ID(), "deployment_id", s.DeploymentID())
	log.Debug("session started")
	defer func() {
		snap := s.Snapshot()
		log.Debug("session finished", "state", snap.State.String(), "lines", len(snap.Lines))
	}()

	stream, err := w.source.Stream(ctx, s.DeploymentID())
	if err != nil {
		w.fail(ctx, s, log, err)
		return
	}
	defer stream.Close()

	if !s.begin() {
		return
	}

	for {
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			s.finish(endState(stream.State()), nil)
			return
		}
		if err != nil {
			w.fail(ctx, s, log, err)
			return
		}
		msg, ok := rec.(RecordMessage)
		if !ok {
			continue
		}
		if !s.append(msg.Text) {
			// Cancelled between reads; stop without touching the connection again.
			return
		}
	}
}

func (w *Watcher) fail(ctx context.Context, s *Session, log *slog.Logger, err error) {
	if ctx.Err() != nil {
		s.finish(StreamStateClosed, nil)
		return
	}
	log.Warn("log stream failed", "error", err)
	s.finish(StreamStateErrored, err)
}

// endState maps the state a stream reports at io.EOF onto a session state.
// Streams that do not track a terminal state are treated as a clean close.
func endState(state StreamState) StreamState {
	switch state {
	case StreamStateCompleted, StreamStateFailed, StreamStateMalformed:
		return state
	default:
		return StreamStateCompleted
	}
}
