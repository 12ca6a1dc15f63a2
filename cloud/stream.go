package cloud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/fastapicloud/buildlogs"
	"github.com/fastapicloud/buildlogs/ndjson"
)

// stream implements [buildlogs.Stream] over an NDJSON HTTP response body.
type stream struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	body   io.ReadCloser
	reader *ndjson.Reader
	idle   *idleTimer
	logger *slog.Logger

	state buildlogs.StreamState
	lines []string
	err   error // terminal error, if any

	closeOnce sync.Once
	closeErr  error
}

// Interface compliance check.
var _ buildlogs.Stream = (*stream)(nil)

func newStream(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser, idle *idleTimer, chunkSize int, logger *slog.Logger) *stream {
	s := &stream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		idle:   idle,
		logger: logger,
		state:  buildlogs.StreamStateIdle,
	}
	s.reader = ndjson.NewReader(&idleReader{r: body, idle: idle}, chunkSize)
	return s
}

// Next reads the next log message. It returns io.EOF once a complete or
// failed record, an undecodable line, or the end of the body is reached.
func (s *stream) Next() (buildlogs.Record, error) {
	switch s.state {
	case buildlogs.StreamStateCompleted, buildlogs.StreamStateFailed, buildlogs.StreamStateMalformed:
		return nil, io.EOF
	case buildlogs.StreamStateErrored:
		return nil, s.err
	case buildlogs.StreamStateClosed:
		return nil, buildlogs.ErrStreamClosed
	}

	s.state = buildlogs.StreamStateStreaming

	rec, err := s.reader.Next()
	if err != nil {
		return nil, s.terminate(err)
	}

	switch r := rec.(type) {
	case buildlogs.RecordMessage:
		s.lines = append(s.lines, r.Text)
		return r, nil
	case buildlogs.RecordComplete:
		s.settle(buildlogs.StreamStateCompleted)
		return nil, io.EOF
	case buildlogs.RecordFailed:
		s.settle(buildlogs.StreamStateFailed)
		return nil, io.EOF
	default:
		// Decode only produces the variants above.
		s.settle(buildlogs.StreamStateMalformed)
		return nil, io.EOF
	}
}

// State returns the current stream state.
func (s *stream) State() buildlogs.StreamState {
	return s.state
}

// Lines returns the messages read so far.
func (s *stream) Lines() []string {
	lines := make([]string, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// Close releases the connection. Closing before a terminal state moves the
// stream to StreamStateClosed.
func (s *stream) Close() error {
	if !s.state.Terminal() {
		s.state = buildlogs.StreamStateClosed
	}
	return s.release()
}

// terminate maps a reader error onto a terminal state and returns the error
// Next should report.
func (s *stream) terminate(err error) error {
	var decErr *buildlogs.DecodeError
	switch {
	case errors.Is(err, io.EOF):
		s.settle(buildlogs.StreamStateCompleted)
		return io.EOF
	case errors.As(err, &decErr):
		s.logger.Debug("undecodable line ends build log stream", "line", decErr.Line, "error", decErr.Err)
		s.settle(buildlogs.StreamStateMalformed)
		return io.EOF
	default:
		s.state = buildlogs.StreamStateErrored
		s.err = networkError(s.ctx, err)
		s.release()
		return s.err
	}
}

// settle records a clean terminal state. Bytes after a terminal record are
// never read.
func (s *stream) settle(state buildlogs.StreamState) {
	s.state = state
	s.logger.Debug("build log stream ended", "state", state.String(), "lines", len(s.lines))
	s.release()
}

func (s *stream) release() error {
	s.closeOnce.Do(func() {
		s.idle.stop()
		s.closeErr = s.body.Close()
		s.cancel(nil)
	})
	return s.closeErr
}

// idleReader re-arms the idle timer after every read that returned data.
type idleReader struct {
	r    io.Reader
	idle *idleTimer
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.idle.reset()
	}
	return n, err
}
