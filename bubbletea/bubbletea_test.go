package bubbletea_test

import (
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fastapicloud/buildlogs"
	bt "github.com/fastapicloud/buildlogs/bubbletea"
	"github.com/fastapicloud/buildlogs/mock"
	"github.com/stretchr/testify/require"
)

const testDeploymentID = "0b6f6c43-2f1a-4b8e-9a52-6c1f3d9a7e11"

// watcherOf returns a Watcher whose every session reads a stream built by
// newStream.
func watcherOf(newStream func(ctx context.Context) buildlogs.Stream) *buildlogs.Watcher {
	return buildlogs.NewWatcher(&mock.Source{
		StreamFn: func(ctx context.Context, deploymentID string) (buildlogs.Stream, error) {
			return newStream(ctx), nil
		},
	})
}

// recordsWatcher serves the same records to every session.
func recordsWatcher(recs ...buildlogs.Record) *buildlogs.Watcher {
	return watcherOf(func(context.Context) buildlogs.Stream { return mock.Records(recs...) })
}

// feedStream returns a stream driven by the test through ch. Closing ch
// ends the stream cleanly.
func feedStream(ctx context.Context, ch <-chan buildlogs.Record) buildlogs.Stream {
	return &mock.Stream{
		NextFn: func() (buildlogs.Record, error) {
			select {
			case rec, ok := <-ch:
				if !ok {
					return nil, io.EOF
				}
				return rec, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, sub bt.Subscriber, opts ...bt.Option) bt.Model {
	t.Helper()
	return initModelWithSize(t, sub, 80, 24, opts...)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, sub bt.Subscriber, width, height int, opts ...bt.Option) bt.Model {
	t.Helper()
	m := bt.New(sub, testDeploymentID, buildlogs.DefaultTheme(), opts...)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// startFinished subscribes through w, waits for the session to end and
// delivers it to m.
func startFinished(t *testing.T, m bt.Model, w *buildlogs.Watcher) bt.Model {
	t.Helper()
	s := w.Subscribe(context.Background(), testDeploymentID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Wait(ctx)
	require.NoError(t, err)
	return updateModel(t, m, bt.SessionStartedMsg{Session: s})
}

// startedSession runs cmd, which may be a batch, and returns the session it
// subscribed.
func startedSession(t *testing.T, cmd tea.Cmd) *buildlogs.Session {
	t.Helper()
	require.NotNil(t, cmd)
	msgs := []tea.Msg{cmd()}
	if batch, ok := msgs[0].(tea.BatchMsg); ok {
		msgs = msgs[:0]
		for _, c := range batch {
			if c != nil {
				msgs = append(msgs, c())
			}
		}
	}
	for _, msg := range msgs {
		if started, ok := msg.(bt.SessionStartedMsg); ok {
			return started.Session
		}
	}
	t.Fatal("command did not start a session")
	return nil
}
