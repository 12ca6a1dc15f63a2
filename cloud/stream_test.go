package cloud_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fastapicloud/buildlogs"
	"github.com/fastapicloud/buildlogs/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDeploymentID = "0b6f6c43-2f1a-4b8e-9a52-6c1f3d9a7e11"

// ndjsonResponse is a helper to build chunked NDJSON responses for tests.
// Each chunk is written and flushed separately.
type ndjsonResponse struct {
	chunks []string
	// abort drops the connection after the last chunk instead of ending the
	// body cleanly.
	abort bool
	// hold keeps the response open after the last chunk until the client
	// goes away.
	hold bool
}

func (n ndjsonResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, c := range n.chunks {
			_, _ = io.WriteString(w, c)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if n.abort {
			panic(http.ErrAbortHandler)
		}
		if n.hold {
			<-r.Context().Done()
		}
	}
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func streamFrom(t *testing.T, resp ndjsonResponse, opts ...cloud.Option) buildlogs.Stream {
	t.Helper()
	srv := newServer(t, resp.handler())
	opts = append([]cloud.Option{cloud.WithBaseURL(srv.URL)}, opts...)
	client := cloud.New("test-token", opts...)
	s, err := client.Stream(context.Background(), testDeploymentID)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// collect drains s and returns the message texts and the final error.
func collect(t *testing.T, s buildlogs.Stream) ([]string, error) {
	t.Helper()
	var texts []string
	for {
		rec, err := s.Next()
		if err != nil {
			return texts, err
		}
		msg, ok := rec.(buildlogs.RecordMessage)
		require.True(t, ok, "Next returned %T", rec)
		texts = append(texts, msg.Text)
	}
}

func TestStream_Messages(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		"{\"message\":\"Building image\",\"type\":\"message\"}\n",
		"{\"message\":\"Step 1/3\"}\n{\"message\":\"Step 2/3\"}\n",
		"{\"message\":\"Step 3/3\"}\n",
		"{\"type\":\"complete\"}\n",
	}})

	assert.Equal(t, buildlogs.StreamStateIdle, s.State())
	texts, err := collect(t, s)

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"Building image", "Step 1/3", "Step 2/3", "Step 3/3"}, texts)
	assert.Equal(t, texts, s.Lines())
	assert.Equal(t, buildlogs.StreamStateCompleted, s.State())
}

func TestStream_LineSplitAcrossChunks(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		`{"message":"a`,
		"\"}\n{\"message\":\"b\"}\n",
	}})

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"a", "b"}, texts)
	assert.Equal(t, buildlogs.StreamStateCompleted, s.State())
}

func TestStream_TerminalRecordStopsReading(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		"{\"message\":\"one\"}\n{\"type\":\"complete\"}\n{\"message\":\"after\"}\n",
		"{\"message\":\"later\"}\n",
	}})

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"one"}, texts)

	// Terminal state is sticky.
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"one"}, s.Lines())
}

func TestStream_FailedRecord(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		"{\"message\":\"ERROR: could not find requirements.txt\"}\n{\"type\":\"failed\"}\n",
	}})

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"ERROR: could not find requirements.txt"}, texts)
	assert.Equal(t, buildlogs.StreamStateFailed, s.State())
	assert.False(t, s.State().Settled())
}

func TestStream_EndWithoutTerminalRecord(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		"{\"message\":\"a\"}\n",
		"{\"message\":\"b\"}",
	}})

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"a", "b"}, texts)
	assert.Equal(t, buildlogs.StreamStateCompleted, s.State())
}

func TestStream_MalformedLine(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		"{\"message\":\"a\"}\n{\"message\":\"b\"}\n",
		"not-json\n{\"message\":\"c\"}\n",
	}})

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"a", "b"}, texts)
	assert.Equal(t, buildlogs.StreamStateMalformed, s.State())
	assert.True(t, s.State().Settled())
}

func TestStream_UnknownRecordType(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		"{\"message\":\"a\"}\n{\"type\":\"progress\",\"percent\":50}\n{\"message\":\"b\"}\n",
	}})

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"a"}, texts)
	assert.Equal(t, buildlogs.StreamStateMalformed, s.State())
}

func TestStream_BlankLines(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{
		"\n\n{\"message\":\"a\"}\n   \n",
		"\t\n{\"message\":\"b\"}\n\n",
	}})

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"a", "b"}, texts)
	assert.Equal(t, buildlogs.StreamStateCompleted, s.State())
}

func TestStream_ConnectionDropped(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{
		chunks: []string{"{\"message\":\"a\"}\n{\"message\":\"b\"}\n{\"mess"},
		abort:  true,
	})

	texts, err := collect(t, s)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	var netErr *buildlogs.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, []string{"a", "b"}, texts)
	assert.Equal(t, buildlogs.StreamStateErrored, s.State())
	assert.Equal(t, []string{"a", "b"}, s.Lines())

	// The error is sticky.
	_, again := s.Next()
	assert.Equal(t, err, again)
}

func TestStream_IdleTimeout(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{
		chunks: []string{"{\"message\":\"waiting for builder\"}\n"},
		hold:   true,
	}, cloud.WithIdleTimeout(50*time.Millisecond))

	texts, err := collect(t, s)
	assert.ErrorIs(t, err, buildlogs.ErrIdleTimeout)
	var netErr *buildlogs.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, []string{"waiting for builder"}, texts)
	assert.Equal(t, buildlogs.StreamStateErrored, s.State())
}

func TestStream_ContextCancelled(t *testing.T) {
	t.Parallel()
	srv := newServer(t, ndjsonResponse{
		chunks: []string{"{\"message\":\"a\"}\n"},
		hold:   true,
	}.handler())
	client := cloud.New("test-token", cloud.WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	s, err := client.Stream(ctx, testDeploymentID)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, buildlogs.RecordMessage{Text: "a"}, rec)

	cancel()
	_, err = s.Next()
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, buildlogs.ErrIdleTimeout)
	assert.Equal(t, buildlogs.StreamStateErrored, s.State())
	assert.Equal(t, []string{"a"}, s.Lines())
}

func TestStream_Close(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{
		chunks: []string{"{\"message\":\"a\"}\n"},
		hold:   true,
	})

	_, err := s.Next()
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, buildlogs.StreamStateClosed, s.State())

	_, err = s.Next()
	assert.ErrorIs(t, err, buildlogs.ErrStreamClosed)
	assert.Equal(t, []string{"a"}, s.Lines())

	// Close is idempotent.
	assert.NoError(t, s.Close())
}

func TestStream_CloseAfterCompleteKeepsState(t *testing.T) {
	t.Parallel()
	s := streamFrom(t, ndjsonResponse{chunks: []string{"{\"type\":\"complete\"}\n"}})

	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, s.Close())
	assert.Equal(t, buildlogs.StreamStateCompleted, s.State())
}

func TestClient_StreamRequest(t *testing.T) {
	t.Parallel()

	reqs := make(chan *http.Request, 1)
	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, "{\"type\":\"complete\"}\n")
	}))

	client := cloud.New("secret-token", cloud.WithBaseURL(srv.URL+"/"), cloud.WithUserAgent("buildlogs-test"))
	s, err := client.Stream(context.Background(), testDeploymentID)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)

	got := <-reqs
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/v1/deployments/"+testDeploymentID+"/build-logs", got.URL.Path)
	assert.Equal(t, "Bearer secret-token", got.Header.Get("Authorization"))
	assert.Equal(t, "application/x-ndjson", got.Header.Get("Accept"))
	assert.Equal(t, "buildlogs-test", got.Header.Get("User-Agent"))
}

func TestClient_StreamEscapesDeploymentID(t *testing.T) {
	t.Parallel()

	paths := make(chan string, 1)
	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.EscapedPath()
		_, _ = io.WriteString(w, "{\"type\":\"complete\"}\n")
	}))

	client := cloud.New("t", cloud.WithBaseURL(srv.URL))
	s, err := client.Stream(context.Background(), "dep%20x")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "/api/v1/deployments/dep%2520x/build-logs", <-paths)
}

func TestClient_StreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"not found", http.StatusNotFound, `{"detail":"Deployment not found"}`, "Deployment not found"},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`, "Could not validate credentials"},
		{"validation", http.StatusUnprocessableEntity, `{"detail":[{"loc":["path","deployment_id"],"msg":"Input should be a valid UUID","type":"uuid_parsing"}]}`, "Input should be a valid UUID"},
		{"plain body", http.StatusBadGateway, "upstream unavailable\n", "upstream unavailable"},
		{"empty body", http.StatusInternalServerError, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			client := cloud.New("t", cloud.WithBaseURL(srv.URL))

			s, err := client.Stream(context.Background(), testDeploymentID)
			require.Error(t, err)
			assert.Nil(t, s)

			var trErr *buildlogs.TransportError
			require.ErrorAs(t, err, &trErr)
			assert.Equal(t, tt.status, trErr.StatusCode)
			assert.Equal(t, tt.wantDetail, trErr.Detail)
		})
	}
}

func TestClient_StreamNoBody(t *testing.T) {
	t.Parallel()
	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	client := cloud.New("t", cloud.WithBaseURL(srv.URL))

	_, err := client.Stream(context.Background(), testDeploymentID)
	assert.ErrorIs(t, err, buildlogs.ErrNoBody)
}

func TestClient_StreamConnectFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := cloud.New("t", cloud.WithBaseURL(url))
	_, err := client.Stream(context.Background(), testDeploymentID)
	var netErr *buildlogs.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestClient_StreamInvalidDeploymentID(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	client := cloud.New("t", cloud.WithBaseURL(srv.URL))

	for _, id := range []string{"", "   ", "a/b", ".."} {
		_, err := client.Stream(context.Background(), id)
		assert.ErrorIs(t, err, buildlogs.ErrValidation, "id %q", id)
	}
	assert.Zero(t, calls.Load())
}

func TestClient_StreamIdleTimeoutBeforeHeaders(t *testing.T) {
	t.Parallel()
	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	client := cloud.New("t", cloud.WithBaseURL(srv.URL), cloud.WithIdleTimeout(50*time.Millisecond))

	_, err := client.Stream(context.Background(), testDeploymentID)
	assert.True(t, errors.Is(err, buildlogs.ErrIdleTimeout), "got %v", err)
}
