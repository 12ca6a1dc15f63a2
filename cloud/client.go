// Package cloud implements buildlogs.Source and buildlogs.DeploymentService
// against the FastAPI Cloud HTTP API.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fastapicloud/buildlogs"
	"github.com/fastapicloud/buildlogs/ndjson"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.fastapicloud.com"

	// DefaultIdleTimeout bounds the silence between two chunks of a log
	// stream, including the wait for response headers.
	DefaultIdleTimeout = 5 * time.Minute

	defaultUserAgent = "buildlogs"
	maxErrorBody     = 64 << 10
)

// Interface compliance checks.
var (
	_ buildlogs.Source            = (*Client)(nil)
	_ buildlogs.DeploymentService = (*Client)(nil)
)

// Client talks to the FastAPI Cloud API with a bearer token.
type Client struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	idleTimeout time.Duration
	chunkSize   int
	userAgent   string
	logger      *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client. Its Timeout should be zero:
// a client-wide timeout would cut long log streams short.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithIdleTimeout sets the maximum silence between chunks. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// WithChunkSize sets the size of each body read.
func WithChunkSize(n int) Option {
	return func(c *Client) { c.chunkSize = n }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a new [Client] authenticating with token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		baseURL:     DefaultBaseURL,
		httpClient:  http.DefaultClient,
		idleTimeout: DefaultIdleTimeout,
		chunkSize:   ndjson.DefaultChunkSize,
		userAgent:   defaultUserAgent,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream opens the build log stream of a deployment and returns a
// [buildlogs.Stream] over its records. The stream owns the response body;
// callers must Close it.
func (c *Client) Stream(ctx context.Context, deploymentID string) (buildlogs.Stream, error) {
	if err := buildlogs.ValidateDeploymentID(deploymentID); err != nil {
		return nil, fmt.Errorf("cloud: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	idle := newIdleTimer(c.idleTimeout, func() { cancel(buildlogs.ErrIdleTimeout) })
	fail := func(err error) (buildlogs.Stream, error) {
		idle.stop()
		cancel(nil)
		return nil, err
	}

	req, err := c.newRequest(ctx, deploymentPath(deploymentID)+"/build-logs")
	if err != nil {
		return fail(fmt.Errorf("cloud: %w", err))
	}
	req.Header.Set("Accept", "application/x-ndjson")

	log := c.logger.With("deployment_id", deploymentID)
	log.Debug("opening build log stream", "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("cloud: %w", networkError(ctx, err)))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		err := parseHTTPError(resp)
		log.Debug("build log stream rejected", "status", resp.StatusCode, "error", err)
		return fail(fmt.Errorf("cloud: %w", err))
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return fail(fmt.Errorf("cloud: %w", buildlogs.ErrNoBody))
	}

	idle.reset()
	return newStream(ctx, cancel, resp.Body, idle, c.chunkSize, log), nil
}

// Deployment fetches the current state of a deployment.
func (c *Client) Deployment(ctx context.Context, deploymentID string) (buildlogs.Deployment, error) {
	if err := buildlogs.ValidateDeploymentID(deploymentID); err != nil {
		return buildlogs.Deployment{}, fmt.Errorf("cloud: %w", err)
	}

	req, err := c.newRequest(ctx, deploymentPath(deploymentID))
	if err != nil {
		return buildlogs.Deployment{}, fmt.Errorf("cloud: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return buildlogs.Deployment{}, fmt.Errorf("cloud: %w", networkError(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return buildlogs.Deployment{}, fmt.Errorf("cloud: %w", parseHTTPError(resp))
	}

	var d apiDeployment
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return buildlogs.Deployment{}, fmt.Errorf("cloud: decode deployment: %w", err)
	}
	return d.toDomain(), nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func deploymentPath(deploymentID string) string {
	return "/api/v1/deployments/" + url.PathEscape(deploymentID)
}

// networkError wraps a transport failure, reporting an idle timeout as such
// rather than as a plain cancellation.
func networkError(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), buildlogs.ErrIdleTimeout) {
		return &buildlogs.NetworkError{Err: buildlogs.ErrIdleTimeout}
	}
	return &buildlogs.NetworkError{Err: err}
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &buildlogs.TransportError{
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("failed to read body: %v", err),
		}
	}
	return &buildlogs.TransportError{
		StatusCode: resp.StatusCode,
		Detail:     errorDetail(body),
	}
}

// errorDetail extracts FastAPI's "detail" field, falling back to the raw body.
func errorDetail(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || len(apiErr.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(apiErr.Detail, &s); err == nil {
		return s
	}
	var items []apiValidationError
	if err := json.Unmarshal(apiErr.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			msgs = append(msgs, it.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return string(apiErr.Detail)
}
