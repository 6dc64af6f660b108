// Package remote provides the client that submits snippet code to a remote
// executor service and normalizes every reply into a result.Outcome.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/snippetrun/result"
)

// Defaults for Config.
const (
	DefaultEndpoint         = "http://localhost:5555/execute_c"
	DefaultTimeout          = 10 * time.Second
	DefaultMaxResponseBytes = 4 << 20
)

// Outcome messages for failures that never reached a program exit.
const (
	MsgTimedOut  = "request timed out"
	MsgCancelled = "request cancelled"
)

// RequestIDHeader carries a per-run identifier to the executor.
const RequestIDHeader = "X-Request-Id"

// Logger is the interface for logging.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures a Client.
type Config struct {
	// Endpoint is the URL of the executor.
	// Default: DefaultEndpoint
	Endpoint string

	// Headers are sent with every request. A JSON Content-Type is always
	// present; a Content-Type given here replaces it.
	Headers map[string]string

	// Timeout bounds one run from request start to decoded body.
	// Default: DefaultTimeout
	Timeout time.Duration

	// MaxResponseBytes caps the response body read.
	// Default: DefaultMaxResponseBytes
	MaxResponseBytes int64

	// HTTPClient performs requests. Its own Timeout should be zero so that
	// Timeout above is the only deadline.
	// Default: a client using http.DefaultTransport
	HTTPClient *http.Client

	// Logger is an optional logger for request events.
	Logger Logger
}

// Client executes code on the remote executor.
//
// Contract:
// - Concurrency: safe for concurrent use; each Run is independent.
// - Errors: Run never fails; failures are reported inside the Outcome.
// - Retries: none. A failed run is final.
type Client struct {
	endpoint   string
	headers    map[string]string
	timeout    time.Duration
	maxBody    int64
	httpClient *http.Client
	logger     Logger
}

// New creates a Client with the given configuration.
func New(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range cfg.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	return &Client{
		endpoint:   endpoint,
		headers:    headers,
		timeout:    timeout,
		maxBody:    maxBody,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Endpoint returns the configured executor URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Timeout returns the configured per-run timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Run submits code and args to the executor and waits for the reply or the
// timeout, whichever comes first. On timeout the in-flight request is
// aborted before Run returns.
func (c *Client) Run(ctx context.Context, code, args string) result.Outcome {
	requestID := uuid.NewString()
	start := time.Now()

	outcome, err := Race(ctx, c.timeout, func(ctx context.Context) (result.Outcome, error) {
		return c.do(ctx, requestID, code, args)
	})

	switch {
	case err == nil:
		c.logInfo("run completed", "request_id", requestID, "duration", time.Since(start), "transport_failure", outcome.IsTransportFailure())
		return outcome
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		c.logWarn("run timed out", "request_id", requestID, "timeout", c.timeout)
		return result.TransportFailure(MsgTimedOut)
	case errors.Is(err, context.Canceled):
		c.logWarn("run cancelled", "request_id", requestID)
		return result.TransportFailure(MsgCancelled)
	default:
		c.logError("run failed", "request_id", requestID, "error", err)
		return result.TransportFailure(err.Error())
	}
}

// ExecuteRequest is the wire request to the executor.
type ExecuteRequest struct {
	Code string `json:"code"`
	Args string `json:"args"`
}

// ExecuteResponse is the wire response from the executor.
// Every field may be absent.
type ExecuteResponse struct {
	ExitCode *int   `json:"exit_code"`
	Output   string `json:"output"`
	Error    string `json:"error"`
}

// StatusError reports a non-2xx reply.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// do performs the request. A returned error is a transport-level failure;
// its message becomes the outcome text.
func (c *Client) do(ctx context.Context, requestID, code, args string) (result.Outcome, error) {
	body, err := json.Marshal(ExecuteRequest{Code: code, Args: args})
	if err != nil {
		return result.Outcome{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return result.Outcome{}, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result.Outcome{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return result.Outcome{}, &StatusError{StatusCode: resp.StatusCode}
	}

	var payload ExecuteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBody)).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return result.Outcome{}, ctx.Err()
		}
		return result.Outcome{}, fmt.Errorf("invalid response: %w", err)
	}

	return result.Outcome{
		ExitCode:      payload.ExitCode,
		Stdout:        payload.Output,
		StderrOrError: payload.Error,
	}, nil
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
