package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/jonwraymond/snippetrun/result"
)

// newTestClient returns a Client bound to srv with its own transport, and
// registers cleanup that closes idle connections.
func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	cfg.Endpoint = srv.URL
	cfg.HTTPClient = &http.Client{Transport: transport}
	return New(cfg)
}

func intPtr(v int) *int { return &v }

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	if c.Endpoint() != DefaultEndpoint {
		t.Errorf("Endpoint() = %q, want %q", c.Endpoint(), DefaultEndpoint)
	}
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", c.Timeout(), DefaultTimeout)
	}
	if c.headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type header = %q, want application/json", c.headers["Content-Type"])
	}
}

func TestNewHeadersCanonicalized(t *testing.T) {
	c := New(Config{Headers: map[string]string{
		"content-type":  "application/json; charset=utf-8",
		"authorization": "Bearer t",
	}})
	if got := c.headers["Content-Type"]; got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := c.headers["Authorization"]; got != "Bearer t" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestRun_Success(t *testing.T) {
	var gotReq ExecuteRequest
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = fmt.Fprint(w, `{"exit_code":0,"output":"hello\n","error":""}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Headers: map[string]string{"X-Custom": "v"}})
	got := c.Run(context.Background(), "int main(){}", "-n 3")

	want := result.Outcome{ExitCode: intPtr(0), Stdout: "hello\n"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	if gotReq.Code != "int main(){}" || gotReq.Args != "-n 3" {
		t.Errorf("request body = %+v", gotReq)
	}
	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if gotHeaders.Get("X-Custom") != "v" {
		t.Errorf("X-Custom header missing")
	}
	if gotHeaders.Get(RequestIDHeader) == "" {
		t.Errorf("%s header missing", RequestIDHeader)
	}
}

func TestRun_EmptyArgsSent(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = fmt.Fprint(w, `{"exit_code":0}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	c.Run(context.Background(), "x", "")

	if v, ok := raw["args"]; !ok || v != "" {
		t.Errorf("args = %v (present %v), want empty string", v, ok)
	}
}

func TestRun_ResponseFieldDefaults(t *testing.T) {
	tests := []struct {
		name string
		body string
		want result.Outcome
	}{
		{
			name: "all absent",
			body: `{}`,
			want: result.Outcome{},
		},
		{
			name: "exit code only",
			body: `{"exit_code":2}`,
			want: result.Outcome{ExitCode: intPtr(2)},
		},
		{
			name: "null fields",
			body: `{"exit_code":null,"output":null,"error":null}`,
			want: result.Outcome{},
		},
		{
			name: "failure with stderr",
			body: `{"exit_code":1,"output":"","error":"main.c:1: error"}`,
			want: result.Outcome{ExitCode: intPtr(1), StderrOrError: "main.c:1: error"},
		},
		{
			name: "unknown fields ignored",
			body: `{"exit_code":0,"output":"ok","duration_ms":12}`,
			want: result.Outcome{ExitCode: intPtr(0), Stdout: "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			got := newTestClient(t, srv, Config{}).Run(context.Background(), "x", "")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Run() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "compiler exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	got := newTestClient(t, srv, Config{}).Run(context.Background(), "x", "")
	want := result.TransportFailure("HTTP error 500")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	got := newTestClient(t, srv, Config{}).Run(context.Background(), "x", "")
	if !got.IsTransportFailure() {
		t.Fatalf("Run() exit code = %v, want none", *got.ExitCode)
	}
	if !strings.HasPrefix(got.StderrOrError, "invalid response") {
		t.Errorf("StderrOrError = %q, want invalid response prefix", got.StderrOrError)
	}
}

func TestRun_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := New(Config{Endpoint: endpoint, HTTPClient: &http.Client{Transport: &http.Transport{}}})
	got := c.Run(context.Background(), "x", "")
	if !got.IsTransportFailure() {
		t.Fatal("Run() against closed server reported a program exit")
	}
	if got.StderrOrError == "" {
		t.Error("StderrOrError is empty, want transport message")
	}
	if got.Stdout != "" {
		t.Errorf("Stdout = %q, want empty", got.Stdout)
	}
}

func TestRun_TimeoutAbortsRequest(t *testing.T) {
	defer goleak.VerifyNone(t)

	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		// The server only notices a client disconnect once the body is consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
		close(aborted)
	}))
	defer srv.Close()

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	c := New(Config{
		Endpoint:   srv.URL,
		Timeout:    50 * time.Millisecond,
		HTTPClient: &http.Client{Transport: transport},
	})

	start := time.Now()
	got := c.Run(context.Background(), "while(1);", "")
	elapsed := time.Since(start)

	if diff := cmp.Diff(result.TransportFailure(MsgTimedOut), got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run() took %v, want about 50ms", elapsed)
	}

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the request being aborted")
	}
}

func TestRun_CallerCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Timeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	got := c.Run(ctx, "x", "")
	if diff := cmp.Diff(result.TransportFailure(MsgCancelled), got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	newTestClient(t, srv, Config{}).Run(context.Background(), "x", "")
	if n := calls.Load(); n != 1 {
		t.Errorf("executor called %d times, want 1", n)
	}
}

type recordingLogger struct {
	infos, warns, errors atomic.Int32
}

func (l *recordingLogger) Info(string, ...any)  { l.infos.Add(1) }
func (l *recordingLogger) Warn(string, ...any)  { l.warns.Add(1) }
func (l *recordingLogger) Error(string, ...any) { l.errors.Add(1) }

func TestRun_Logs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprint(w, `{"exit_code":0}`)
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	newTestClient(t, srv, Config{Logger: logger}).Run(context.Background(), "x", "")
	if logger.infos.Load() != 1 {
		t.Errorf("info logs = %d, want 1", logger.infos.Load())
	}

	failing := New(Config{
		Endpoint:   srv.URL + "/?fail=1",
		HTTPClient: &http.Client{Transport: &http.Transport{}},
		Logger:     logger,
	})
	failing.Run(context.Background(), "x", "")
	if logger.errors.Load() != 1 {
		t.Errorf("error logs = %d, want 1", logger.errors.Load())
	}
}
