package snippet

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/snippetrun/marker"
	"github.com/jonwraymond/snippetrun/remote"
	"github.com/jonwraymond/snippetrun/result"
)

var _ Runner = (*remote.Client)(nil)

const markedSource = "#include <stdio.h>\n" +
	"int main(void) {\n" +
	"    // START_HIGHLIGHT\n" +
	"    puts(\"hi\");\n" +
	"    // END_HIGHLIGHT\n" +
	"    return 0;\n" +
	"}"

// blockingRunner records calls and returns outcomes only when released.
type blockingRunner struct {
	mu      sync.Mutex
	calls   []string
	release chan result.Outcome
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan result.Outcome)}
}

func (r *blockingRunner) Run(ctx context.Context, code, args string) result.Outcome {
	r.mu.Lock()
	r.calls = append(r.calls, code+"|"+args)
	r.mu.Unlock()
	select {
	case o := <-r.release:
		return o
	case <-ctx.Done():
		return result.TransportFailure(remote.MsgCancelled)
	}
}

func (r *blockingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type instantRunner struct {
	outcome result.Outcome
	calls   atomic.Int32
}

func (r *instantRunner) Run(context.Context, string, string) result.Outcome {
	r.calls.Add(1)
	return r.outcome
}

// recorder collects render states.
type recorder struct {
	mu     sync.Mutex
	states []RenderState
}

func (r *recorder) render(s RenderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []RenderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RenderState(nil), r.states...)
}

func TestNew_InitialState(t *testing.T) {
	c := New(markedSource, &instantRunner{}, Options{ID: "s1", HideMarkers: true})

	s := c.Snapshot()
	if s.ID != "s1" {
		t.Errorf("ID = %q, want s1", s.ID)
	}
	if s.DisplayedCode != `    puts("hi");` {
		t.Errorf("DisplayedCode = %q", s.DisplayedCode)
	}
	if s.Expanded || s.Running || s.Result != nil {
		t.Errorf("unexpected initial state %+v", s)
	}
	if !s.ToggleAvailable {
		t.Error("ToggleAvailable = false, want true")
	}
}

func TestToggle_ExpandsAndCollapses(t *testing.T) {
	rec := &recorder{}
	c := New(markedSource, &instantRunner{}, Options{HideMarkers: true, Render: rec.render})

	if !c.Dispatch(context.Background(), Toggle{}) {
		t.Fatal("Toggle rejected")
	}
	expanded := c.Snapshot()
	if !expanded.Expanded {
		t.Fatal("Expanded = false after toggle")
	}
	if expanded.DisplayedCode != c.Clean() {
		t.Errorf("expanded code = %q, want clean %q", expanded.DisplayedCode, c.Clean())
	}
	if strings.Contains(expanded.DisplayedCode, marker.DefaultStartToken) {
		t.Error("expanded code shows markers although they are hidden")
	}

	c.Dispatch(context.Background(), Toggle{})
	if got := c.Snapshot().DisplayedCode; got != c.View().Visible {
		t.Errorf("collapsed code = %q, want visible %q", got, c.View().Visible)
	}
	if n := len(rec.all()); n != 2 {
		t.Errorf("renders = %d, want 2", n)
	}
}

func TestToggle_ShowsMarkersWhenNotHidden(t *testing.T) {
	c := New(markedSource, &instantRunner{}, Options{HideMarkers: false})
	c.Dispatch(context.Background(), Toggle{})
	if got := c.Snapshot().DisplayedCode; got != markedSource {
		t.Errorf("expanded code = %q, want raw source", got)
	}
}

func TestToggle_DegenerateSpanIsNoop(t *testing.T) {
	rec := &recorder{}
	source := "int main(void) { return 0; }"
	c := New(source, &instantRunner{}, Options{Render: rec.render})

	before := c.Snapshot()
	if c.Dispatch(context.Background(), Toggle{}) {
		t.Error("Toggle accepted on degenerate span")
	}
	after := c.Snapshot()
	if before != after {
		t.Errorf("state changed: %+v -> %+v", before, after)
	}
	if after.ToggleAvailable {
		t.Error("ToggleAvailable = true, want false")
	}
	if len(rec.all()) != 0 {
		t.Error("render called for a no-op toggle")
	}
}

func TestRun_SendsCleanCode(t *testing.T) {
	runner := newBlockingRunner()
	c := New(markedSource, runner, Options{})

	c.Dispatch(context.Background(), Run{Args: "a b"})
	runner.release <- result.Exited(0, "hi\n", "")
	c.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	want := marker.StripMarkerLines(markedSource, marker.DefaultStartToken, marker.DefaultEndToken) + "|a b"
	if runner.calls[0] != want {
		t.Errorf("runner got %q, want %q", runner.calls[0], want)
	}
}

func TestRun_Transitions(t *testing.T) {
	rec := &recorder{}
	runner := newBlockingRunner()
	c := New(markedSource, runner, Options{Render: rec.render})

	if !c.Dispatch(context.Background(), Run{}) {
		t.Fatal("Run rejected from idle")
	}
	if !c.State().Running {
		t.Fatal("Running = false after Run")
	}

	runner.release <- result.Exited(0, "hi", "")
	c.Wait()

	states := rec.all()
	if len(states) != 2 {
		t.Fatalf("renders = %d, want 2", len(states))
	}
	if !states[0].Running || states[0].Result != nil {
		t.Errorf("pending render = %+v", states[0])
	}
	final := states[1]
	if final.Running {
		t.Error("Running = true after completion")
	}
	if final.Result == nil || !final.Result.OK || final.Result.DisplayText != "hi" || final.Result.Style != result.StyleSuccess {
		t.Errorf("final result = %+v", final.Result)
	}
	if final.Outcome == nil || *final.Outcome.ExitCode != 0 {
		t.Errorf("final outcome = %+v", final.Outcome)
	}
}

func TestRun_SecondRunWhileRunningIsNoop(t *testing.T) {
	runner := newBlockingRunner()
	c := New(markedSource, runner, Options{})

	if !c.Dispatch(context.Background(), Run{Args: "first"}) {
		t.Fatal("first Run rejected")
	}
	if c.Dispatch(context.Background(), Run{Args: "second"}) {
		t.Fatal("second Run accepted while running")
	}

	runner.release <- result.Exited(0, "first result", "")
	c.Wait()

	if n := runner.callCount(); n != 1 {
		t.Errorf("runner calls = %d, want 1", n)
	}
	last := c.State().LastResult
	if last == nil || last.DisplayText != "first result" {
		t.Errorf("LastResult = %+v, want first result", last)
	}
}

func TestRun_ClearsPreviousResult(t *testing.T) {
	runner := newBlockingRunner()
	c := New(markedSource, runner, Options{})

	c.Dispatch(context.Background(), Run{})
	runner.release <- result.Exited(1, "", "boom")
	c.Wait()
	if c.State().LastResult == nil {
		t.Fatal("LastResult nil after first run")
	}

	c.Dispatch(context.Background(), Run{})
	if c.State().LastResult != nil {
		t.Error("LastResult not cleared on entering Running")
	}
	runner.release <- result.Exited(0, "ok", "")
	c.Wait()
	if got := c.State().LastResult; got == nil || !got.OK {
		t.Errorf("LastResult = %+v, want ok", got)
	}
}

func TestRun_ErrorsAreData(t *testing.T) {
	runner := &instantRunner{outcome: result.TransportFailure("request timed out")}
	c := New("x", runner, Options{})

	c.Dispatch(context.Background(), Run{})
	c.Wait()

	s := c.Snapshot()
	if s.Running {
		t.Error("Running = true after a failed run")
	}
	if s.Result == nil || s.Result.OK || s.Result.Style != result.StyleError || s.Result.DisplayText != "request timed out" {
		t.Errorf("Result = %+v", s.Result)
	}
	if s.Outcome == nil || !s.Outcome.IsTransportFailure() {
		t.Errorf("Outcome = %+v, want transport failure", s.Outcome)
	}
}

func TestToggle_DuringRunKeepsResult(t *testing.T) {
	runner := &instantRunner{outcome: result.Exited(0, "hi", "")}
	c := New(markedSource, runner, Options{})

	c.Dispatch(context.Background(), Run{})
	c.Wait()
	c.Dispatch(context.Background(), Toggle{})

	if got := c.State().LastResult; got == nil || got.DisplayText != "hi" {
		t.Errorf("LastResult after toggle = %+v", got)
	}
}

func TestClose_CancelsInFlight(t *testing.T) {
	runner := newBlockingRunner()
	c := New(markedSource, runner, Options{})
	c.Dispatch(context.Background(), Run{})

	finished := make(chan struct{})
	go func() {
		c.Close()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	if got := c.State().LastResult; got == nil || got.DisplayText != remote.MsgCancelled {
		t.Errorf("LastResult = %+v, want cancelled", got)
	}
	if c.Dispatch(context.Background(), Run{}) {
		t.Error("Run accepted after Close")
	}
}

func TestControllersAreIndependent(t *testing.T) {
	r1, r2 := newBlockingRunner(), newBlockingRunner()
	c1 := New(markedSource, r1, Options{ID: "a"})
	c2 := New(markedSource, r2, Options{ID: "b"})

	c1.Dispatch(context.Background(), Run{})
	if !c2.Dispatch(context.Background(), Run{}) {
		t.Fatal("second snippet blocked by the first snippet's run")
	}

	r2.release <- result.Exited(0, "b", "")
	c2.Wait()
	if !c1.State().Running {
		t.Error("first snippet finished when only the second was released")
	}
	r1.release <- result.Exited(0, "a", "")
	c1.Wait()

	if c1.State().LastResult.DisplayText != "a" || c2.State().LastResult.DisplayText != "b" {
		t.Error("results crossed between snippets")
	}
}

func TestWait_Idle(t *testing.T) {
	c := New("x", &instantRunner{}, Options{})
	c.Wait()
}
