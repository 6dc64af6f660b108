package snippet

import (
	"context"
	"sync"

	"github.com/jonwraymond/snippetrun/marker"
	"github.com/jonwraymond/snippetrun/result"
)

// Runner executes clean snippet code remotely.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Run must honor cancellation and return promptly once ctx is done.
// - Errors: Run never fails; every failure is reported inside the Outcome.
type Runner interface {
	Run(ctx context.Context, code, args string) result.Outcome
}

// Logger is an optional interface for controller events.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Command is a user action dispatched to a Controller.
type Command interface {
	isCommand()
}

// Run requests execution of the snippet with the given command-line args.
type Run struct {
	Args string
}

// Toggle switches between the visible region and the full code.
type Toggle struct{}

func (Run) isCommand()    {}
func (Toggle) isCommand() {}

// State is the mutable per-snippet state owned by a Controller.
type State struct {
	Expanded   bool
	Running    bool
	LastResult *result.Classification
}

// RenderState is what the host draws for one snippet.
type RenderState struct {
	ID              string
	DisplayedCode   string
	Expanded        bool
	Running         bool
	Result          *result.Classification
	Outcome         *result.Outcome
	ToggleAvailable bool
}

// RenderFunc receives every state change of a snippet, in order.
// It is called with the controller locked and must not dispatch commands
// to the same controller synchronously.
type RenderFunc func(RenderState)

// Options configures a Controller.
type Options struct {
	// ID identifies the snippet to the host. Optional.
	ID string

	// Tokens are the marker tokens.
	// Default: marker.DefaultTokens()
	Tokens marker.Tokens

	// HideMarkers shows the clean code instead of the raw source when
	// expanded.
	HideMarkers bool

	// Render is called after every state change. Optional.
	Render RenderFunc

	// Logger is an optional logger.
	Logger Logger
}

// Controller sequences marker extraction, remote execution and result
// classification for one snippet.
//
// Contract:
//   - Concurrency: safe for concurrent use. At most one run is in flight;
//     a Run dispatched while another is running is rejected.
//   - Ownership: the controller exclusively owns its State. Controllers for
//     different snippets share nothing.
type Controller struct {
	id     string
	view   marker.View
	runner Runner
	render RenderFunc
	logger Logger

	mu          sync.Mutex
	state       State
	lastOutcome *result.Outcome
	cancel      context.CancelFunc
	done        chan struct{}
	closed      bool
}

// New creates a controller for source.
func New(source string, runner Runner, opts Options) *Controller {
	tokens := opts.Tokens
	if tokens.Start == "" && tokens.End == "" {
		tokens = marker.DefaultTokens()
	}
	return &Controller{
		id:     opts.ID,
		view:   marker.NewView(source, tokens, opts.HideMarkers),
		runner: runner,
		render: opts.Render,
		logger: opts.Logger,
	}
}

// ID returns the snippet identifier.
func (c *Controller) ID() string {
	return c.id
}

// View returns the derived code variants.
func (c *Controller) View() marker.View {
	return c.view
}

// Clean returns the code submitted for execution and copying.
func (c *Controller) Clean() string {
	return c.view.Clean
}

// ToggleAvailable reports whether the snippet has a region to collapse to.
func (c *Controller) ToggleAvailable() bool {
	return c.view.Collapsible()
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.LastResult != nil {
		r := *s.LastResult
		s.LastResult = &r
	}
	return s
}

// Snapshot returns the current render state.
func (c *Controller) Snapshot() RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Refresh renders the current state without changing it.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitLocked()
}

// Dispatch applies cmd and reports whether it changed state.
// A Run is executed asynchronously under ctx; use Wait to block until it
// completes.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) bool {
	switch cmd := cmd.(type) {
	case Run:
		return c.startRun(ctx, cmd.Args)
	case Toggle:
		return c.toggle()
	default:
		return false
	}
}

// Wait blocks until the in-flight run, if any, has completed.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels any in-flight run, waits for it, and rejects further runs.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.Wait()
}

func (c *Controller) startRun(ctx context.Context, args string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.state.Running {
		if c.logger != nil {
			c.logger.Warn("run rejected: already running", "snippet", c.id)
		}
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.state.Running = true
	c.state.LastResult = nil
	c.lastOutcome = nil
	c.cancel = cancel
	c.done = done
	if c.logger != nil {
		c.logger.Info("run started", "snippet", c.id)
	}
	c.emitLocked()

	code := c.view.Clean
	go func() {
		defer close(done)
		defer cancel()
		outcome := c.runner.Run(runCtx, code, args)
		c.finishRun(outcome)
	}()
	return true
}

func (c *Controller) finishRun(outcome result.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	classification := result.Classify(outcome)
	c.state.Running = false
	c.state.LastResult = &classification
	c.lastOutcome = &outcome
	c.cancel = nil
	if c.logger != nil {
		c.logger.Info("run finished", "snippet", c.id, "ok", classification.OK)
	}
	c.emitLocked()
}

func (c *Controller) toggle() bool {
	if !c.view.Collapsible() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Expanded = !c.state.Expanded
	c.emitLocked()
	return true
}

func (c *Controller) snapshotLocked() RenderState {
	code := c.view.Visible
	if c.state.Expanded {
		code = c.view.Full
	}
	rs := RenderState{
		ID:              c.id,
		DisplayedCode:   code,
		Expanded:        c.state.Expanded,
		Running:         c.state.Running,
		ToggleAvailable: c.view.Collapsible(),
	}
	if c.state.LastResult != nil {
		r := *c.state.LastResult
		rs.Result = &r
	}
	if c.lastOutcome != nil {
		o := *c.lastOutcome
		rs.Outcome = &o
	}
	return rs
}

func (c *Controller) emitLocked() {
	if c.render != nil {
		c.render(c.snapshotLocked())
	}
}
