// Package snippet implements the per-snippet controller of a runnable code
// block.
//
// A [Controller] owns the state of one rendered snippet and reacts to
// explicit commands instead of UI callbacks:
//
//	c := snippet.New(source, client, snippet.Options{Render: draw})
//	c.Dispatch(ctx, snippet.Toggle{})
//	c.Dispatch(ctx, snippet.Run{Args: "-v"})
//	c.Wait()
//
// # States
//
// A controller is either idle or running. Run moves it to running, clears
// the previous result and renders a pending state; the remote outcome is
// classified with [result.Classify] and moves it back to idle. A Run
// dispatched while running is a no-op, so at most one request per snippet
// is ever in flight and results cannot arrive out of order.
//
// Toggle flips between the visible region and the full code. It never
// touches the last result and is unavailable when the snippet has no valid
// marker pair.
//
// Errors are data: failed and timed-out runs are ordinary results styled as
// errors, not a separate state.
package snippet
