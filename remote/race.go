package remote

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Race when the timer fires before fn returns.
var ErrTimeout = errors.New("request timed out")

// Race runs fn against a timer of the given duration.
//
// Contract:
//   - fn receives a context that is cancelled as soon as it loses the race,
//     either to the timer or to cancellation of ctx.
//   - Race always waits for fn to return before it returns, so fn's
//     goroutine and any connection it holds never outlive the call.
//   - Timer expiry returns ErrTimeout; parent cancellation returns ctx.Err().
//     A result fn has already delivered when either fires is returned instead.
//   - A timeout <= 0 disables the timer.
func Race[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(runCtx)
		done <- outcome{val: val, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		c, stop := newTimer(timeout)
		defer stop()
		expired = c
	}

	var zero T
	select {
	case res := <-done:
		return res.val, res.err
	case <-expired:
		if res, ok := finished(done); ok {
			return res.val, res.err
		}
		cancel()
		<-done
		return zero, ErrTimeout
	case <-ctx.Done():
		if res, ok := finished(done); ok {
			return res.val, res.err
		}
		cancel()
		<-done
		return zero, ctx.Err()
	}
}

// finished reports a result fn already delivered, so that a result ready at
// the same instant as the deadline is not discarded.
func finished[R any](done <-chan R) (R, bool) {
	select {
	case res := <-done:
		return res, true
	default:
		var zero R
		return zero, false
	}
}

// newTimer is replaced in tests to control when the deadline fires.
var newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}
