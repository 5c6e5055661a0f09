// Package wait implements bounded polling: evaluate a condition until it is
// satisfied, fails terminally, or the timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 500 * time.Millisecond
)

// ErrTimeout is matched by the error Until returns when the timeout elapses
var ErrTimeout = errors.New("timed out waiting for condition")

// Condition is evaluated once per poll. It returns satisfied=true with the
// value to hand back, satisfied=false to keep polling, or an error. Errors
// listed in Wait.Ignored count as "keep polling"; any other error ends the
// wait immediately.
type Condition[T any] func(ctx context.Context) (value T, satisfied bool, err error)

// Wait is the timing policy of one polling session
type Wait struct {
	Timeout  time.Duration
	Interval time.Duration
	Ignored  []error
}

// New returns a Wait with the given timeout and the default interval
func New(timeout time.Duration, ignored ...error) Wait {
	return Wait{
		Timeout:  timeout,
		Interval: DefaultInterval,
		Ignored:  ignored,
	}
}

func (w Wait) withDefaults() Wait {
	if w.Timeout <= 0 {
		w.Timeout = DefaultTimeout
	}
	if w.Interval <= 0 {
		w.Interval = DefaultInterval
	}
	return w
}

func (w Wait) ignored(err error) bool {
	for _, target := range w.Ignored {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// TimeoutError reports an exhausted wait. Last holds the most recent ignored
// error, if any.
type TimeoutError struct {
	Timeout time.Duration
	Last    error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%v after %s: %v", ErrTimeout, e.Timeout, e.Last)
	}
	return fmt.Sprintf("%v after %s", ErrTimeout, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Last }

// Until polls cond immediately and then every w.Interval. It returns the
// satisfying value, the first terminal error, or a *TimeoutError. If ctx is
// cancelled first, ctx.Err() is returned.
func Until[T any](ctx context.Context, w Wait, cond Condition[T]) (T, error) {
	w = w.withDefaults()

	waitCtx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	var (
		zero T
		last error
	)
	for {
		value, ok, err := cond(waitCtx)
		switch {
		case err == nil && ok:
			return value, nil
		case err != nil && !w.ignored(err):
			// A poll cut short by the deadline is a timeout, not a failure.
			if waitCtx.Err() == nil || ctx.Err() != nil {
				return zero, err
			}
		case err != nil:
			last = err
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, &TimeoutError{Timeout: w.Timeout, Last: last}
		}
	}
}
