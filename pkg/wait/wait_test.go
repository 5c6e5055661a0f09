package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

func fast(ignored ...error) Wait {
	return Wait{Timeout: 80 * time.Millisecond, Interval: 5 * time.Millisecond, Ignored: ignored}
}

func TestUntilSatisfiedImmediately(t *testing.T) {
	var calls atomic.Int32
	got, err := Until(context.Background(), fast(), func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		return "ready", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.EqualValues(t, 1, calls.Load())
}

func TestUntilSatisfiedAfterPolling(t *testing.T) {
	var calls atomic.Int32
	got, err := Until(context.Background(), fast(), func(ctx context.Context) (int, bool, error) {
		n := calls.Add(1)
		return int(n), n == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestUntilTimeout(t *testing.T) {
	start := time.Now()
	_, err := Until(context.Background(), fast(), func(ctx context.Context) (bool, bool, error) {
		return false, false, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 80*time.Millisecond, timeout.Timeout)
	assert.Nil(t, timeout.Last)
}

func TestUntilIgnoredErrorsKeepPolling(t *testing.T) {
	var calls atomic.Int32
	got, err := Until(context.Background(), fast(errMissing), func(ctx context.Context) (string, bool, error) {
		if calls.Add(1) < 4 {
			return "", false, errMissing
		}
		return "found", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "found", got)
	assert.EqualValues(t, 4, calls.Load())
}

func TestUntilTimeoutCarriesLastIgnoredError(t *testing.T) {
	_, err := Until(context.Background(), fast(errMissing), func(ctx context.Context) (string, bool, error) {
		return "", false, errMissing
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, errMissing)
	assert.Contains(t, err.Error(), "missing")
}

func TestUntilTerminalErrorStopsImmediately(t *testing.T) {
	terminal := errors.New("document gone")
	var calls atomic.Int32

	_, err := Until(context.Background(), fast(errMissing), func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		return "", false, terminal
	})

	assert.ErrorIs(t, err, terminal)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.EqualValues(t, 1, calls.Load())
}

func TestUntilParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := Wait{Timeout: time.Second, Interval: 5 * time.Millisecond}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Until(ctx, w, func(ctx context.Context) (bool, bool, error) {
		return false, false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestWithDefaults(t *testing.T) {
	w := Wait{}.withDefaults()
	assert.Equal(t, DefaultTimeout, w.Timeout)
	assert.Equal(t, DefaultInterval, w.Interval)

	n := New(3*time.Second, errMissing)
	assert.Equal(t, 3*time.Second, n.Timeout)
	assert.Equal(t, DefaultInterval, n.Interval)
	assert.True(t, n.ignored(errMissing))
}
