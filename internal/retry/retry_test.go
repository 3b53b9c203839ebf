package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunSucceedsFirstTry(t *testing.T) {
	calls := 0
	res := Run(context.Background(), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 42, nil
	}, Options{MaxRetries: 3, Delay: time.Millisecond})

	require.True(t, res.Ok)
	require.Equal(t, 42, res.Value)
	require.Equal(t, 1, calls)
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	calls := 0
	res := Run(context.Background(), func(ctx context.Context, attempt int) (int, error) {
		calls++
		if attempt < 2 {
			return 0, errors.New("transient")
		}
		return 99, nil
	}, Options{MaxRetries: 5, Delay: time.Millisecond})

	require.True(t, res.Ok)
	require.Equal(t, 99, res.Value)
	require.Equal(t, 3, calls)
}

func TestRunExhaustsRetries(t *testing.T) {
	calls := 0
	res := Run(context.Background(), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, Options{MaxRetries: 2, Delay: time.Millisecond})

	require.False(t, res.Ok)
	require.Error(t, res.LastError)
	require.Equal(t, 3, calls) // first attempt + 2 retries
}

func TestRunRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := Run(ctx, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, nil
	}, Options{MaxRetries: 3, Delay: time.Millisecond})

	require.False(t, res.Ok)
	require.Equal(t, 0, calls)
	require.ErrorContains(t, res.LastError, "cancelled")
}

func TestRunExponentialBackoffCaps(t *testing.T) {
	start := time.Now()
	res := Run(context.Background(), func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("fail")
	}, Options{MaxRetries: 3, Delay: 5 * time.Millisecond, Mode: ModeExponential, MaxDelay: 10 * time.Millisecond})

	require.False(t, res.Ok)
	// 5 + 10 + 10 = 25ms worth of waiting at minimum, well under a flake-prone bound.
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
