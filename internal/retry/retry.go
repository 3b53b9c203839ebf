// Package retry implements the bounded-attempt execution helper (spec §4.1).
// It does not classify errors; callers decide what's worth retrying.
package retry

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/sedaprotocol/seda-push-solver/internal/errs"
)

// Op is the operation under retry. It returns the value on success.
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Mode selects the delay schedule between attempts.
type Mode int

const (
	// ModeConstant waits the same Delay between every attempt.
	ModeConstant Mode = iota
	// ModeExponential doubles the delay each attempt, capped at MaxDelay.
	ModeExponential
)

// Options configures Run. MaxRetries is the number of retries *after* the
// first attempt, so the operation runs at most MaxRetries+1 times.
type Options struct {
	MaxRetries int
	Delay      time.Duration
	Mode       Mode
	MaxDelay   time.Duration
}

// DefaultOptions matches spec §4.1's default: constant 5s delay.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		Delay:      5 * time.Second,
		Mode:       ModeConstant,
	}
}

// Result is what Run returns: either a value or the last error observed.
type Result[T any] struct {
	Value      T
	LastError  error
	Ok         bool
	Attempts   int
}

// Run invokes op up to opts.MaxRetries+1 times, waiting between attempts
// according to opts.Mode. Before each attempt (including the first) it
// checks ctx for cancellation and short-circuits with errs.ErrCancelled.
// Run never panics on op's behalf; op's own errors pass through untouched
// in Result.LastError except for the final cancellation check.
func Run[T any](ctx context.Context, op Op[T], opts Options) Result[T] {
	var (
		zero    T
		lastErr error
		delay   = opts.Delay
	)

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return Result[T]{Value: zero, LastError: errorsmod.Wrap(errs.ErrCancelled, ctx.Err().Error()), Attempts: attempt}
		default:
		}

		value, err := op(ctx, attempt)
		if err == nil {
			return Result[T]{Value: value, Ok: true, Attempts: attempt + 1}
		}
		lastErr = err

		if attempt == opts.MaxRetries {
			break
		}

		wait := delay
		if opts.Mode == ModeExponential {
			wait = delay
			delay *= 2
			if opts.MaxDelay > 0 && delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result[T]{Value: zero, LastError: errorsmod.Wrap(errs.ErrCancelled, ctx.Err().Error()), Attempts: attempt + 1}
		case <-timer.C:
		}
	}

	return Result[T]{Value: zero, LastError: lastErr, Attempts: opts.MaxRetries + 1}
}
