package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int // 0 retries until the context ends
	Interval    time.Duration
	Exponential bool          // double Interval after each attempt
	MaxInterval time.Duration // caps exponential growth; 0 means no cap
	OnRetry     func(attempt int, err error)
}

// Constant returns an unbounded policy with a fixed wait between attempts.
func Constant(interval time.Duration) Policy {
	return Policy{Interval: interval}
}

func (p Policy) backoff() goretry.Backoff {
	var b goretry.Backoff
	if p.Exponential {
		b = goretry.NewExponential(p.Interval)
		if p.MaxInterval > 0 {
			b = goretry.WithCappedDuration(p.MaxInterval, b)
		}
	} else {
		b = goretry.NewConstant(p.Interval)
	}
	if p.MaxAttempts > 0 {
		b = goretry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
	}
	return b
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// used up, or ctx is done.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.Interval <= 0 {
		return errors.New("retry interval must be positive")
	}

	attempt := 0
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		return goretry.RetryableError(err)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("context cancelled during retry: %w", err)
	case p.MaxAttempts > 0 && attempt >= p.MaxAttempts:
		return fmt.Errorf("failed after %d attempts: %w", attempt, err)
	default:
		return err
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
