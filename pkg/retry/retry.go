package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// NewFatalError marks err as not worth retrying.
func NewFatalError(err error) FatalError {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (p Policy) backOff() backoff.BackOff {
	if p.MaxElapsedTime > 0 {
		return ExponentialBackoffWithMaxElapsed(p.InitialInterval, p.MaxInterval, p.MaxElapsedTime, p.Multiplier)
	}
	return ExponentialBackoff(p.InitialInterval, p.MaxInterval, p.Multiplier)
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	b := backoff.WithMaxRetries(policy.backOff(), uint64(policy.MaxAttempts-1))
	return Do(ctx, b, fn, onRetry)
}

// Do runs fn until it succeeds, b stops, ctx is done or fn returns a
// FatalError. onRetry, when set, is called before every wait with the
// 1-based number of the failed attempt.
func Do(ctx context.Context, b backoff.BackOff, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	return DoWithTimer(ctx, b, nil, fn, onRetry)
}

// DoWithTimer is Do with an injectable backoff.Timer.
func DoWithTimer(ctx context.Context, b backoff.BackOff, timer backoff.Timer, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		var fatalErr FatalError
		if errors.As(err, &fatalErr) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if onRetry != nil {
			onRetry(attempt, err, next)
		}
	}

	return backoff.RetryNotifyWithTimer(operation, backoff.WithContext(b, ctx), notify, timer)
}
