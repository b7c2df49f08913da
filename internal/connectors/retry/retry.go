// Package retry wraps outbound source calls in exponential backoff.
//
// Transient failures are retried up to Policy.MaxRetries times. When the
// budget is spent the last error is surfaced as domain.ErrRateLimited if the
// upstream was throttling us, and as domain.ErrSourceUnavailable otherwise.
// Errors marked with Permanent are returned immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Policy configures retries for one source.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	Jitter     float64
	MaxDelay   time.Duration
}

// DefaultPolicy returns 3 retries starting at 500ms, doubling, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 2,
		Jitter:     0.2,
		MaxDelay:   5 * time.Second,
	}
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	if p.Jitter >= 0 && p.Jitter < 1 {
		b.RandomizationFactor = p.Jitter
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	return b
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs op until it succeeds, fails permanently, or the policy is exhausted.
// name identifies the call in logs and errors.
func Do[T any](ctx context.Context, p Policy, name string, op func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	maxTries := p.MaxRetries + 1
	if maxTries < 1 {
		maxTries = 1
	}

	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return v, backoff.Permanent(ctxErr)
		}
		if IsPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("%s: attempt %d failed, retrying in %s: %v", name, attempt, next, err)
		}),
	)
	if err == nil {
		return res, nil
	}

	var perm *permanentError
	switch {
	case errors.As(err, &perm):
		return zero, perm.err
	case ctx.Err() != nil:
		return zero, ctx.Err()
	case errors.Is(err, domain.ErrRateLimited):
		return zero, err
	default:
		return zero, fmt.Errorf("%w: %s after %d attempts: %w", domain.ErrSourceUnavailable, name, attempt, err)
	}
}
