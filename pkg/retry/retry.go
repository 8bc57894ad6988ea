package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds retries of idempotent provider reads.
type Policy struct {
	MaxAttempts    uint64
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// DefaultPolicy is used when a caller leaves the policy zero-valued.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaximumBackoff: time.Second,
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultPolicy.InitialBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = p.InitialBackoff
	}
	return p
}

// Do runs fn until it succeeds, returns a non-transient error, or the
// attempts are exhausted. isTransient decides which errors are retried.
func Do(ctx context.Context, policy Policy, isTransient func(error) bool, fn func(context.Context) error) error {
	policy = policy.normalize()
	backoff := goretry.NewExponential(policy.InitialBackoff)
	backoff = goretry.WithCappedDuration(policy.MaximumBackoff, backoff)
	backoff = goretry.WithMaxRetries(policy.MaxAttempts-1, backoff)

	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		if isTransient != nil && isTransient(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}
