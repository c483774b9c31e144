package seed

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds retries of transient warehouse failures.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts  uint64
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is used when a zero policy is given.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

func (p RetryPolicy) backoff() retry.Backoff {
	if p.Attempts == 0 {
		p = DefaultRetryPolicy
	}
	b := retry.NewExponential(p.BaseDelay)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(p.Attempts-1, b)
}

// Do runs fn until it succeeds, fails with an error transient rejects, or
// the attempts run out. The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, transient func(error) bool, fn func(context.Context) error) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
