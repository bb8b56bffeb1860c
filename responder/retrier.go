package responder

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/herald/messaging"
)

// Decision is the outcome of evaluating one send attempt.
type Decision int

const (
	// Done means the attempt succeeded.
	Done Decision = iota

	// Retry means another attempt should follow after the backoff delay.
	Retry

	// GiveUp means the call failed for good.
	GiveUp
)

// Retrier is the single retry policy for outbound calls, parameterised by
// attempt count and base delay. Delays double after each failed attempt.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	permanent   func(error) bool
}

// NewRetrier creates a retrier. maxAttempts below one is treated as one.
func NewRetrier(maxAttempts int, baseDelay time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		permanent:   messaging.IsPermanent,
	}
}

// MaxAttempts returns the attempt budget.
func (r *Retrier) MaxAttempts() int { return r.maxAttempts }

// Backoff returns the delay after the given 1-based failed attempt.
func (r *Retrier) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return r.baseDelay << (attempt - 1)
}

// Decide determines what to do after an attempt.
//
// Decision matrix:
//   - nil error → Done
//   - permanent client error (4xx other than throttling) → GiveUp immediately
//   - context cancelled or expired → GiveUp
//   - anything else → Retry while attempts remain, else GiveUp
func (r *Retrier) Decide(ctx context.Context, err error, attempt int) Decision {
	if err == nil {
		return Done
	}
	if r.permanent(err) {
		return GiveUp
	}
	if ctx.Err() != nil {
		return GiveUp
	}
	if attempt < r.maxAttempts {
		return Retry
	}
	return GiveUp
}

// Do runs fn until it succeeds or the policy gives up, and returns the
// number of attempts made with the last error.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		switch r.Decide(ctx, err, attempt) {
		case Done:
			return attempt, nil
		case GiveUp:
			return attempt, err
		}

		timer := time.NewTimer(r.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
