// Package ratelimit throttles outbound Graph API calls per connected account.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Budget is a call allowance over a period, refilled continuously.
type Budget struct {
	// Calls is the number of calls allowed per Period. Zero means unlimited.
	Calls int

	// Period is the refill window. Defaults to one hour.
	Period time.Duration
}

func (b Budget) limit() rate.Limit {
	p := b.Period
	if p <= 0 {
		p = time.Hour
	}
	return rate.Every(p / time.Duration(b.Calls))
}

// Limiter keeps one token bucket per account. Each bucket starts full with a
// burst equal to the budget's call count.
type Limiter struct {
	mu      sync.Mutex
	budget  Budget
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// New creates a limiter applying budget to every account.
func New(budget Budget) *Limiter {
	return &Limiter{
		budget:  budget,
		buckets: make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

// Allow takes one token for accountID if available.
func (l *Limiter) Allow(accountID string) bool {
	if l.budget.Calls <= 0 {
		return true
	}
	return l.bucketFor(accountID).AllowN(l.now(), 1)
}

// Wait blocks until accountID may make a call or ctx is done. It fails fast
// when ctx expires before a token would be available.
func (l *Limiter) Wait(ctx context.Context, accountID string) error {
	if l.budget.Calls <= 0 {
		return nil
	}
	return l.bucketFor(accountID).Wait(ctx)
}

// Reset forgets the bucket for accountID.
func (l *Limiter) Reset(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, accountID)
}

func (l *Limiter) bucketFor(accountID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[accountID]
	if !ok {
		b = rate.NewLimiter(l.budget.limit(), l.budget.Calls)
		l.buckets[accountID] = b
	}
	return b
}
