package ebay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
)

// ErrDailyLimitReached is returned when the daily API call quota is spent.
var ErrDailyLimitReached = errors.New("daily API limit reached")

const quotaWindow = 24 * time.Hour

// RateLimiter paces calls from a single BrowseClient. A token bucket bounds
// the per-second rate and a rolling 24-hour window bounds the daily total.
// It never retries; a spent quota fails the call.
type RateLimiter struct {
	bucket   *rate.Limiter
	maxDaily int64

	mu      sync.Mutex
	used    int64
	resetAt time.Time
	nowFunc func() time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a limiter allowing perSecond calls with the given
// burst, and at most maxDaily calls per rolling 24-hour window.
func NewRateLimiter(
	perSecond float64,
	burst int,
	maxDaily int64,
	opts ...RateLimiterOption,
) *RateLimiter {
	r := &RateLimiter{
		bucket:   rate.NewLimiter(rate.Limit(perSecond), burst),
		maxDaily: maxDaily,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resetAt = r.nowFunc().Add(quotaWindow)
	return r
}

// Wait reserves one call from the daily quota, then blocks until the token
// bucket admits it or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.reserve(); err != nil {
		metrics.EbayDailyLimitHits.Inc()
		return err
	}

	if err := r.bucket.Wait(ctx); err != nil {
		r.release()
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	metrics.EbayDailyUsage.Set(float64(r.DailyCount()))
	return nil
}

func (r *RateLimiter) reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now := r.nowFunc(); now.After(r.resetAt) {
		r.used = 0
		r.resetAt = now.Add(quotaWindow)
	}
	if r.used >= r.maxDaily {
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, r.used, r.maxDaily)
	}
	r.used++
	return nil
}

func (r *RateLimiter) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used > 0 {
		r.used--
	}
}

// DailyCount returns the calls used in the current window.
func (r *RateLimiter) DailyCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}

// Remaining returns the calls left in the current window.
func (r *RateLimiter) Remaining() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return max(r.maxDaily-r.used, 0)
}

// ResetAt returns when the current window expires.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetAt
}

// MaxDaily returns the configured daily quota.
func (r *RateLimiter) MaxDaily() int64 {
	return r.maxDaily
}

// Rate returns the sustained calls per second.
func (r *RateLimiter) Rate() float64 {
	return float64(r.bucket.Limit())
}

// Burst returns the token bucket size.
func (r *RateLimiter) Burst() int {
	return r.bucket.Burst()
}
