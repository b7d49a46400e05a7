package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"bizconnect/pkg/errors"
)

// Limiter admits or rejects an action for a key (sender id, client IP).
// Rejections are *errors.AppError with code TOO_MANY_REQUESTS; infrastructure
// failures are SERVICE_UNAVAILABLE.
type Limiter interface {
	Admit(ctx context.Context, key string) error
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter keeps one token bucket per key: limit tokens, refilled evenly over window.
type RateLimiter struct {
	buckets map[string]*bucket
	mutex   sync.RWMutex
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

var _ Limiter = (*RateLimiter)(nil)

func (rl *RateLimiter) Admit(ctx context.Context, key string) error {
	now := rl.now()
	b := rl.bucketFor(key, now)

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return errors.TooManyRequests("Rate limit exceeded", rl.window)
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", delay)
	}
	return nil
}

// bucketFor returns the bucket for key and marks it used at now. The mark is taken
// under the map lock, so Cleanup never drops a bucket a caller is about to reserve from.
func (rl *RateLimiter) bucketFor(key string, now time.Time) *bucket {
	rl.mutex.RLock()
	b, exists := rl.buckets[key]
	if exists {
		b.lastSeen.Store(now.UnixNano())
	}
	rl.mutex.RUnlock()
	if exists {
		return b
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	// Double-check pattern
	if b, exists = rl.buckets[key]; !exists {
		every := rl.window / time.Duration(rl.limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), rl.limit)}
		rl.buckets[key] = b
	}
	b.lastSeen.Store(now.UnixNano())
	return b
}

// Tokens returns how many actions key may still perform right now.
func (rl *RateLimiter) Tokens(key string) float64 {
	rl.mutex.RLock()
	b, exists := rl.buckets[key]
	rl.mutex.RUnlock()
	if !exists {
		return float64(rl.limit)
	}
	return b.limiter.TokensAt(rl.now())
}

// Cleanup removes buckets idle long enough to have refilled completely.
func (rl *RateLimiter) Cleanup() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-2 * rl.window).UnixNano()
	removed := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Load() < cutoff {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}
