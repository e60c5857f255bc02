package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a key's bucket is kept after its last request.
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter implements RateLimiter with one token bucket per key held
// in process memory. Buckets idle for longer than the idle TTL are dropped.
type LocalRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	idleTTL   time.Duration
	lastPrune time.Time
	now       func() time.Time
}

// LocalOption configures a LocalRateLimiter
type LocalOption func(*LocalRateLimiter)

// WithIdleTTL sets how long an unused bucket is retained.
func WithIdleTTL(ttl time.Duration) LocalOption {
	return func(l *LocalRateLimiter) {
		if ttl > 0 {
			l.idleTTL = ttl
		}
	}
}

// NewLocalRateLimiter creates a new LocalRateLimiter
func NewLocalRateLimiter(opts ...LocalOption) *LocalRateLimiter {
	l := &LocalRateLimiter{
		buckets: make(map[string]*bucket),
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks if the request is allowed. The limit of the first call for a
// key is kept until the key's bucket is dropped for idleness.
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	now := l.now()
	lim := l.limiterFor(key, limit, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return &Result{Allowed: false, RetryAfter: limit.Period}, nil
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return &Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: delay,
			ResetAfter: delay,
		}, nil
	}

	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:    true,
		Remaining:  remaining,
		ResetAfter: resetAfter(limit, remaining),
	}, nil
}

func (l *LocalRateLimiter) limiterFor(key string, limit Limit, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.idleTTL {
		l.pruneLocked(now)
		l.lastPrune = now
	}

	b, ok := l.buckets[key]
	if !ok {
		every := rate.Inf
		if limit.Rate > 0 && limit.Period > 0 {
			every = rate.Every(limit.Period / time.Duration(limit.Rate))
		}
		b = &bucket{limiter: rate.NewLimiter(every, limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// pruneLocked drops buckets not used within idleTTL. Callers hold l.mu.
func (l *LocalRateLimiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of buckets currently held.
func (l *LocalRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// resetAfter is the time until the bucket is full again.
func resetAfter(limit Limit, remaining int) time.Duration {
	if limit.Rate <= 0 {
		return 0
	}
	missing := limit.Burst - remaining
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing) * limit.Period / time.Duration(limit.Rate)
}
