package dispatch

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// Limiter decides whether one more alert may go out under key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateSetter is implemented by limiters whose rate can change at runtime.
type RateSetter interface {
	SetRate(perPeriod int)
}

type bucketState struct {
	tokens float64
	last   time.Time
}

// TokenBucket is an in-process limiter with one bucket per key. Each bucket
// holds up to capacity tokens and refills continuously at capacity per
// period. New buckets start full.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	period   time.Duration
	buckets  map[string]*bucketState
	now      func() time.Time
}

var (
	_ Limiter    = (*TokenBucket)(nil)
	_ RateSetter = (*TokenBucket)(nil)
)

// NewTokenBucket creates a TokenBucket. A nil now uses time.Now.
func NewTokenBucket(capacity int, period time.Duration, now func() time.Time) *TokenBucket {
	if now == nil {
		now = time.Now
	}
	if period <= 0 {
		period = time.Hour
	}
	return &TokenBucket{
		capacity: float64(capacity),
		period:   period,
		buckets:  make(map[string]*bucketState),
		now:      now,
	}
}

// Allow takes one token from key's bucket if one is available.
func (b *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	st, ok := b.buckets[key]
	if !ok {
		st = &bucketState{tokens: b.capacity, last: now}
		b.buckets[key] = st
	}
	if elapsed := now.Sub(st.last); elapsed > 0 {
		st.tokens = math.Min(b.capacity, st.tokens+b.capacity*elapsed.Seconds()/b.period.Seconds())
		st.last = now
	}
	if st.tokens < 1 {
		return false, nil
	}
	st.tokens--
	return true, nil
}

// SetRate changes the capacity. Buckets holding more tokens than the new
// capacity are trimmed.
func (b *TokenBucket) SetRate(perPeriod int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capacity = float64(perPeriod)
	for _, st := range b.buckets {
		st.tokens = math.Min(st.tokens, b.capacity)
	}
}

// RemoteLimiter adapts a shared domain.RateLimiter, such as the Redis sliding
// window, so several instances enforce one budget.
type RemoteLimiter struct {
	backend domain.RateLimiter
	prefix  string
	window  time.Duration
	limit   atomic.Int64
}

var (
	_ Limiter    = (*RemoteLimiter)(nil)
	_ RateSetter = (*RemoteLimiter)(nil)
)

// NewRemoteLimiter allows limit alerts per window for each key. Keys are
// namespaced with prefix.
func NewRemoteLimiter(backend domain.RateLimiter, prefix string, limit int, window time.Duration) *RemoteLimiter {
	l := &RemoteLimiter{backend: backend, prefix: prefix, window: window}
	l.limit.Store(int64(limit))
	return l
}

func (l *RemoteLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.backend.Allow(ctx, l.prefix+key, int(l.limit.Load()), l.window)
}

func (l *RemoteLimiter) SetRate(perPeriod int) { l.limit.Store(int64(perPeriod)) }
