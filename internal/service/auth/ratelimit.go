package auth

import (
	"sync"
	"time"
)

const (
	defaultRateCapacity = 5
	defaultRateWindow   = 5 * time.Minute
)

type rateBucket struct {
	remaining   int
	windowStart time.Time
}

// In-memory fixed window limiter, one bucket per client key
// Buckets refill to full capacity at window boundary
// State is process local: restart resets everything, that is accepted
type RateLimiter struct {
	capacity int
	window   time.Duration

	mu      sync.Mutex
	buckets map[string]*rateBucket

	// Clock source, replaceable in tests
	now func() time.Time
}

func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	if capacity <= 0 {
		capacity = defaultRateCapacity
	}
	if window <= 0 {
		window = defaultRateWindow
	}

	return &RateLimiter{
		capacity: capacity,
		window:   window,
		buckets:  make(map[string]*rateBucket),
		now:      time.Now,
	}
}

// TryConsume takes one unit from the key bucket
// Returns false without side effect if the bucket is drained
func (l *RateLimiter) TryConsume(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		b = &rateBucket{remaining: l.capacity, windowStart: now}
		l.buckets[key] = b
	}

	if b.remaining == 0 {
		return false
	}
	b.remaining--

	return true
}

// EvictIdle drops buckets whose window has lapsed: they would refill to full
// on next use anyway, so removing them changes nothing observable
// Keeps the bucket map from growing without bound on high key cardinality
func (l *RateLimiter) EvictIdle(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, key)
			evicted++
		}
	}

	return evicted
}
