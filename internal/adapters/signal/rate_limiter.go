package signal

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const handshakeSweepAt = 4096

type handshakeBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// HandshakeLimiter keeps a token bucket per client address: limit attempts
// per window, refilled evenly. It bounds how fast one address can guess tokens.
type HandshakeLimiter struct {
	mu      sync.Mutex
	buckets map[string]*handshakeBucket
	every   rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
}

func NewHandshakeLimiter(limit int, window time.Duration) *HandshakeLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	return &HandshakeLimiter{
		buckets: make(map[string]*handshakeBucket),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (rl *HandshakeLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= handshakeSweepAt {
			rl.sweep(now)
		}
		b = &handshakeBucket{lim: rate.NewLimiter(rl.every, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets idle for a whole window; they have refilled anyway.
func (rl *HandshakeLimiter) sweep(now time.Time) {
	for key, b := range rl.buckets {
		if now.Sub(b.seen) >= rl.window {
			delete(rl.buckets, key)
		}
	}
}

// Len reports how many addresses are tracked.
func (rl *HandshakeLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
