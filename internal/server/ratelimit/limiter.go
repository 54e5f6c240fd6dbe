// Package ratelimit keeps one token bucket per client key. The HTTP login
// route and the gRPC Login method share a Limiter, so a client gets one
// budget regardless of transport.
package ratelimit

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 5 * time.Minute

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

func New(r rate.Limit, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*keyLimiter),
		rate:     r,
		burst:    burst,
		now:      time.Now,
	}
}

// FromConfig builds a Limiter from configured values. A non-positive rate
// disables limiting; burst is at least 1.
func FromConfig(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return New(limit, burst)
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if k, ok := l.limiters[key]; ok {
		k.lastSeen = l.now()
		return k.limiter
	}

	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = &keyLimiter{limiter: limiter, lastSeen: l.now()}
	return limiter
}

// Allow reports whether one more event for key fits in its bucket.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// RetryAfter is the whole number of seconds a rejected client should wait.
func (l *Limiter) RetryAfter() int {
	if l.rate > 0 && float64(l.rate) < 1 {
		return int(1 / float64(l.rate))
	}
	return 1
}

// prune drops limiters idle for longer than limiterIdleTTL.
func (l *Limiter) prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, k := range l.limiters {
		if l.now().Sub(k.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
			n++
		}
	}
	return n
}

// RunCleanup prunes idle limiters every interval until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

// HostKey strips the port from a remote address. Addresses without a port
// are used as is.
func HostKey(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
