// Package netutil holds shared network plumbing for the scrapers.
package netutil

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter applies a token-bucket rate limit per remote host so one slow
// or chatty publisher cannot starve fetches to the others.
type HostLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewHostLimiter creates a limiter granting rps requests per second with the
// given burst allowance to each distinct host.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[host] = lim
	return lim
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	return l.limiter(host).Wait(ctx)
}

// Allow reports whether a request to host may proceed immediately.
func (l *HostLimiter) Allow(host string) bool {
	return l.limiter(host).Allow()
}
