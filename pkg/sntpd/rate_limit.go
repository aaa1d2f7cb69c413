package sntpd

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter applies a per-client-IP token bucket. A rate of 0 disables it,
// which is the default: the pipeline normally never rate-limits.
type limiter struct {
	mu    sync.Mutex
	perIP map[string]*rate.Limiter

	ratePerSec rate.Limit
	burst      int
}

func newLimiter(ratePerSec float64, burst int) *limiter {
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		perIP:      make(map[string]*rate.Limiter),
		ratePerSec: rate.Limit(ratePerSec),
		burst:      burst,
	}
}

func (l *limiter) allow(ip string, now time.Time) bool {
	if l.ratePerSec <= 0 {
		return true
	}
	if ip == "" {
		return true
	}

	l.mu.Lock()
	lim := l.perIP[ip]
	if lim == nil {
		lim = rate.NewLimiter(l.ratePerSec, l.burst)
		l.perIP[ip] = lim
	}
	l.mu.Unlock()

	return lim.AllowN(now, 1)
}
