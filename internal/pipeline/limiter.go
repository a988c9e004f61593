package pipeline

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// adapterLimiter throttles calls per adapter with one token bucket each
type adapterLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// newAdapterLimiter creates a limiter allowing perSecond calls per adapter.
// A non-positive rate disables throttling.
func newAdapterLimiter(perSecond float64, burst int) *adapterLimiter {
	if perSecond <= 0 {
		return &adapterLimiter{limit: rate.Inf}
	}
	if burst < 1 {
		burst = 1
	}
	return &adapterLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the adapter may be called or ctx is done
func (l *adapterLimiter) Wait(ctx context.Context, adapter string) error {
	if l.limit == rate.Inf {
		return ctx.Err()
	}
	return l.get(adapter).Wait(ctx)
}

func (l *adapterLimiter) get(adapter string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[adapter]
	if !exists {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[adapter] = limiter
	}
	return limiter
}
