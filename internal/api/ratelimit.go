package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// rateLimiter implements a per-IP fixed window limiter for the public
// PIN verification endpoint. Windows are swept periodically so idle
// addresses do not accumulate.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string]*windowCounter
}

type windowCounter struct {
	count   int
	started time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string]*windowCounter),
	}
}

// allow records a hit for the given key and reports whether it falls
// within the limit.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	counter, ok := rl.hits[key]
	if !ok || now.Sub(counter.started) >= rl.window {
		rl.hits[key] = &windowCounter{count: 1, started: now}
		return true
	}

	counter.count++
	return counter.count <= rl.limit
}

// run sweeps expired windows until the context is cancelled.
func (rl *rateLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, counter := range rl.hits {
		if now.Sub(counter.started) >= rl.window {
			delete(rl.hits, key)
		}
	}
}

// rateLimitMiddleware throttles requests per remote IP. Disabled limiter
// (nil) passes everything through.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.verifyRL != nil && !s.verifyRL.allow(clientIP(r)) {
			if s.influx != nil {
				s.influx.WritePairingAttempt("rate_limited")
			}
			writeTooManyRequests(w, "too many attempts, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
