// Package middleware provides HTTP middleware shared by the API routes.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/foremanai/foreman-ai/internal/metrics"
)

// Idle buckets are swept so the client map cannot grow without bound.
const (
	sweepInterval = 5 * time.Minute
	staleAfter    = 10 * time.Minute
)

// RateLimiter implements a per-client token bucket rate limiter.
// Buckets refill at requestsPerMin and hold at most burst tokens, so a
// quiet client can send a short burst without waiting out the refill.
type RateLimiter struct {
	mu             sync.Mutex
	clients        map[string]*bucket
	requestsPerMin int
	burst          int
	sweeper        *time.Ticker
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter with the given sustained rate
// and burst capacity. A burst below 1 is raised to 1.
func NewRateLimiter(requestsPerMin, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		clients:        make(map[string]*bucket),
		requestsPerMin: requestsPerMin,
		burst:          burst,
		sweeper:        time.NewTicker(sweepInterval),
	}

	go rl.sweep()

	return rl
}

// Middleware returns an HTTP middleware that enforces rate limiting.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			metrics.RateLimitedTotal.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"error":"rate limit exceeded","suggestion":"slow down and retry in a minute"}`, http.StatusTooManyRequests)
			return
		}

		next(w, r)
	}
}

// clientKey identifies a client by IP. The remote address carries an
// ephemeral port that changes per connection, so the port is stripped.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// allow takes one token from the client's bucket, refilling it first
// from the time elapsed since the last request.
func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.clients[client]

	if !exists {
		// First request: open a full bucket and spend one token.
		rl.clients[client] = &bucket{
			tokens:     rl.burst - 1,
			lastRefill: now,
		}
		return true
	}

	refill := int(now.Sub(b.lastRefill).Minutes() * float64(rl.requestsPerMin))
	if refill > 0 {
		b.tokens = min(rl.burst, b.tokens+refill)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

// sweep drops buckets idle past staleAfter.
func (rl *RateLimiter) sweep() {
	for range rl.sweeper.C {
		rl.mu.Lock()
		now := time.Now()
		for client, b := range rl.clients {
			if now.Sub(b.lastRefill) > staleAfter {
				delete(rl.clients, client)
			}
		}
		rl.mu.Unlock()
	}
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	rl.sweeper.Stop()
}
