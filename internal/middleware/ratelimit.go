package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// cleanupInterval controls how often stale per-IP limiters are dropped.
// An entry idle for twice this interval is removed.
const cleanupInterval = 5 * time.Minute

// ipLimiter holds one client's token bucket and its last access time.
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a per-client-IP token bucket to the routes it wraps.
//
// WHY PER IP AND NOT PER USER?
// The limiter protects the auth endpoints, where the caller is by definition
// not authenticated yet — the client IP is the only identity available.
// Behind a reverse proxy, chi's RealIP middleware (earlier in the chain)
// rewrites RemoteAddr from X-Forwarded-For, so the bucket keys on the real
// client, not the proxy.
//
// TOKEN BUCKET:
// rate.Limiter refills perMinute tokens per minute and holds at most
// perMinute at once, so a client can burst up to the full minute's budget
// and then settles to the steady rate.
type RateLimiter struct {
	perMinute int

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	logger *slog.Logger
	stopCh chan struct{}
}

// NewRateLimiter creates a RateLimiter allowing perMinute requests per
// client IP. A background goroutine evicts idle entries so the map cannot
// grow without bound; call Stop on shutdown.
func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*ipLimiter),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware returns the wrapping function for chi's Use/With.
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !rl.limiterFor(ip).Allow() {
				rl.logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				writeRateLimited(w, rl.perMinute)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// limiterFor returns the bucket for the given IP, creating it on first use.
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[ip]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.perMinute)
	rl.limiters[ip] = &ipLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	ttl := cleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > ttl {
			delete(rl.limiters, ip)
		}
	}
}

// Size reports the current number of tracked client IPs. For tests.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// clientIP strips the port from RemoteAddr. RealIP middleware has already
// replaced RemoteAddr with the forwarded client address when a proxy is
// involved.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimited sends a 429 with a Retry-After estimating the time until
// one token refills.
func writeRateLimited(w http.ResponseWriter, perMinute int) {
	retryAfter := int(math.Ceil(60.0 / float64(perMinute)))
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate_limited","message":"Too many requests. Please try again later."}`))
}
