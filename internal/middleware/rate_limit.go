package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type window struct {
	count int
	ends  time.Time
}

// RateLimiter is a fixed-window limiter keyed by organization when the
// request carries one, by client IP otherwise. It tracks at most maxEntries
// keys; expired windows are dropped first, then the oldest.
type RateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	maxEntries int
	entries    map[string]window
	now        func() time.Time
}

func NewRateLimiter(limit int, per time.Duration, maxEntries int) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if per <= 0 {
		per = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &RateLimiter{
		limit:      limit,
		window:     per,
		maxEntries: maxEntries,
		entries:    map[string]window{},
		now:        time.Now,
	}
}

func (rl *RateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(limiterKey(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[key]
	if !ok || entry.ends.Before(now) {
		if !ok && len(rl.entries) >= rl.maxEntries {
			rl.evictLocked(now)
		}
		entry = window{ends: now.Add(rl.window)}
	}
	entry.count++
	rl.entries[key] = entry
	return entry.count <= rl.limit
}

func (rl *RateLimiter) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range rl.entries {
		if entry.ends.Before(now) {
			delete(rl.entries, key)
			continue
		}
		if oldestKey == "" || entry.ends.Before(oldest) {
			oldestKey, oldest = key, entry.ends
		}
	}
	if len(rl.entries) >= rl.maxEntries && oldestKey != "" {
		delete(rl.entries, oldestKey)
	}
}

func limiterKey(r *http.Request) string {
	if orgID, ok := OrganizationIDFromContext(r.Context()); ok {
		return "org:" + orgID.String()
	}
	ip := clientIP(r.RemoteAddr)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
