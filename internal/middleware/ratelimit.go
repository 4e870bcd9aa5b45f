package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// Limiter is a fixed-window request counter keyed by client.
type Limiter struct {
	limit int
	per   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewLimiter allows limit requests per window for every key. A non-positive
// limit disables limiting.
func NewLimiter(limit int, per time.Duration) *Limiter {
	if per <= 0 {
		per = time.Minute
	}
	return &Limiter{limit: limit, per: per, now: time.Now, buckets: make(map[string]*bucket)}
}

// Allow records one request for key. When the window is exhausted it
// returns false and the time until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.per {
		for k, b := range l.buckets {
			if now.After(b.until) {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[key]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(l.per)}
		l.buckets[key] = b
	}
	if b.count >= l.limit {
		return false, b.until.Sub(now)
	}
	b.count++
	return true, 0
}

// RateLimit limits requests per client IP.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return NewLimiter(limit, per).Middleware(clientIPForRateLimit)
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. key derives the bucket from the request.
func (l *Limiter) Middleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.Allow(key(r))
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
