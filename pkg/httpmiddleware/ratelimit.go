package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitTier is one sliding-window limit applied to every request whose
// path starts with Prefix.
type RateLimitTier struct {
	Prefix  string
	Max     int
	Window  time.Duration
	Message string
}

// RateLimitConfig configures tiered rate limiting.
type RateLimitConfig struct {
	// Tiers are evaluated independently; a request consumes one unit from
	// every tier whose prefix matches and is rejected if any is exhausted.
	Tiers []RateLimitTier
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// window tracks request counts across two adjacent windows.
type window struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// slidingWindow is a per-key sliding window counter for one tier.
type slidingWindow struct {
	tier    RateLimitTier
	mu      sync.Mutex
	windows map[string]*window
}

func newSlidingWindow(tier RateLimitTier) *slidingWindow {
	return &slidingWindow{tier: tier, windows: make(map[string]*window)}
}

// take consumes one unit for key if the limit allows it.
func (s *slidingWindow) take(key string, now time.Time) (remaining int, resetAt time.Time, allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.tier.Window
	w, ok := s.windows[key]
	if !ok {
		w = &window{currStart: now.Truncate(size)}
		s.windows[key] = w
	}

	if now.Sub(w.currStart) >= size {
		w.prevCount, w.prevStart = w.currCount, w.currStart
		w.currCount = 0
		w.currStart = now.Truncate(size)
		if now.Sub(w.prevStart) >= 2*size {
			w.prevCount = 0
		}
	}

	// The previous window counts in proportion to its overlap with the
	// sliding window ending now.
	overlap := max(1.0-now.Sub(w.currStart).Seconds()/size.Seconds(), 0)
	count := w.prevCount*overlap + w.currCount
	resetAt = w.currStart.Add(size)

	if count >= float64(s.tier.Max) {
		return 0, resetAt, false
	}
	w.currCount++
	return max(int(float64(s.tier.Max)-count-1), 0), resetAt, true
}

func (s *slidingWindow) evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.windows {
		if now.Sub(w.currStart) >= 2*s.tier.Window {
			delete(s.windows, key)
		}
	}
}

type rateLimiter struct {
	limiters []*slidingWindow
	keyFunc  func(*http.Request) string
	now      func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{keyFunc: cfg.KeyFunc, now: cfg.Now}
	if rl.keyFunc == nil {
		rl.keyFunc = ClientIP
	}
	if rl.now == nil {
		rl.now = time.Now
	}
	for _, t := range cfg.Tiers {
		if t.Message == "" {
			t.Message = "rate limit exceeded"
		}
		rl.limiters = append(rl.limiters, newSlidingWindow(t))
	}
	return rl
}

// startCleanup evicts stale windows until ctx is cancelled.
func (rl *rateLimiter) startCleanup(ctx context.Context) {
	var interval time.Duration
	for _, l := range rl.limiters {
		interval = max(interval, l.tier.Window)
	}
	if interval == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for _, l := range rl.limiters {
					l.evict(now)
				}
			}
		}
	}()
}

// RateLimit returns a middleware enforcing the configured tiers. Responses
// carry X-RateLimit-* headers of the most specific matching tier. Rejected
// requests get 429 with a JSON body and Retry-After.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimitMiddleware(newRateLimiter(cfg))
}

// RateLimitWithCleanup is like RateLimit but also evicts stale entries in
// the background until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	rl.startCleanup(ctx)
	return rateLimitMiddleware(rl)
}

func rateLimitMiddleware(rl *rateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			now := rl.now()

			var (
				specific   = -1
				rejectedBy *slidingWindow
				rejectedAt time.Time
			)
			for _, l := range rl.limiters {
				if !strings.HasPrefix(r.URL.Path, l.tier.Prefix) {
					continue
				}
				remaining, resetAt, allowed := l.take(key, now)
				if len(l.tier.Prefix) > specific {
					specific = len(l.tier.Prefix)
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.tier.Max))
					w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
				}
				if !allowed && (rejectedBy == nil || len(l.tier.Prefix) > len(rejectedBy.tier.Prefix)) {
					rejectedBy, rejectedAt = l, resetAt
				}
			}

			if rejectedBy != nil {
				retryAfter := max(rejectedAt.Sub(now), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, rejectedBy.tier.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request, checking
// X-Forwarded-For first, then X-Real-IP, then falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
