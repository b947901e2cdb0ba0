package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// callerLimiter keeps one token bucket per caller.
type callerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	logger   *slog.Logger
}

func newCallerLimiter(r rate.Limit, burst int, logger *slog.Logger) *callerLimiter {
	return &callerLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
		logger:   logger,
	}
}

func (cl *callerLimiter) limiter(key string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	l, ok := cl.limiters[key]
	if !ok {
		l = rate.NewLimiter(cl.rate, cl.burst)
		cl.limiters[key] = l
	}
	return l
}

// Middleware rejects requests beyond the caller's budget with 429. Requests
// without a caller are keyed by remote address.
func (cl *callerLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(CallerHeader)
		if key == "" {
			key = r.RemoteAddr
		}
		if !cl.limiter(key).Allow() {
			cl.logger.Warn("rate limit exceeded", "key", key, "path", r.URL.Path, "method", r.Method)
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Code:    "RATE_LIMITED",
				Message: "too many requests",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
