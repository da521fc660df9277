package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Soba101/FluxADM/internal/api/response"
	"github.com/Soba101/FluxADM/internal/cache"
)

// Limits are per API key rather than per tenant: batch intake scripts tend
// to hammer submit and poll from a single key, and one noisy key must not
// starve a tenant's other integrations.
const (
	rateLimitWindow          = time.Minute
	defaultRequestsPerMinute = 60
)

// RateLimit counts requests per API key in fixed Redis-backed windows.
type RateLimit struct {
	counters cache.Cache
	limit    int
}

// NewRateLimit creates the limiter. Non-positive budgets fall back to the
// default of 60 requests per minute.
func NewRateLimit(c cache.Cache, requestsPerMinute int) *RateLimit {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	return &RateLimit{counters: c, limit: requestsPerMinute}
}

// Limit counts the request against the key's current window and rejects once
// the budget is spent. Redis trouble never blocks intake: the limiter fails
// open and lets the request through uncounted.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r)
		if !ok || id.keyPrefix == "" {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.counters.IncrWithExpiry(
			r.Context(), cache.RateLimitKey(id.keyPrefix), rateLimitWindow)
		if err != nil {
			slog.Warn("rate limit counter unavailable",
				"key_prefix", id.keyPrefix, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		rl.writeBudgetHeaders(w, count)

		if count > int64(rl.limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Request budget exhausted for this API key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimit) writeBudgetHeaders(w http.ResponseWriter, count int64) {
	remaining := int64(rl.limit) - count
	if remaining < 0 {
		remaining = 0
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateLimitWindow).Unix(), 10))
}
