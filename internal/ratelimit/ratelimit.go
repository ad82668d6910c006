// Package ratelimit wraps ulule/limiter with middleware keyed by client IP.
package ratelimit

import (
	"net/http"
	"strconv"

	limiter "github.com/ulule/limiter/v3"

	"github.com/sehaty-app/backend-sehaty/internal/common"
)

// New builds a limiter from a formatted rate such as "30-M" or "5-S".
func New(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// Middleware enforces the limit per client IP and sets the usual headers.
type Middleware struct {
	Limiter *limiter.Limiter
}

// Handler rejects requests over the limit with HTTP 429.
func (m Middleware) Handler(next http.Handler) http.Handler {
	if m.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lctx, err := m.Limiter.Get(r.Context(), common.ClientIP(r))
		if err != nil {
			// Fail open: a limiter outage should not take payments down.
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
		if lctx.Reached {
			common.JSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
