package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimit throttles requests with a Redis counter per caller and
// window. Authenticated callers are keyed by actor ID so farmers
// behind a shared address are limited individually; anonymous
// requests fall back to the remote address.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := "rate_limit:" + callerKey(r)

			current, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				// A Redis outage must not take the whole API down.
				slog.Error("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if current == 1 {
				rdb.Expire(ctx, key, window)
			}
			if current > int64(limit) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// callerKey identifies the request source for rate limiting. The actor
// header is trusted the same way Actor trusts it: the upstream gateway
// has already authenticated the caller.
func callerKey(r *http.Request) string {
	if id := r.Header.Get(headerActorID); id != "" {
		return "actor:" + id
	}
	return "addr:" + r.RemoteAddr
}
