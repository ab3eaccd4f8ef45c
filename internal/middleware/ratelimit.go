package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/storage"
)

// RateLimit applies a fixed-window counter per client key. The counter lives
// in the cache store so the increment is atomic across instances; the bucket
// resets when its window key expires.
func RateLimit(counter storage.Counter, window time.Duration, max int, log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + clientKey(r)

			count, err := counter.IncrementWindow(r.Context(), key, window)
			if err != nil {
				// The limiter must not take the platform down with it.
				log.WithContext(r.Context()).WithError(err).Warn("rate limit store unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
			remaining := int64(max) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(max) {
				log.WithContext(r.Context()).WithFields(map[string]interface{}{
					"key":    key,
					"path":   r.URL.Path,
					"method": r.Method,
				}).Warn("rate limit exceeded")
				httputil.WriteError(w, apperrors.RateLimited(max, window.String()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller: the authenticated user when present,
// otherwise the source address.
func clientKey(r *http.Request) string {
	if p := PrincipalFrom(r.Context()); p != nil {
		return "user:" + p.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}
