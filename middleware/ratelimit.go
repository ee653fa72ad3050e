package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/services/ratelimit"
	"github.com/modelgate/modelgate/utils"
)

// RateLimit enforces the per-client request budget. Callers are keyed by
// client IP, so this must run after the RealIP middleware has rewritten
// RemoteAddr from the forwarding headers.
func RateLimit(limiter *ratelimit.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			result := limiter.Check(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(time.Until(result.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				logger.Warn("request rate limited",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("client", key),
					zap.Int("limit", result.Limit))

				utils.WriteError(w, http.StatusTooManyRequests,
					"Request rate limit exceeded, retry after the reset", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the caller's IP, falling back to the raw address when
// RemoteAddr carries no port
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
