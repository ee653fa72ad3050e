package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the canonical header carrying the request identifier
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to every request. An inbound X-Request-ID
// is trusted and propagated; otherwise a fresh UUID is generated. The ID is
// stored in the request context and echoed on the response, and it keys the
// routing decision audit trail.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}
