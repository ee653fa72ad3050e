package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelgate/modelgate/services/ratelimit"
)

func rateLimitedHandler(perMinute int) http.Handler {
	limiter := ratelimit.NewLimiter(perMinute, zap.NewNop())
	return RateLimit(limiter, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimit_AdmitsUnderBudget(t *testing.T) {
	handler := rateLimitedHandler(3)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	req.RemoteAddr = "10.0.0.1:52311"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	handler := rateLimitedHandler(2)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
		req.RemoteAddr = "10.0.0.1:52311"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "rate_limited")
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	handler := rateLimitedHandler(1)

	first := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	first.RemoteAddr = "10.0.0.1:52311"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	second := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	second.RemoteAddr = "10.0.0.2:40122"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code, "a different client keeps its own budget")
}

func TestClientKey(t *testing.T) {
	t.Run("strips the port", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
		req.RemoteAddr = "192.168.1.7:61022"
		assert.Equal(t, "192.168.1.7", clientKey(req))
	})

	t.Run("keeps a bare address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
		req.RemoteAddr = "192.168.1.7"
		assert.Equal(t, "192.168.1.7", clientKey(req))
	})
}
