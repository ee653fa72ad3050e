package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// Provider forwards proxied requests to one configured upstream endpoint.
// Adapters own authentication headers and transport; they never inspect or
// transform the request body beyond what the dispatcher already did.
type Provider interface {
	// Name returns the configured provider name, unique per snapshot
	Name() string

	// Forward sends the request upstream and returns the response with its
	// body unread, so the caller can stream it back to the client. Upstream
	// error statuses and transport failures are returned as *ProviderError.
	Forward(ctx context.Context, req *ProxyRequest) (*ProxyResponse, error)
}

// ProxyRequest is one client request on its way upstream
type ProxyRequest struct {
	// Model is the resolved upstream model identifier, already substituted
	// into Body
	Model string

	// Path is the upstream endpoint path, taken from the inbound route
	// (e.g. "/v1/messages")
	Path string

	// Body is the raw client JSON with only the model field rewritten
	Body []byte

	// Header carries the inbound request headers; adapters copy the few
	// pass-through ones (Accept) and own the rest
	Header http.Header
}

// ProxyResponse is an upstream response handed back for streaming.
// The caller must close Body.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ProviderError represents a failed upstream call
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the upstream error type when one was parsed, or a transport
	// classification such as "network_error"
	Code string

	// Message is the error message
	Message string

	// StatusCode is the upstream HTTP status, 0 for transport failures
	StatusCode int

	// Retryable indicates the dispatcher should fail over to the next
	// candidate: true for transport failures, 5xx, and 429
	Retryable bool

	// Body is the raw upstream error payload, kept so terminal errors can
	// be passed through to the client unmodified
	Body []byte

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable reports whether err is, or wraps, a retryable provider error
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// RetryableStatus classifies an upstream HTTP status: server-side failures
// and rate limiting drive failover, other client errors are terminal.
func RetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
