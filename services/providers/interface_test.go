package providers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"
)

// MockProvider is a test implementation of the Provider interface
type MockProvider struct {
	name          string
	status        int
	body          string
	err           error
	responseDelay time.Duration
	lastRequest   *ProxyRequest
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:   name,
		status: http.StatusOK,
		body:   `{"id":"mock-response-123"}`,
	}
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Forward(ctx context.Context, req *ProxyRequest) (*ProxyResponse, error) {
	if m.responseDelay > 0 {
		select {
		case <-time.After(m.responseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.lastRequest = req

	if m.err != nil {
		return nil, m.err
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	return &ProxyResponse{
		StatusCode: m.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(m.body))),
	}, nil
}

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider("test-provider")

	t.Run("Name", func(t *testing.T) {
		if provider.Name() != "test-provider" {
			t.Errorf("Name() = %s, want test-provider", provider.Name())
		}
	})

	t.Run("Forward", func(t *testing.T) {
		req := &ProxyRequest{
			Model:  "mock-model-1",
			Path:   "/v1/messages",
			Body:   []byte(`{"model":"mock-model-1"}`),
			Header: make(http.Header),
		}

		resp, err := provider.Forward(context.Background(), req)
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if len(body) == 0 {
			t.Error("Response body is empty")
		}

		if provider.lastRequest.Path != "/v1/messages" {
			t.Errorf("forwarded Path = %s, want /v1/messages", provider.lastRequest.Path)
		}
	})
}

func TestProviderError(t *testing.T) {
	t.Run("NewProviderError", func(t *testing.T) {
		cause := errors.New("connection failed")
		err := NewProviderError(
			"test-provider",
			"CONN_ERROR",
			"Failed to connect",
			500,
			true,
			cause,
		)

		if err.Provider != "test-provider" {
			t.Errorf("Provider = %s, want test-provider", err.Provider)
		}

		if err.Code != "CONN_ERROR" {
			t.Errorf("Code = %s, want CONN_ERROR", err.Code)
		}

		if err.StatusCode != 500 {
			t.Errorf("StatusCode = %d, want 500", err.StatusCode)
		}

		if !err.Retryable {
			t.Error("Error should be retryable")
		}

		if err.Cause != cause {
			t.Error("Cause not set correctly")
		}
	})

	t.Run("ErrorMethod", func(t *testing.T) {
		err := NewProviderError("provider", "CODE", "message", 400, false, nil)
		if err.Error() != "message" {
			t.Errorf("Error() = %s, want message", err.Error())
		}

		cause := errors.New("cause")
		err = NewProviderError("provider", "CODE", "message", 400, false, cause)
		if err.Error() != "message: cause" {
			t.Errorf("Error() = %s, want 'message: cause'", err.Error())
		}
	})

	t.Run("Unwrap", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := NewProviderError("provider", "CODE", "message", 500, true, cause)

		if !errors.Is(err, cause) {
			t.Error("errors.Is() did not find the cause")
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		retryableErr := NewProviderError("provider", "CODE", "message", 500, true, nil)
		if !IsRetryable(retryableErr) {
			t.Error("IsRetryable() = false, want true")
		}

		nonRetryableErr := NewProviderError("provider", "CODE", "message", 400, false, nil)
		if IsRetryable(nonRetryableErr) {
			t.Error("IsRetryable() = true, want false")
		}

		standardErr := errors.New("standard error")
		if IsRetryable(standardErr) {
			t.Error("IsRetryable() should return false for non-ProviderError")
		}

		wrapped := NewProviderError("provider", "CODE", "message", 503, true, nil)
		if !IsRetryable(errors.Join(errors.New("outer"), wrapped)) {
			t.Error("IsRetryable() should unwrap joined errors")
		}
	})
}

func TestRetryableStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{500, true},
		{502, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
		{422, false},
		{200, false},
	}

	for _, tt := range tests {
		if got := RetryableStatus(tt.status); got != tt.retryable {
			t.Errorf("RetryableStatus(%d) = %v, want %v", tt.status, got, tt.retryable)
		}
	}
}

func TestContextCancellation(t *testing.T) {
	provider := NewMockProvider("test")
	provider.responseDelay = 1 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := &ProxyRequest{
		Model: "mock-model-1",
		Path:  "/v1/messages",
		Body:  []byte(`{"model":"mock-model-1"}`),
	}

	_, err := provider.Forward(ctx, req)
	if err == nil {
		t.Error("Expected context cancellation error")
	}

	if err != context.DeadlineExceeded {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}
