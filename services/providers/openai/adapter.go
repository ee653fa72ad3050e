package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com"

	defaultTimeout = 120 * time.Second

	// errorBodyLimit bounds how much of an upstream error payload is buffered
	errorBodyLimit = 1 << 20
)

// OpenAIAdapter implements the Provider interface for OpenAI-compatible APIs
type OpenAIAdapter struct {
	config     models.ProviderConfig
	httpClient *http.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config models.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	return &OpenAIAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the configured provider name
func (a *OpenAIAdapter) Name() string {
	return a.config.Name
}

// Forward sends the request body upstream unmodified, adding only
// authentication headers. The response body is returned unread so the
// caller can stream it; the caller owns closing it.
func (a *OpenAIAdapter) Forward(ctx context.Context, req *providers.ProxyRequest) (*providers.ProxyResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if accept := req.Header.Get("Accept"); accept != "" {
		httpReq.Header.Set("Accept", accept)
	}

	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}

	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, a.handleErrorResponse(httpResp.StatusCode, httpResp.Body)
	}

	return &providers.ProxyResponse{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       httpResp.Body,
	}, nil
}

// handleErrorResponse converts an OpenAI error payload into a ProviderError
func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	if err != nil {
		return providers.NewProviderError(a.Name(), "READ_ERROR", "Failed to read error response", statusCode, providers.RetryableStatus(statusCode), err)
	}

	retryable := providers.RetryableStatus(statusCode)

	var errResp openaiErrorResponse
	if jsonErr := json.Unmarshal(raw, &errResp); jsonErr != nil || errResp.Error.Message == "" {
		perr := providers.NewProviderError(a.Name(), "UPSTREAM_ERROR", fmt.Sprintf("upstream returned status %d", statusCode), statusCode, retryable, nil)
		perr.Body = raw
		return perr
	}

	code := errResp.Error.Type
	if code == "" {
		code = "UPSTREAM_ERROR"
	}

	perr := providers.NewProviderError(a.Name(), code, errResp.Error.Message, statusCode, retryable, nil)
	perr.Body = raw
	return perr
}

// OpenAI-specific error types

type openaiErrorResponse struct {
	Error openaiError `json:"error"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
