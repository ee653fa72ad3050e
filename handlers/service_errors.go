package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelgate/modelgate/internal/router"
	"github.com/modelgate/modelgate/services/providers"
	"github.com/modelgate/modelgate/services/routing"
	"github.com/modelgate/modelgate/utils"
	"go.uber.org/zap"
)

// HandleDispatchError maps dispatch failures to HTTP responses. Terminal
// upstream errors pass through with the provider's own status and body so
// clients see the upstream error shape unmodified.
func HandleDispatchError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	// Upstream errors first: a provider error can wrap a context error from
	// an attempt timeout, and that must not be mistaken for client
	// disconnection.
	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		writeUpstreamError(w, provErr, logger)
		return
	}

	// The dispatcher returns the bare context error when the inbound request
	// is cancelled; the client is gone, so there is nobody to answer.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	switch {
	case errors.Is(err, router.ErrMalformedBody):
		if err := utils.WriteBadRequest(w, "Request body must be a JSON object with a string model field", nil); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case errors.Is(err, routing.ErrNoProvidersConfigured):
		if err := utils.WriteServiceUnavailable(w, "No providers are configured", nil); err != nil {
			logger.Error("failed to write service unavailable response", zap.Error(err))
		}

	case errors.Is(err, routing.ErrCandidatesExhausted):
		if err := utils.WriteServiceUnavailable(w, "All candidate providers failed", nil); err != nil {
			logger.Error("failed to write service unavailable response", zap.Error(err))
		}

	default:
		var unsupported *routing.UnsupportedModelError
		if errors.As(err, &unsupported) {
			msg := fmt.Sprintf("No provider supports model %q", unsupported.Model)
			if err := utils.WriteNotFound(w, msg); err != nil {
				logger.Error("failed to write not found response", zap.Error(err))
			}
			return
		}

		var unhealthy *routing.AllProvidersUnhealthyError
		if errors.As(err, &unhealthy) {
			details := map[string]interface{}{
				"model":     unhealthy.Model,
				"providers": len(unhealthy.Candidates),
			}
			if err := utils.WriteServiceUnavailable(w, "All providers for the requested model are cooling down", details); err != nil {
				logger.Error("failed to write service unavailable response", zap.Error(err))
			}
			return
		}

		logger.Error("unhandled dispatch error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// writeUpstreamError relays a terminal upstream rejection verbatim when the
// upstream response was captured. Transport failures carry no upstream body
// and get a structured 502 instead.
func writeUpstreamError(w http.ResponseWriter, provErr *providers.ProviderError, logger *zap.Logger) {
	if provErr.StatusCode > 0 && len(provErr.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(headerProvider, provErr.Provider)
		w.WriteHeader(provErr.StatusCode)
		if _, err := w.Write(provErr.Body); err != nil {
			logger.Error("failed to relay upstream error body", zap.Error(err))
		}
		return
	}

	details := map[string]interface{}{
		"provider": provErr.Provider,
		"code":     provErr.Code,
	}
	if err := utils.WriteBadGateway(w, "Upstream request failed", details); err != nil {
		logger.Error("failed to write bad gateway response", zap.Error(err))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
