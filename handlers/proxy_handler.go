package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/modelgate/modelgate/internal/router"
	"github.com/modelgate/modelgate/middleware"
	"github.com/modelgate/modelgate/utils"
	"go.uber.org/zap"
)

const (
	// headerModelOverride carries an explicit model override on requests
	headerModelOverride = "X-Modelgate-Model"

	// headerProvider reports which provider served the response
	headerProvider = "X-Modelgate-Provider"
)

// hopByHopHeaders are connection-level headers that must not be copied from
// the upstream response
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// completionEnvelope extracts the one field the gateway inspects; everything
// else in the body passes through untouched
type completionEnvelope struct {
	Model string `json:"model" validate:"required"`
}

// Dispatcher runs one request through resolution, provider selection,
// forwarding and failover
type Dispatcher interface {
	Dispatch(ctx context.Context, req *router.Request) (*router.Result, error)
}

// ProxyHandler handles proxied completion requests
type ProxyHandler struct {
	dispatcher   Dispatcher
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewProxyHandler creates a new ProxyHandler
func NewProxyHandler(dispatcher Dispatcher, maxBodyBytes int64, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{
		dispatcher:   dispatcher,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleCompletion handles POST /v1/messages and POST /v1/chat/completions.
// The request body is forwarded verbatim apart from model substitution, and
// the upstream response streams back with its status and headers.
func (h *ProxyHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn("request body too large",
				zap.String("request_id", requestID),
				zap.Int64("limit_bytes", maxErr.Limit))
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit), nil)
			return
		}
		h.logger.Warn("failed to read request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Unable to read request body", nil)
		return
	}

	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	if err := utils.ValidateStruct(&env); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	h.logger.Debug("dispatching completion request",
		zap.String("request_id", requestID),
		zap.String("model", env.Model),
		zap.String("path", r.URL.Path))

	result, err := h.dispatcher.Dispatch(ctx, &router.Request{
		RequestID: requestID,
		Model:     env.Model,
		Override:  r.Header.Get(headerModelOverride),
		Path:      r.URL.Path,
		Body:      body,
		Header:    r.Header,
	})
	if err != nil {
		HandleDispatchError(w, err, h.logger)
		return
	}
	defer result.Response.Body.Close()

	copyUpstreamHeaders(w.Header(), result.Response.Header)
	w.Header().Set(headerProvider, result.Provider)
	w.WriteHeader(result.Response.StatusCode)

	if err := streamBody(w, result.Response.Body); err != nil {
		// Headers are already sent; all we can do is note the broken stream
		h.logger.Warn("response stream interrupted",
			zap.String("request_id", requestID),
			zap.String("provider", result.Provider),
			zap.Error(err))
	}
}

// copyUpstreamHeaders copies upstream response headers, dropping
// connection-level ones
func copyUpstreamHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, key := range hopByHopHeaders {
		dst.Del(key)
	}
}

// streamBody copies the upstream body to the client, flushing after every
// chunk so server-sent event streams are delivered as they arrive
func streamBody(w http.ResponseWriter, body io.Reader) error {
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}
