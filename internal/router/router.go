package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/internal/observability"
	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/health"
	"github.com/modelgate/modelgate/services/providers"
	"github.com/modelgate/modelgate/services/routing"
)

const defaultMaxAttempts = 3

// ErrMalformedBody is returned when the request body cannot be parsed for
// model substitution
var ErrMalformedBody = errors.New("malformed request body")

// Request carries everything the dispatcher needs for one proxied call
type Request struct {
	RequestID string
	Model     string // model named in the request body
	Override  string // explicit model override, empty when absent
	Path      string // inbound route path, forwarded verbatim upstream
	Body      []byte
	Header    http.Header
}

// Result is a successful dispatch. Response.Body is still open; the caller
// streams and closes it.
type Result struct {
	Response   *providers.ProxyResponse
	Provider   string
	Resolution routing.Resolution
	Attempts   int
	Degraded   bool
}

// AuditSink receives one decision record per dispatched request. Record
// must not block; it reports an error when the decision is dropped.
type AuditSink interface {
	Record(decision models.RoutingDecision) error
}

// Dispatcher runs the resolve → select → forward → report loop with bounded
// failover
type Dispatcher struct {
	routing  *routing.Service
	registry *providers.Registry
	tracker  *health.Tracker
	audit    AuditSink
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. audit may be nil when decision
// persistence is disabled.
func NewDispatcher(
	routingService *routing.Service,
	registry *providers.Registry,
	tracker *health.Tracker,
	audit AuditSink,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		routing:  routingService,
		registry: registry,
		tracker:  tracker,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

type attemptStats struct {
	attempts int
	degraded bool
	provider string // last provider tried
}

// Dispatch resolves the requested model, rewrites the body when the name
// changed, and forwards to providers until one succeeds or the attempt
// budget is spent. Every terminal outcome is reported to logs, metrics and
// the audit sink.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	resolution := d.routing.ResolveModel(req.Model, req.Override)
	d.metrics.IncResolution(string(resolution.Source))

	body := req.Body
	if resolution.Model != req.Model {
		rewritten, err := rewriteModel(req.Body, resolution.Model)
		if err != nil {
			d.record(req, resolution, nil, &attemptStats{}, err, time.Since(start))
			return nil, err
		}
		body = rewritten
	}

	var stats attemptStats
	res, err := d.forward(ctx, req, resolution, body, &stats)
	d.record(req, resolution, res, &stats, err, time.Since(start))
	return res, err
}

func (d *Dispatcher) forward(ctx context.Context, req *Request, resolution routing.Resolution, body []byte, stats *attemptStats) (*Result, error) {
	maxAttempts := d.routing.Settings().MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	tried := make(map[string]bool)
	var lastErr error

	for stats.attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		provider, err := d.routing.SelectProvider(resolution.Model, tried)
		if err != nil {
			var unhealthy *routing.AllProvidersUnhealthyError
			switch {
			case errors.As(err, &unhealthy) && !stats.degraded:
				res, derr := d.forwardDegraded(ctx, req, resolution, body, unhealthy, tried, stats)
				if res == nil && derr == nil {
					// no candidate left to try
					return nil, err
				}
				if derr != nil && providers.IsRetryable(derr) && ctx.Err() == nil {
					// the degraded shot failed too; report the unhealthy
					// state, not the transport error
					return nil, err
				}
				return res, derr
			case errors.Is(err, routing.ErrCandidatesExhausted) && lastErr != nil:
				return nil, lastErr
			default:
				return nil, err
			}
		}

		res, ferr := d.tryProvider(ctx, req, provider.Name, resolution, body, stats)
		if ferr == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !providers.IsRetryable(ferr) {
			return nil, ferr
		}

		lastErr = ferr
		tried[provider.Name] = true
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, routing.ErrCandidatesExhausted
}

// forwardDegraded handles the every-provider-unhealthy case: the least
// recently failed untried candidate gets one shot. A nil, nil return means
// no candidate remained.
func (d *Dispatcher) forwardDegraded(ctx context.Context, req *Request, resolution routing.Resolution, body []byte, unhealthy *routing.AllProvidersUnhealthyError, tried map[string]bool, stats *attemptStats) (*Result, error) {
	stats.degraded = true

	candidate := leastRecentlyFailed(d.tracker, unhealthy.Candidates, tried)
	if candidate == nil {
		return nil, nil
	}

	d.logger.Warn("all providers unhealthy, trying least recently failed",
		zap.String("request_id", req.RequestID),
		zap.String("model", resolution.Model),
		zap.String("provider", candidate.Name),
	)

	res, err := d.tryProvider(ctx, req, candidate.Name, resolution, body, stats)
	if err != nil {
		return nil, err
	}
	res.Degraded = true
	return res, nil
}

func (d *Dispatcher) tryProvider(ctx context.Context, req *Request, name string, resolution routing.Resolution, body []byte, stats *attemptStats) (*Result, error) {
	stats.attempts++
	stats.provider = name

	adapter, err := d.registry.Get(name)
	if err != nil {
		// snapshot swapped between select and get; skip without touching
		// health state
		d.logger.Error("provider adapter missing",
			zap.String("request_id", req.RequestID),
			zap.String("provider", name),
			zap.Error(err),
		)
		return nil, providers.NewProviderError(name, "ADAPTER_MISSING", "no adapter registered", 0, true, err)
	}

	resp, err := adapter.Forward(ctx, &providers.ProxyRequest{
		Model:  resolution.Model,
		Path:   req.Path,
		Body:   body,
		Header: req.Header,
	})
	if err != nil {
		if ctx.Err() != nil {
			// cancellation is not the provider's fault; leave health alone
			return nil, err
		}

		retryable := providers.IsRetryable(err)
		// A terminal upstream rejection still proves the provider is up;
		// only retryable failures count against it.
		d.routing.ReportOutcome(name, !retryable)
		d.metrics.SetProviderHealthy(name, !retryable)

		d.logger.Warn("provider call failed",
			zap.String("request_id", req.RequestID),
			zap.String("provider", name),
			zap.String("model", resolution.Model),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)
		return nil, err
	}

	d.routing.ReportOutcome(name, true)
	d.metrics.SetProviderHealthy(name, true)

	return &Result{
		Response:   resp,
		Provider:   name,
		Resolution: resolution,
		Attempts:   stats.attempts,
	}, nil
}

func (d *Dispatcher) record(req *Request, resolution routing.Resolution, res *Result, stats *attemptStats, err error, elapsed time.Duration) {
	outcome := outcomeOf(err)

	providerName := stats.provider
	if res != nil {
		providerName = res.Provider
	}

	d.metrics.ObserveRequest(string(outcome), providerName, elapsed.Seconds())
	d.metrics.ObserveAttempts(stats.attempts)

	fields := []zap.Field{
		zap.String("request_id", req.RequestID),
		zap.String("requested_model", req.Model),
		zap.String("resolved_model", resolution.Model),
		zap.String("source", string(resolution.Source)),
		zap.String("provider", providerName),
		zap.String("outcome", string(outcome)),
		zap.Int("attempts", stats.attempts),
		zap.Bool("degraded", stats.degraded),
		zap.Duration("latency", elapsed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		d.logger.Warn("request dispatched", fields...)
	} else {
		d.logger.Info("request dispatched", fields...)
	}

	if d.audit != nil {
		decision := models.NewRoutingDecision(req.RequestID)
		decision.RequestedModel = req.Model
		decision.ResolvedModel = resolution.Model
		decision.Source = string(resolution.Source)
		decision.Provider = providerName
		decision.Outcome = outcome
		decision.Attempts = stats.attempts
		decision.Degraded = stats.degraded
		decision.LatencyMs = elapsed.Milliseconds()
		if err := d.audit.Record(*decision); err != nil {
			d.metrics.IncAuditDropped()
			d.logger.Warn("routing decision dropped",
				zap.String("request_id", req.RequestID),
				zap.Error(err))
		}
	}
}

func outcomeOf(err error) models.RoutingOutcome {
	if err == nil {
		return models.OutcomeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.OutcomeCanceled
	}
	if errors.Is(err, ErrMalformedBody) {
		return models.OutcomeMalformedBody
	}

	var unsupported *routing.UnsupportedModelError
	if errors.As(err, &unsupported) {
		return models.OutcomeUnsupportedModel
	}

	var unhealthy *routing.AllProvidersUnhealthyError
	if errors.As(err, &unhealthy) {
		return models.OutcomeAllUnhealthy
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		return models.OutcomeUpstreamError
	}

	return models.OutcomeInternalError
}

// rewriteModel replaces the top-level model field and nothing else. Key
// order is not preserved; providers do not care.
func rewriteModel(body []byte, model string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	payload["model"] = model

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return out, nil
}
