package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/services/routing"
	"github.com/modelgate/modelgate/utils"
	"go.uber.org/zap"
)

// DatabaseChecker verifies connectivity of the audit database
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	snapshots routing.SnapshotSource
	db        DatabaseChecker
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db must be nil, not a typed
// nil pointer, when decision auditing is disabled.
func NewHealthHandler(snapshots routing.SnapshotSource, db DatabaseChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		snapshots: snapshots,
		db:        db,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz.
// Basic liveness check - always returns 200 if the process is running.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz.
// The gateway is ready once a routing snapshot is active with at least one
// provider; when decision auditing is enabled the database must answer too.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkRouting(); err != nil {
		h.logger.Warn("routing readiness check failed", zap.Error(err))
		checks["routing"] = "unhealthy"
		allHealthy = false
	} else {
		checks["routing"] = "healthy"
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database readiness check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkRouting verifies an active snapshot with at least one provider
func (h *HealthHandler) checkRouting() error {
	snap := h.snapshots.Current()
	if snap == nil {
		return errors.New("no routing snapshot loaded")
	}
	if len(snap.Providers) == 0 {
		return errors.New("no providers configured")
	}
	return nil
}
