package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/repositories"
	"github.com/modelgate/modelgate/services/health"
	"github.com/modelgate/modelgate/services/providers"
	"github.com/modelgate/modelgate/utils"
	"go.uber.org/zap"
)

const (
	defaultDecisionLimit = 50
	maxDecisionLimit     = 500
)

// SnapshotReloader exposes the active routing snapshot and on-demand reload
type SnapshotReloader interface {
	Current() *models.RoutingSnapshot
	Reload() error
}

// ProviderStatus is the operator view of one configured provider
type ProviderStatus struct {
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	BaseURL       string     `json:"base_url,omitempty"`
	Models        []string   `json:"models"`
	Healthy       bool       `json:"healthy"`
	Eligible      bool       `json:"eligible"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}

// RoutingView is the operator view of the active snapshot. ProviderConfig
// never serializes key material, so the view is safe to expose as-is.
type RoutingView struct {
	Version   uint64                  `json:"version"`
	LoadedAt  time.Time               `json:"loaded_at"`
	Settings  models.RoutingSettings  `json:"settings"`
	Rules     models.RenameRules      `json:"rules"`
	Providers []models.ProviderConfig `json:"providers"`
}

// AdminHandler serves the operator endpoints
type AdminHandler struct {
	reloader  SnapshotReloader
	registry  *providers.Registry
	tracker   *health.Tracker
	decisions repositories.DecisionRepository
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler. decisions may be nil when
// decision auditing is disabled.
func NewAdminHandler(
	reloader SnapshotReloader,
	registry *providers.Registry,
	tracker *health.Tracker,
	decisions repositories.DecisionRepository,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		reloader:  reloader,
		registry:  registry,
		tracker:   tracker,
		decisions: decisions,
		logger:    logger,
	}
}

// HandleListProviders handles GET /admin/providers
func (h *AdminHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	snap := h.reloader.Current()
	cooldown := snap.Settings.Cooldown()
	now := time.Now()

	configs := h.registry.Providers()
	statuses := make([]ProviderStatus, 0, len(configs))
	for i := range configs {
		cfg := &configs[i]
		status := ProviderStatus{
			Name:     cfg.Name,
			Type:     string(cfg.Type),
			BaseURL:  cfg.BaseURL,
			Models:   cfg.Models,
			Healthy:  true,
			Eligible: h.tracker.IsEligible(cfg.Name, now, cooldown),
		}
		if failedAt, ok := h.tracker.LastFailure(cfg.Name); ok {
			status.Healthy = false
			status.LastFailureAt = &failedAt
		}
		statuses = append(statuses, status)
	}

	if err := utils.WriteOK(w, statuses); err != nil {
		h.logger.Error("failed to write provider status response", zap.Error(err))
	}
}

// HandleGetRouting handles GET /admin/routing
func (h *AdminHandler) HandleGetRouting(w http.ResponseWriter, r *http.Request) {
	snap := h.reloader.Current()

	view := RoutingView{
		Version:   snap.Version,
		LoadedAt:  snap.LoadedAt,
		Settings:  snap.Settings,
		Rules:     snap.Rules,
		Providers: snap.Providers,
	}

	if err := utils.WriteOK(w, view); err != nil {
		h.logger.Error("failed to write routing view response", zap.Error(err))
	}
}

// HandleReload handles POST /admin/reload. A rejected config keeps the
// previous snapshot live, so failure here never degrades routing.
func (h *AdminHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.reloader.Reload(); err != nil {
		h.logger.Warn("manual reload rejected", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Routing config rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	snap := h.reloader.Current()
	h.logger.Info("manual reload applied",
		zap.Uint64("version", snap.Version),
		zap.Int("providers", len(snap.Providers)))

	if err := utils.WriteOK(w, map[string]interface{}{
		"version":   snap.Version,
		"providers": len(snap.Providers),
	}); err != nil {
		h.logger.Error("failed to write reload response", zap.Error(err))
	}
}

// HandleListDecisions handles GET /admin/decisions with optional request_id
// and limit query parameters
func (h *AdminHandler) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	if h.decisions == nil {
		_ = utils.WriteNotFound(w, "Decision auditing is disabled")
		return
	}

	limit := defaultDecisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			_ = utils.WriteBadRequest(w, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
		if limit > maxDecisionLimit {
			limit = maxDecisionLimit
		}
	}

	var (
		decisions []*models.RoutingDecision
		err       error
	)
	if requestID := r.URL.Query().Get("request_id"); requestID != "" {
		decisions, err = h.decisions.GetByRequestID(r.Context(), requestID)
	} else {
		decisions, err = h.decisions.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("failed to query routing decisions", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to query routing decisions")
		return
	}

	if err := utils.WriteOK(w, decisions); err != nil {
		h.logger.Error("failed to write decisions response", zap.Error(err))
	}
}
