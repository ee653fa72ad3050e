package routing

import (
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/health"
)

// SnapshotSource yields the current immutable routing snapshot
type SnapshotSource interface {
	Current() *models.RoutingSnapshot
}

// Service is the routing facade used by the dispatch loop: model resolution,
// provider selection, and outcome reporting. Every method is synchronous,
// performs no I/O, and reads configuration from a single snapshot acquired
// at call entry, so a concurrent reload can never produce torn reads.
type Service struct {
	snapshots SnapshotSource
	tracker   *health.Tracker
	selector  *Selector
	logger    *zap.Logger

	// nowFn stands in for time.Now so tests can control the clock
	nowFn func() time.Time
}

// NewService creates a routing Service
func NewService(snapshots SnapshotSource, tracker *health.Tracker, logger *zap.Logger) *Service {
	return &Service{
		snapshots: snapshots,
		tracker:   tracker,
		selector:  NewSelector(tracker),
		logger:    logger,
		nowFn:     time.Now,
	}
}

// ResolveModel resolves the requested model name, honoring an optional
// caller-supplied override, against the current snapshot. An ambiguous rule
// match is logged as a warning and never fails the request.
func (s *Service) ResolveModel(requested, explicitOverride string) Resolution {
	snap := s.snapshots.Current()
	res := ResolveModel(requested, explicitOverride, snap.Rules, snap.Providers)
	if len(res.Ambiguous) > 0 {
		s.logger.Warn("ambiguous rename rules match the requested model",
			zap.String("model", requested),
			zap.String("chosen_pattern", res.Rule),
			zap.Strings("contenders", res.Ambiguous))
	}
	return res
}

// SelectProvider picks a provider for resolvedModel, skipping names in
// exclude. Pass nil when no providers have been attempted yet.
func (s *Service) SelectProvider(resolvedModel string, exclude map[string]bool) (*models.ProviderConfig, error) {
	snap := s.snapshots.Current()
	if len(snap.Providers) == 0 {
		return nil, ErrNoProvidersConfigured
	}
	strategy, err := ParseStrategy(snap.Settings.Strategy)
	if err != nil {
		return nil, err
	}
	return s.selector.Select(snap.Providers, resolvedModel, strategy, snap.Settings.Cooldown(), s.nowFn(), exclude)
}

// ReportOutcome feeds one dispatch result back into the health tracker
func (s *Service) ReportOutcome(providerName string, success bool) {
	if success {
		s.tracker.RecordSuccess(providerName)
		return
	}
	s.tracker.RecordFailure(providerName, s.nowFn())
}

// Settings returns the active snapshot's load balancer settings
func (s *Service) Settings() models.RoutingSettings {
	return s.snapshots.Current().Settings
}
