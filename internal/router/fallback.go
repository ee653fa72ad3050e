package router

import (
	"time"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/health"
)

// leastRecentlyFailed picks the untried candidate whose last recorded
// failure is oldest. Candidates arrive in selection order, so ties keep the
// earlier one; a candidate with no recorded failure sorts oldest of all.
func leastRecentlyFailed(tracker *health.Tracker, candidates []models.ProviderConfig, tried map[string]bool) *models.ProviderConfig {
	var best *models.ProviderConfig
	var bestAt time.Time

	for i := range candidates {
		candidate := &candidates[i]
		if tried[candidate.Name] {
			continue
		}

		failedAt, ok := tracker.LastFailure(candidate.Name)
		if !ok {
			return candidate
		}

		if best == nil || failedAt.Before(bestAt) {
			best = candidate
			bestAt = failedAt
		}
	}

	return best
}
