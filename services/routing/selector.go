package routing

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/health"
)

// Strategy identifies a provider-ordering policy. The set is closed: every
// strategy shares the same support filtering, eligibility walk, and
// degradation signalling, and differs only in how candidates are ordered.
type Strategy string

const (
	// StrategyFailover orders candidates by their position in the
	// configuration list and always prefers the earliest eligible one.
	// It never rotates or balances load across requests.
	StrategyFailover Strategy = "failover"

	// StrategyRoundRobin rotates the starting candidate on every call
	StrategyRoundRobin Strategy = "round_robin"

	// StrategyRandom shuffles the candidates on every call
	StrategyRandom Strategy = "random"
)

// ParseStrategy maps a configuration string to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyFailover, StrategyRoundRobin, StrategyRandom:
		return Strategy(s), nil
	}
	return "", ErrUnknownStrategy
}

// Selector filters providers by model support, orders them per strategy, and
// picks the first eligible candidate according to the health tracker.
type Selector struct {
	tracker *health.Tracker
	rrNext  atomic.Uint64
}

// NewSelector creates a Selector backed by tracker
func NewSelector(tracker *health.Tracker) *Selector {
	return &Selector{tracker: tracker}
}

// Select picks a provider for model at now.
//
// Providers whose model set excludes model are never returned. Names present
// in exclude (already attempted within the current request) are skipped
// before ordering; when exclusion empties a non-empty candidate set the
// ErrCandidatesExhausted sentinel is returned so the caller stops retrying.
// When every remaining candidate is ineligible the returned
// AllProvidersUnhealthyError carries the full ordered candidate list.
func (s *Selector) Select(providers []models.ProviderConfig, model string, strategy Strategy, cooldown time.Duration, now time.Time, exclude map[string]bool) (*models.ProviderConfig, error) {
	var candidates []models.ProviderConfig
	excluded := 0
	for i := range providers {
		if !providers[i].SupportsModel(model) {
			continue
		}
		if exclude[providers[i].Name] {
			excluded++
			continue
		}
		candidates = append(candidates, providers[i])
	}
	if len(candidates) == 0 {
		if excluded > 0 {
			return nil, ErrCandidatesExhausted
		}
		return nil, &UnsupportedModelError{Model: model}
	}

	ordered := s.order(candidates, strategy)
	for i := range ordered {
		if s.tracker.IsEligible(ordered[i].Name, now, cooldown) {
			chosen := ordered[i]
			return &chosen, nil
		}
	}

	return nil, &AllProvidersUnhealthyError{Model: model, Candidates: ordered}
}

// order arranges candidates per the strategy. Candidates arrive in
// configuration-list order, which is exactly what failover wants.
func (s *Selector) order(candidates []models.ProviderConfig, strategy Strategy) []models.ProviderConfig {
	ordered := make([]models.ProviderConfig, len(candidates))
	copy(ordered, candidates)

	switch strategy {
	case StrategyRoundRobin:
		offset := int((s.rrNext.Add(1) - 1) % uint64(len(ordered)))
		rotated := make([]models.ProviderConfig, 0, len(ordered))
		rotated = append(rotated, ordered[offset:]...)
		rotated = append(rotated, ordered[:offset]...)
		return rotated
	case StrategyRandom:
		rand.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}
	return ordered
}
