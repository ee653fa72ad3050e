package routing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/health"
)

// staticSnapshots serves a fixed snapshot, standing in for the config loader
type staticSnapshots struct {
	snap *models.RoutingSnapshot
}

func (s *staticSnapshots) Current() *models.RoutingSnapshot { return s.snap }

func newTestService(t *testing.T, snap *models.RoutingSnapshot) (*Service, *health.Tracker) {
	t.Helper()
	tracker := health.NewTracker()
	svc := NewService(&staticSnapshots{snap: snap}, tracker, zap.NewNop())
	return svc, tracker
}

func failoverSnapshot() *models.RoutingSnapshot {
	return &models.RoutingSnapshot{
		Providers: []models.ProviderConfig{
			{Name: "P1", Type: models.ProviderTypeAnthropic, BaseURL: "https://p1.example.com", Models: []string{"claude-opus-4-5"}},
			{Name: "P2", Type: models.ProviderTypeAnthropic, BaseURL: "https://p2.example.com", Models: []string{"claude-opus-4-5"}},
		},
		Rules: models.RenameRules{
			"claude-haiku-*": "claude-haiku-4-5",
		},
		Settings: models.RoutingSettings{
			Strategy:   "failover",
			CooldownMs: 60000,
		},
	}
}

func TestServiceResolveModel(t *testing.T) {
	svc, _ := newTestService(t, failoverSnapshot())

	res := svc.ResolveModel("claude-haiku-4-5-20251001", "")
	assert.Equal(t, "claude-haiku-4-5", res.Model)
	assert.Equal(t, SourceRename, res.Source)

	res = svc.ResolveModel("claude-opus-4-5", "")
	assert.Equal(t, "claude-opus-4-5", res.Model)
	assert.Equal(t, SourceDirect, res.Source)

	res = svc.ResolveModel("anything", "forced-model")
	assert.Equal(t, "forced-model", res.Model)
	assert.Equal(t, SourceOverride, res.Source)
}

func TestServiceFailoverSequence(t *testing.T) {
	svc, _ := newTestService(t, failoverSnapshot())

	chosen, err := svc.SelectProvider("claude-opus-4-5", nil)
	assert.NoError(t, err)
	assert.Equal(t, "P1", chosen.Name)

	// A failure report moves selection to the next-earliest candidate.
	svc.ReportOutcome("P1", false)

	chosen, err = svc.SelectProvider("claude-opus-4-5", nil)
	assert.NoError(t, err)
	assert.Equal(t, "P2", chosen.Name)

	// A single success fully restores the original priority.
	svc.ReportOutcome("P1", true)

	chosen, err = svc.SelectProvider("claude-opus-4-5", nil)
	assert.NoError(t, err)
	assert.Equal(t, "P1", chosen.Name)
}

func TestServiceCooldownExpiry(t *testing.T) {
	svc, _ := newTestService(t, failoverSnapshot())

	t0 := time.Now()
	svc.nowFn = func() time.Time { return t0 }

	svc.ReportOutcome("P1", false)

	chosen, err := svc.SelectProvider("claude-opus-4-5", nil)
	assert.NoError(t, err)
	assert.Equal(t, "P2", chosen.Name)

	// 61s later, with no further reports, P1 is eligible again and failover
	// priority puts it back in front.
	svc.nowFn = func() time.Time { return t0.Add(61 * time.Second) }

	chosen, err = svc.SelectProvider("claude-opus-4-5", nil)
	assert.NoError(t, err)
	assert.Equal(t, "P1", chosen.Name)
}

func TestServiceAllUnhealthy(t *testing.T) {
	svc, _ := newTestService(t, failoverSnapshot())

	svc.ReportOutcome("P1", false)
	svc.ReportOutcome("P2", false)

	_, err := svc.SelectProvider("claude-opus-4-5", nil)

	var allUnhealthy *AllProvidersUnhealthyError
	assert.True(t, errors.As(err, &allUnhealthy))
	assert.Equal(t, "claude-opus-4-5", allUnhealthy.Model)
	assert.Len(t, allUnhealthy.Candidates, 2)
}

func TestServiceNoProvidersConfigured(t *testing.T) {
	svc, _ := newTestService(t, &models.RoutingSnapshot{
		Settings: models.RoutingSettings{Strategy: "failover"},
	})

	_, err := svc.SelectProvider("claude-opus-4-5", nil)
	assert.ErrorIs(t, err, ErrNoProvidersConfigured)
}

func TestServiceSettings(t *testing.T) {
	svc, _ := newTestService(t, failoverSnapshot())

	settings := svc.Settings()
	assert.Equal(t, "failover", settings.Strategy)
	assert.Equal(t, 60*time.Second, settings.Cooldown())
}
