package routing

import (
	"errors"
	"testing"
	"time"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/health"
)

const testCooldown = 60 * time.Second

func twoProviders() []models.ProviderConfig {
	return []models.ProviderConfig{
		{Name: "P1", Type: models.ProviderTypeAnthropic, BaseURL: "https://p1.example.com", Models: []string{"claude-opus-4-5"}},
		{Name: "P2", Type: models.ProviderTypeAnthropic, BaseURL: "https://p2.example.com", Models: []string{"claude-opus-4-5"}},
	}
}

func TestSelectFailoverPrefersEarliestConfigured(t *testing.T) {
	providers := []models.ProviderConfig{
		{Name: "dnf", Type: models.ProviderTypeAnthropic, BaseURL: "https://api.example.com", Models: []string{"claude-opus-4-5", "claude-sonnet-4-5", "claude-haiku-4-5"}},
	}
	selector := NewSelector(health.NewTracker())

	chosen, err := selector.Select(providers, "claude-opus-4-5", StrategyFailover, testCooldown, time.Now(), nil)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if chosen.Name != "dnf" {
		t.Errorf("chosen provider = %q, want %q", chosen.Name, "dnf")
	}
}

func TestSelectSkipsUnsupportedProviders(t *testing.T) {
	providers := []models.ProviderConfig{
		{Name: "openai-only", Type: models.ProviderTypeOpenAI, BaseURL: "https://p0.example.com", Models: []string{"gpt-4o"}},
		{Name: "P1", Type: models.ProviderTypeAnthropic, BaseURL: "https://p1.example.com", Models: []string{"claude-opus-4-5"}},
	}
	selector := NewSelector(health.NewTracker())

	chosen, err := selector.Select(providers, "claude-opus-4-5", StrategyFailover, testCooldown, time.Now(), nil)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if chosen.Name != "P1" {
		t.Errorf("chosen provider = %q, want %q", chosen.Name, "P1")
	}
}

func TestSelectUnsupportedModel(t *testing.T) {
	selector := NewSelector(health.NewTracker())

	_, err := selector.Select(twoProviders(), "gpt-omega", StrategyFailover, testCooldown, time.Now(), nil)

	var unsupported *UnsupportedModelError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedModelError", err)
	}
	if unsupported.Model != "gpt-omega" {
		t.Errorf("error model = %q, want %q", unsupported.Model, "gpt-omega")
	}
}

func TestSelectFailoverAfterFailure(t *testing.T) {
	tracker := health.NewTracker()
	selector := NewSelector(tracker)
	now := time.Now()

	tracker.RecordFailure("P1", now)

	chosen, err := selector.Select(twoProviders(), "claude-opus-4-5", StrategyFailover, testCooldown, now, nil)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if chosen.Name != "P2" {
		t.Errorf("chosen provider = %q, want %q", chosen.Name, "P2")
	}
}

func TestSelectCooldownRestoresPriority(t *testing.T) {
	tracker := health.NewTracker()
	selector := NewSelector(tracker)
	t0 := time.Now()

	tracker.RecordFailure("P1", t0)

	// 61s after the failure with a 60s cooldown, P1 is eligible again and
	// failover priority puts it back ahead of P2.
	later := t0.Add(61 * time.Second)
	chosen, err := selector.Select(twoProviders(), "claude-opus-4-5", StrategyFailover, testCooldown, later, nil)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if chosen.Name != "P1" {
		t.Errorf("chosen provider = %q, want %q", chosen.Name, "P1")
	}
}

func TestSelectAllUnhealthyCarriesOrderedCandidates(t *testing.T) {
	tracker := health.NewTracker()
	selector := NewSelector(tracker)
	now := time.Now()

	tracker.RecordFailure("P1", now)
	tracker.RecordFailure("P2", now)

	_, err := selector.Select(twoProviders(), "claude-opus-4-5", StrategyFailover, testCooldown, now, nil)

	var allUnhealthy *AllProvidersUnhealthyError
	if !errors.As(err, &allUnhealthy) {
		t.Fatalf("err = %v, want AllProvidersUnhealthyError", err)
	}
	if len(allUnhealthy.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(allUnhealthy.Candidates))
	}
	if allUnhealthy.Candidates[0].Name != "P1" || allUnhealthy.Candidates[1].Name != "P2" {
		t.Errorf("candidate order = [%s %s], want [P1 P2]",
			allUnhealthy.Candidates[0].Name, allUnhealthy.Candidates[1].Name)
	}
}

func TestSelectExcludesTriedProviders(t *testing.T) {
	selector := NewSelector(health.NewTracker())

	chosen, err := selector.Select(twoProviders(), "claude-opus-4-5", StrategyFailover, testCooldown, time.Now(), map[string]bool{"P1": true})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if chosen.Name != "P2" {
		t.Errorf("chosen provider = %q, want %q", chosen.Name, "P2")
	}

	_, err = selector.Select(twoProviders(), "claude-opus-4-5", StrategyFailover, testCooldown, time.Now(), map[string]bool{"P1": true, "P2": true})
	if !errors.Is(err, ErrCandidatesExhausted) {
		t.Errorf("err = %v, want ErrCandidatesExhausted", err)
	}
}

func TestSelectRoundRobinRotates(t *testing.T) {
	selector := NewSelector(health.NewTracker())
	now := time.Now()

	var order []string
	for i := 0; i < 4; i++ {
		chosen, err := selector.Select(twoProviders(), "claude-opus-4-5", StrategyRoundRobin, testCooldown, now, nil)
		if err != nil {
			t.Fatalf("Select returned error on call %d: %v", i, err)
		}
		order = append(order, chosen.Name)
	}

	want := []string{"P1", "P2", "P1", "P2"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("round robin order = %v, want %v", order, want)
		}
	}
}

func TestSelectRandomReturnsSupportingProvider(t *testing.T) {
	selector := NewSelector(health.NewTracker())
	now := time.Now()

	for i := 0; i < 20; i++ {
		chosen, err := selector.Select(twoProviders(), "claude-opus-4-5", StrategyRandom, testCooldown, now, nil)
		if err != nil {
			t.Fatalf("Select returned error: %v", err)
		}
		if chosen.Name != "P1" && chosen.Name != "P2" {
			t.Fatalf("chosen provider = %q, want P1 or P2", chosen.Name)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	for _, valid := range []string{"failover", "round_robin", "random"} {
		if _, err := ParseStrategy(valid); err != nil {
			t.Errorf("ParseStrategy(%q) returned error: %v", valid, err)
		}
	}

	if _, err := ParseStrategy("least_connections"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(unknown) err = %v, want ErrUnknownStrategy", err)
	}
}
