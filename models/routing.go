package models

import "time"

// RenameRules maps a model pattern to a replacement upstream model name.
// A pattern is an exact model identifier, a prefix wildcard such as
// "claude-haiku-*", or the bare "*" catch-all.
type RenameRules map[string]string

// RoutingSettings is the administrator-facing load balancer configuration
type RoutingSettings struct {
	Strategy    string `json:"strategy" mapstructure:"strategy" validate:"required,oneof=failover round_robin random"`
	CooldownMs  int64  `json:"cooldown_ms" mapstructure:"cooldown_ms" validate:"gte=0"`
	MaxAttempts int    `json:"max_attempts" mapstructure:"max_attempts" validate:"gte=0"`
}

// Cooldown returns how long a provider stays penalized after a failure
func (s RoutingSettings) Cooldown() time.Duration {
	return time.Duration(s.CooldownMs) * time.Millisecond
}

// RoutingSnapshot is one immutable generation of routing configuration.
// Hot reload builds a new snapshot and swaps it wholesale; nothing mutates
// an existing snapshot in place, so concurrent readers never see torn state.
type RoutingSnapshot struct {
	Providers []ProviderConfig
	Rules     RenameRules
	Settings  RoutingSettings
	Version   uint64
	LoadedAt  time.Time
}

// ProviderByName returns the provider with the given name, or nil
func (s *RoutingSnapshot) ProviderByName(name string) *ProviderConfig {
	for i := range s.Providers {
		if s.Providers[i].Name == name {
			return &s.Providers[i]
		}
	}
	return nil
}

// SupportingProviders returns the providers declaring model, preserving the
// configuration list order
func (s *RoutingSnapshot) SupportingProviders(model string) []ProviderConfig {
	var out []ProviderConfig
	for i := range s.Providers {
		if s.Providers[i].SupportsModel(model) {
			out = append(out, s.Providers[i])
		}
	}
	return out
}
