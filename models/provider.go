package models

// ProviderType identifies the upstream API dialect an adapter speaks
type ProviderType string

const (
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOpenAI    ProviderType = "openai"
)

// ProviderConfig represents one configured upstream provider.
// Immutable after load; the routing core reads it and never mutates it.
type ProviderConfig struct {
	Name string       `json:"name" mapstructure:"name" validate:"required"`
	Type ProviderType `json:"type" mapstructure:"type" validate:"required,oneof=anthropic openai"`

	// BaseURL overrides the adapter's default endpoint when set
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`

	// APIKeyEnv names the environment variable holding the provider key.
	// The key itself is resolved at load time and never serialized or logged.
	APIKeyEnv string `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	APIKey    string `json:"-" mapstructure:"-"`

	// Models is the set of model identifiers this provider is declared to
	// serve. List order is the administrator's, kept stable for tie-breaks.
	Models []string `json:"models" mapstructure:"models" validate:"required,min=1,dive,required"`

	// TimeoutSeconds bounds one upstream call, including response streaming.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
}

// SupportsModel reports whether the provider declares exact support for model
func (p *ProviderConfig) SupportsModel(model string) bool {
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}
