package providers

import (
	"errors"
	"sync"

	"github.com/modelgate/modelgate/models"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")
)

// Registry holds the adapters for one snapshot generation. Hot reload swaps
// the whole contents through Replace; readers always see one consistent
// generation.
type Registry struct {
	mu       sync.RWMutex
	ordered  []models.ProviderConfig
	adapters map[string]Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Provider)}
}

// Replace installs a new generation of provider configs and their adapters.
// The configs slice keeps the administrator's ordering; adapters is keyed by
// provider name.
func (r *Registry) Replace(configs []models.ProviderConfig, adapters map[string]Provider) {
	ordered := make([]models.ProviderConfig, len(configs))
	copy(ordered, configs)

	r.mu.Lock()
	r.ordered = ordered
	r.adapters = adapters
	r.mu.Unlock()
}

// Get retrieves the adapter for a provider name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[name]
	if !exists {
		return nil, ErrProviderNotFound
	}
	return adapter, nil
}

// Providers returns the provider configs in configuration order
func (r *Registry) Providers() []models.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ProviderConfig, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the provider names in configuration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ordered))
	for i := range r.ordered {
		names = append(names, r.ordered[i].Name)
	}
	return names
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Models returns every model any provider declares, deduplicated, in
// configuration order of first appearance
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for i := range r.ordered {
		for _, model := range r.ordered[i].Models {
			if seen[model] {
				continue
			}
			seen[model] = true
			out = append(out, model)
		}
	}
	return out
}

// OwnerOf returns the name of the earliest-configured provider declaring
// model; ok is false when none does
func (r *Registry) OwnerOf(model string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.ordered {
		if r.ordered[i].SupportsModel(model) {
			return r.ordered[i].Name, true
		}
	}
	return "", false
}
