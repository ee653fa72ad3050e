package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/services/routing"
	"github.com/modelgate/modelgate/utils"
)

// Defaults applied when the routing section omits a setting
const (
	DefaultStrategy    = "failover"
	DefaultCooldownMs  = 60_000
	DefaultMaxAttempts = 3
)

// defaultKeyEnv names the conventional API key variable per provider type,
// used when a provider does not set api_key_env
var defaultKeyEnv = map[models.ProviderType]string{
	models.ProviderTypeAnthropic: "ANTHROPIC_API_KEY",
	models.ProviderTypeOpenAI:    "OPENAI_API_KEY",
}

// fileConfig mirrors the routing YAML document
type fileConfig struct {
	Providers []models.ProviderConfig `mapstructure:"providers" validate:"required,min=1,dive"`
	Routing   routingSection          `mapstructure:"routing"`
}

type routingSection struct {
	Rules       map[string]string `mapstructure:"rules"`
	Strategy    string            `mapstructure:"strategy" validate:"omitempty,oneof=failover round_robin random"`
	CooldownMs  int64             `mapstructure:"cooldown_ms" validate:"omitempty,gt=0"`
	MaxAttempts int               `mapstructure:"max_attempts" validate:"omitempty,gt=0"`
}

// SnapshotLoader owns the routing snapshot lifecycle: initial load, manual
// reload, and file watching. Swaps are whole-snapshot and atomic, so a
// request observes exactly one generation; a rejected reload leaves the
// previous snapshot live.
type SnapshotLoader struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex // serializes reloads and callback registration
	current atomic.Pointer[models.RoutingSnapshot]
	version atomic.Uint64

	onSwap        []func(snap *models.RoutingSnapshot)
	onReloadError []func(err error)

	watcher *viper.Viper
}

// NewSnapshotLoader creates a loader for the YAML file at path
func NewSnapshotLoader(path string, logger *zap.Logger) *SnapshotLoader {
	return &SnapshotLoader{path: path, logger: logger}
}

// Current returns the live snapshot, nil before the first successful Load
func (l *SnapshotLoader) Current() *models.RoutingSnapshot {
	return l.current.Load()
}

// OnSwap registers fn to run after every successful snapshot swap,
// including the initial load. Register callbacks before calling Load.
func (l *SnapshotLoader) OnSwap(fn func(snap *models.RoutingSnapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSwap = append(l.onSwap, fn)
}

// OnReloadError registers fn to run when a reload is rejected
func (l *SnapshotLoader) OnReloadError(fn func(err error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReloadError = append(l.onReloadError, fn)
}

// Load reads and installs the first snapshot; an error here is fatal to
// startup
func (l *SnapshotLoader) Load() error {
	return l.swap()
}

// Reload re-reads the file; on any error the previous snapshot stays live
func (l *SnapshotLoader) Reload() error {
	err := l.swap()
	if err == nil {
		return nil
	}

	l.logger.Error("routing config rejected, keeping previous snapshot",
		zap.String("file", l.path),
		zap.Error(err),
	)

	l.mu.Lock()
	callbacks := append([]func(error){}, l.onReloadError...)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(err)
	}
	return err
}

// Watch re-reads the file whenever it changes on disk. Editors and
// orchestrators usually replace the file rather than rewrite it in place;
// viper's watcher follows rename and create events for us.
func (l *SnapshotLoader) Watch() {
	v := viper.New()
	v.SetConfigFile(l.path)
	v.OnConfigChange(func(event fsnotify.Event) {
		l.logger.Info("routing config changed",
			zap.String("file", event.Name),
			zap.String("op", event.Op.String()),
		)
		_ = l.Reload()
	})
	v.WatchConfig()
	l.watcher = v
}

func (l *SnapshotLoader) swap() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, warnings, err := l.read()
	if err != nil {
		return err
	}

	for _, warning := range warnings {
		l.logger.Warn("routing config warning", zap.String("detail", warning))
	}

	snap.Version = l.version.Add(1)
	snap.LoadedAt = time.Now()
	l.current.Store(snap)

	l.logger.Info("routing snapshot installed",
		zap.Uint64("version", snap.Version),
		zap.Int("providers", len(snap.Providers)),
		zap.Int("rules", len(snap.Rules)),
		zap.String("strategy", snap.Settings.Strategy),
	)

	for _, fn := range l.onSwap {
		fn(snap)
	}
	return nil
}

func (l *SnapshotLoader) read() (*models.RoutingSnapshot, []string, error) {
	v := viper.New()
	v.SetConfigFile(l.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read routing config: %w", err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, nil, fmt.Errorf("parse routing config: %w", err)
	}

	applyRoutingDefaults(&fc.Routing)

	if err := utils.ValidateStruct(&fc); err != nil {
		return nil, nil, fmt.Errorf("invalid routing config: %w", err)
	}

	if err := l.resolveProviders(fc.Providers); err != nil {
		return nil, nil, err
	}

	rules, err := buildRules(fc.Routing.Rules)
	if err != nil {
		return nil, nil, err
	}

	snap := &models.RoutingSnapshot{
		Providers: fc.Providers,
		Rules:     rules,
		Settings: models.RoutingSettings{
			Strategy:    fc.Routing.Strategy,
			CooldownMs:  fc.Routing.CooldownMs,
			MaxAttempts: fc.Routing.MaxAttempts,
		},
	}

	return snap, routing.CheckRules(rules), nil
}

// resolveProviders enforces unique names and pulls API keys out of the
// environment. The keys never appear in the YAML file itself.
func (l *SnapshotLoader) resolveProviders(providers []models.ProviderConfig) error {
	seen := make(map[string]bool, len(providers))
	for i := range providers {
		p := &providers[i]
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true

		keyEnv := p.APIKeyEnv
		explicit := keyEnv != ""
		if !explicit {
			keyEnv = defaultKeyEnv[p.Type]
		}

		p.APIKey = os.Getenv(keyEnv)
		if p.APIKey == "" {
			if explicit {
				return fmt.Errorf("provider %q: environment variable %s is empty", p.Name, keyEnv)
			}
			l.logger.Warn("provider has no API key, upstream calls will be rejected",
				zap.String("provider", p.Name),
				zap.String("env", keyEnv),
			)
		}
	}
	return nil
}

func buildRules(raw map[string]string) (models.RenameRules, error) {
	rules := make(models.RenameRules, len(raw))
	for pattern, target := range raw {
		if strings.TrimSpace(pattern) == "" {
			return nil, fmt.Errorf("rename rule with empty pattern")
		}
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("rename rule %q has empty target", pattern)
		}
		rules[pattern] = target
	}
	return rules, nil
}

func applyRoutingDefaults(r *routingSection) {
	if r.Strategy == "" {
		r.Strategy = DefaultStrategy
	}
	if r.CooldownMs == 0 {
		r.CooldownMs = DefaultCooldownMs
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
}
