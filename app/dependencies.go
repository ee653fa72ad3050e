package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/config"
	"github.com/modelgate/modelgate/internal/observability"
	"github.com/modelgate/modelgate/internal/router"
	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/repositories"
	"github.com/modelgate/modelgate/repositories/postgres"
	"github.com/modelgate/modelgate/services/audit"
	"github.com/modelgate/modelgate/services/health"
	"github.com/modelgate/modelgate/services/providers"
	"github.com/modelgate/modelgate/services/providers/anthropic"
	"github.com/modelgate/modelgate/services/providers/openai"
	"github.com/modelgate/modelgate/services/ratelimit"
	"github.com/modelgate/modelgate/services/routing"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Routing state
	Loader   *config.SnapshotLoader
	Tracker  *health.Tracker
	Registry *providers.Registry
	Routing  *routing.Service

	// Decision auditing; all nil when no audit database is configured
	DB            *postgres.DB
	Decisions     repositories.DecisionRepository
	DecisionStore *audit.Store

	// Dispatch
	Dispatcher *router.Dispatcher

	// Limiter is nil when rate limiting is disabled
	Limiter     *ratelimit.Limiter
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  observability.NewMetrics(),
		Tracker:  health.NewTracker(),
		Registry: providers.NewRegistry(),
	}

	if err := deps.initRouting(); err != nil {
		return nil, fmt.Errorf("failed to initialize routing: %w", err)
	}

	if err := deps.initAudit(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize decision auditing: %w", err)
	}

	deps.initDispatcher()
	deps.initRateLimit()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRouting loads the routing snapshot and keeps the provider registry in
// lockstep with it across reloads. Callbacks are registered before the first
// Load so the initial snapshot populates the registry too.
func (d *Dependencies) initRouting() error {
	loader := config.NewSnapshotLoader(d.Config.Routing.ConfigPath, d.Logger)

	loader.OnSwap(func(snap *models.RoutingSnapshot) {
		d.Registry.Replace(snap.Providers, buildAdapters(snap.Providers))
		d.Metrics.IncSnapshotReload("success")
	})
	loader.OnReloadError(func(err error) {
		d.Metrics.IncSnapshotReload("error")
	})

	if err := loader.Load(); err != nil {
		return err
	}

	d.Loader = loader
	d.Routing = routing.NewService(loader, d.Tracker, d.Logger)

	if d.Config.Routing.Watch {
		loader.Watch()
		d.Logger.Info("watching routing config for changes",
			zap.String("path", d.Config.Routing.ConfigPath))
	}

	return nil
}

// initAudit connects the audit database and starts the async decision store.
// A missing DATABASE_URL disables auditing entirely.
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	if cfg.Audit.Database == nil {
		d.Logger.Info("decision auditing disabled, no audit database configured")
		return nil
	}

	db, err := postgres.NewDB(*cfg.Audit.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to audit database: %w", err)
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	storeCfg := audit.DefaultConfig()
	storeCfg.BufferSize = cfg.Audit.BufferSize

	repo := postgres.NewDecisionRepository(db, d.Logger)
	store := audit.NewStore(repo, d.Logger, storeCfg)
	if err := store.Start(); err != nil {
		_ = db.Close()
		return err
	}

	d.DB = db
	d.Decisions = repo
	d.DecisionStore = store
	return nil
}

// initDispatcher wires the dispatch loop. The audit sink must stay a nil
// interface, not a typed nil pointer, when auditing is disabled.
func (d *Dependencies) initDispatcher() {
	var sink router.AuditSink
	if d.DecisionStore != nil {
		sink = d.DecisionStore
	}
	d.Dispatcher = router.NewDispatcher(d.Routing, d.Registry, d.Tracker, sink, d.Metrics, d.Logger)
}

// initRateLimit builds the per-client limiter and starts its sweeper. Left
// nil when RATE_LIMIT_PER_MINUTE is unset so routes skip the middleware.
func (d *Dependencies) initRateLimit() {
	if d.Config.Server.RateLimitPerMinute <= 0 {
		return
	}

	d.Limiter = ratelimit.NewLimiter(d.Config.Server.RateLimitPerMinute, d.Logger)

	sweepCtx, cancel := context.WithCancel(context.Background())
	d.sweepCancel = cancel
	d.sweepDone = make(chan struct{})
	go func() {
		defer close(d.sweepDone)
		d.Limiter.StartSweeper(sweepCtx, time.Minute)
	}()

	d.Logger.Info("per-client rate limiting enabled",
		zap.Int("requests_per_minute", d.Config.Server.RateLimitPerMinute))
}

// buildAdapters constructs one adapter per provider config. Config validation
// already rejected unknown provider types.
func buildAdapters(configs []models.ProviderConfig) map[string]providers.Provider {
	adapters := make(map[string]providers.Provider, len(configs))
	for i := range configs {
		switch configs[i].Type {
		case models.ProviderTypeAnthropic:
			adapters[configs[i].Name] = anthropic.NewAnthropicAdapter(configs[i])
		case models.ProviderTypeOpenAI:
			adapters[configs[i].Name] = openai.NewOpenAIAdapter(configs[i])
		}
	}
	return adapters
}

// Close gracefully shuts down all dependencies. The decision store is drained
// before the database closes underneath it.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.sweepCancel != nil {
		d.sweepCancel()
		<-d.sweepDone
		d.sweepCancel = nil
	}

	if d.DecisionStore != nil {
		if err := d.DecisionStore.Stop(d.Config.Server.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop decision store: %w", err))
		} else {
			d.Logger.Info("decision store drained")
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
