package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/modelgate/modelgate/app"
	"github.com/modelgate/modelgate/handlers"
	"github.com/modelgate/modelgate/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware. No global timeout: streamed completions run for
	// minutes, and per-attempt deadlines already live in the adapters.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			"X-Request-ID", "X-Modelgate-Model",
			"Anthropic-Version", "Anthropic-Beta",
		},
		ExposedHeaders: []string{"X-Request-ID", "X-Modelgate-Provider"},
		MaxAge:         300,
	}))

	proxy := handlers.NewProxyHandler(deps.Dispatcher, deps.Config.Server.MaxBodyBytes, deps.Logger)
	catalog := handlers.NewModelsHandler(deps.Registry, deps.Logger)
	admin := handlers.NewAdminHandler(deps.Loader, deps.Registry, deps.Tracker, deps.Decisions, deps.Logger)

	// The checker must stay a nil interface when auditing is disabled
	var dbChecker handlers.DatabaseChecker
	if deps.DB != nil {
		dbChecker = deps.DB
	}
	health := handlers.NewHealthHandler(deps.Loader, dbChecker, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Completion proxy; both dialect paths feed the same dispatcher.
	// The rate limit guards only this group, never probes or operator calls.
	r.Route("/v1", func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(middleware.RateLimit(deps.Limiter, deps.Logger))
		}
		r.Post("/messages", proxy.HandleCompletion)
		r.Post("/chat/completions", proxy.HandleCompletion)
		r.Get("/models", catalog.HandleListModels)
	})

	// Operator endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Get("/providers", admin.HandleListProviders)
		r.Get("/routing", admin.HandleGetRouting)
		r.Post("/reload", admin.HandleReload)
		r.Get("/decisions", admin.HandleListDecisions)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
