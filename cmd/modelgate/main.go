package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelgate/modelgate/app"
	"github.com/modelgate/modelgate/config"
	"github.com/modelgate/modelgate/internal/observability"
	"github.com/modelgate/modelgate/routes"
)

// Version is set at build time via -ldflags "-X main.Version=X.Y.Z"
var Version = "0.0.0-dev"

var rootCmd = &cobra.Command{
	Use:   "modelgate",
	Short: "Modelgate - model-routing gateway for LLM providers",
	Long: `Modelgate sits between clients and LLM provider APIs. It resolves the
requested model through rename rules, picks a healthy provider that
serves the resolved model, and streams the upstream response back
unchanged.

Providers and routing rules live in a YAML snapshot (ROUTING_CONFIG)
that hot-reloads on file change; process settings come from the
environment. Run with no arguments to start the gateway.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (same as running with no arguments)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a routing config file and exit",
	Long: `Validate loads the routing config the same way the gateway does at
startup, including API key resolution from the environment, and prints
a summary plus any rule warnings. Exits non-zero when the file would
be rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.Getenv("ROUTING_CONFIG")
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			path = "modelgate.yaml"
		}
		return runValidate(path)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("modelgate v%s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, validateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Development: cfg.IsDevelopment(),
		File:        cfg.Observability.LogFile,
		MaxSizeMB:   cfg.Observability.LogMaxSizeMB,
		MaxBackups:  cfg.Observability.LogMaxBackups,
		MaxAgeDays:  cfg.Observability.LogMaxAgeDays,
		Compress:    cfg.Observability.LogCompress,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("starting modelgate",
		zap.String("version", Version),
		zap.String("environment", cfg.Environment),
		zap.String("routing_config", cfg.Routing.ConfigPath),
	)

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.Server.TLS.Enabled),
		)

		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
		_ = deps.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("modelgate stopped")
	return nil
}

func runValidate(path string) error {
	// Warn-level console logger so rule and missing-key warnings from the
	// loader reach the operator without the startup chatter
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := logCfg.Build()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	loader := config.NewSnapshotLoader(path, logger)
	if err := loader.Load(); err != nil {
		return fmt.Errorf("routing config %s rejected: %w", path, err)
	}

	snap := loader.Current()
	fmt.Printf("routing config %s OK\n", path)
	fmt.Printf("  strategy:     %s\n", snap.Settings.Strategy)
	fmt.Printf("  cooldown:     %s\n", snap.Settings.Cooldown())
	fmt.Printf("  max attempts: %d\n", snap.Settings.MaxAttempts)
	fmt.Printf("  rules:        %d\n", len(snap.Rules))
	fmt.Printf("  providers:    %d\n", len(snap.Providers))
	for i := range snap.Providers {
		p := &snap.Providers[i]
		keyState := "key set"
		if p.APIKey == "" {
			keyState = "NO KEY"
		}
		fmt.Printf("    - %s (%s), %d models, %s\n", p.Name, p.Type, len(p.Models), keyState)
	}
	return nil
}
