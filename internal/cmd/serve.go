package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/config"
	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/core/store"
	"github.com/Mearman/mcp-wayback-machine/internal/observability"
	"github.com/Mearman/mcp-wayback-machine/internal/server"
	"github.com/Mearman/mcp-wayback-machine/internal/server/handlers"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the archive tools over HTTP",
	Long: `Serve the archive tools over HTTP.

Routes:
  GET  /tools             list tools with their input schemas
  POST /tools/{name}      call a tool with a JSON argument object
  GET  /health[/live|/ready|/startup], /version, /metrics

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file and apply the fetch settings`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := observability.InitServerLogger(appid.ServerName, level); err != nil {
		return err
	}
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(appid.BinaryName, cfg.Metrics.Port); err != nil {
			logger.Warn("Metrics disabled", zap.Error(err))
		}
	}

	call, err := callOptions(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer a.close()

	registry, err := a.registry()
	if err != nil {
		return err
	}

	health := handlers.NewHealthManager(appid.Version)
	registerHealthChecks(health, a.injector, registry)

	srv, err := server.New(server.Options{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimitRPS:    cfg.Server.RateLimitRPS,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		Registry:        registry,
		Call:            call,
		Health:          health,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Initializing server",
		zap.String("service", appid.ServerName),
		zap.String("version", appid.Version),
		zap.String("fetch_backend", cfg.Fetch.Backend),
		zap.Int("rate_limit", cfg.RateLimit.MaxRequests),
		zap.Duration("rate_window", cfg.RateLimit.Window),
		zap.Int("metrics_port", observability.MetricsPort()))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Shutdown handlers run LIFO: server first, logger flush last.
	signals.OnShutdown(func(context.Context) error {
		if err := logger.Sync(); err != nil {
			logger.Debug("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(context.Context) error {
		return reloadFetchConfig(a.injector, logger)
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- srv.Start(ctx)
	}()
	go func() {
		if err := signals.Listen(ctx); err != nil && ctx.Err() == nil {
			errChan <- err
		}
	}()

	return <-errChan
}

// registerHealthChecks makes the registry required and each cache optional.
func registerHealthChecks(health *handlers.HealthManager, injector *do.Injector, registry *tools.Registry) {
	registerComponentChecks(health, injector, registry)
	health.RegisterOptional("telemetry", handlers.CheckerFunc(func(context.Context) error {
		if observability.TelemetrySystem == nil {
			return errors.New("telemetry not initialized")
		}
		return nil
	}))
}

// registerComponentChecks covers the tool registry and every initialized
// cache backend.
func registerComponentChecks(health *handlers.HealthManager, injector *do.Injector, registry *tools.Registry) {
	health.RegisterChecker("tool_registry", handlers.CheckerFunc(func(context.Context) error {
		if len(registry.List()) == 0 {
			return errors.New("no tools registered")
		}
		return nil
	}))

	facade := do.MustInvoke[*fetch.Facade](injector)
	if facade.Available(fetch.BackendDisk) {
		if disk, err := do.Invoke[*store.Store](injector); err == nil {
			health.RegisterOptional("disk_cache", handlers.CheckerFunc(disk.Ping))
		}
	}
	if facade.Available(fetch.BackendRedis) {
		if redisCache, err := do.Invoke[*store.RedisCache](injector); err == nil {
			health.RegisterOptional("redis_cache", handlers.CheckerFunc(redisCache.Ping))
		}
	}
}

// reloadFetchConfig re-reads the config file and applies its fetch section
// atomically. Other sections need a restart.
func reloadFetchConfig(injector *do.Injector, logger *logging.Logger) error {
	if err := viper.ReadInConfig(); err != nil {
		logger.Error("Failed to reload config file", zap.String("file", viper.ConfigFileUsed()), zap.Error(err))
		return err
	}

	patch := viper.GetStringMap("fetch")
	if len(patch) == 0 {
		logger.Info("Config reloaded; no fetch section to apply")
		return nil
	}

	if raw, ok := patch["headers"]; ok {
		patch["headers"] = config.RestoreHeaderCase(fetch.HeadersFrom(raw), viper.ConfigFileUsed())
	}

	facade, err := do.Invoke[*fetch.Facade](injector)
	if err != nil {
		return err
	}
	if err := facade.Update(patch); err != nil {
		logger.Error("Rejected fetch config on reload", zap.Error(err))
		return err
	}

	logger.Info("Fetch configuration reloaded", zap.String("file", viper.ConfigFileUsed()))
	return nil
}
