package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/config"
	"github.com/Mearman/mcp-wayback-machine/internal/core/engine"
	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/core/store"
	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	"github.com/Mearman/mcp-wayback-machine/internal/observability"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// loadConfig decodes the global viper instance.
func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	return config.Load(viper.GetViper())
}

// newInjector registers the service graph. Services are built lazily on
// first Invoke; injector.Shutdown closes the cache stores.
func newInjector(ctx context.Context, cfg *config.Config, logger *logging.Logger) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)

	do.Provide(injector, func(i *do.Injector) (*engine.RateLimiter, error) {
		return newLimiter(cfg.RateLimit), nil
	})

	do.Provide(injector, func(i *do.Injector) (*store.Store, error) {
		return store.OpenCache(ctx, cfg.Store, cfg.Fetch.MaxCacheSize)
	})

	do.Provide(injector, func(i *do.Injector) (*store.RedisCache, error) {
		return store.DialRedisCache(ctx, cfg.Fetch.RedisAddr)
	})

	do.Provide(injector, func(i *do.Injector) (*fetch.Facade, error) {
		return newFacade(i, cfg, logger)
	})

	do.Provide(injector, func(i *do.Injector) (*wayback.Client, error) {
		facade, err := do.Invoke[*fetch.Facade](i)
		if err != nil {
			return nil, err
		}
		return &wayback.Client{
			Fetcher:         facade,
			Limiter:         do.MustInvoke[*engine.RateLimiter](i),
			BaseURL:         cfg.Wayback.BaseURL,
			AvailabilityURL: cfg.Wayback.AvailabilityURL,
			StatusScanLimit: cfg.Wayback.StatusScanLimit,
			Logger:          logger,
		}, nil
	})

	do.Provide(injector, func(i *do.Injector) (*tools.Registry, error) {
		client, err := do.Invoke[*wayback.Client](i)
		if err != nil {
			return nil, err
		}
		return tools.NewWaybackRegistry(client)
	})

	return injector
}

func newLimiter(cfg config.RateLimitConfig) *engine.RateLimiter {
	limiter := engine.NewRateLimiter(engine.RateLimit{
		RequestsPerWindow: cfg.MaxRequests,
		WindowDuration:    cfg.Window,
	})
	if cfg.Slack > 0 {
		limiter.Slack = cfg.Slack
	}
	if cfg.Margin > 0 && cfg.Margin < 1 {
		limiter.ApplySafetyMargin(cfg.Margin)
	}
	return limiter
}

// fetchConfig converts the file-level settings into façade defaults.
func fetchConfig(cfg config.FetchConfig) (fetch.Config, error) {
	backend, err := fetch.ParseBackend(cfg.Backend)
	if err != nil {
		return fetch.Config{}, err
	}

	out := fetch.DefaultConfig()
	out.Backend = backend
	out.Timeout = cfg.Timeout
	out.CacheTTL = cfg.CacheTTL
	out.CacheDir = cfg.CacheDir
	out.MaxCacheSize = cfg.MaxCacheSize
	out.RedisAddr = cfg.RedisAddr
	if strings.TrimSpace(cfg.UserAgent) != "" {
		out.UserAgent = cfg.UserAgent
	}
	if headers := fetch.HeadersFrom(cfg.Headers); headers != nil {
		out.Headers = headers
	}
	return out, nil
}

// newFacade wires every cache that can be initialized. A cache that fails to
// open is left out, and requests for it degrade to direct fetches.
func newFacade(i *do.Injector, cfg *config.Config, logger *logging.Logger) (*fetch.Facade, error) {
	fetchCfg, err := fetchConfig(cfg.Fetch)
	if err != nil {
		return nil, err
	}

	opts := []fetch.FacadeOption{
		fetch.WithCache(fetch.BackendMemory, fetch.NewMemoryCache(fetchCfg.MaxCacheSize)),
	}
	if logger != nil {
		opts = append(opts, fetch.WithLogger(logger))
	}

	if disk, err := do.Invoke[*store.Store](i); err == nil {
		opts = append(opts, fetch.WithCache(fetch.BackendDisk, disk))
	} else if fetchCfg.Backend == fetch.BackendDisk {
		warn(logger, "disk cache unavailable", zap.Error(err))
	} else if logger != nil {
		logger.Debug("disk cache unavailable", zap.Error(err))
	}

	if strings.TrimSpace(fetchCfg.RedisAddr) != "" {
		if redisCache, err := do.Invoke[*store.RedisCache](i); err == nil {
			opts = append(opts, fetch.WithCache(fetch.BackendRedis, redisCache))
		} else {
			warn(logger, "redis cache unavailable", zap.Error(err))
		}
	}

	return fetch.NewFacade(fetchCfg, fetch.NewClient(fetchCfg.Timeout), opts...)
}

func warn(logger *logging.Logger, msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Warn(msg, fields...)
	}
}

// callOptions reads the per-invocation cache flags.
func callOptions(cmd *cobra.Command) (wayback.CallOptions, error) {
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return wayback.CallOptions{}, err
	}
	return wayback.CallOptions{NoCache: noCache}, nil
}

// app bundles what a command needs after configuration is loaded.
type app struct {
	cfg      *config.Config
	injector *do.Injector
	logger   *logging.Logger
}

func newApp(ctx context.Context, logger *logging.Logger) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.CLILogger
	}
	return &app{cfg: cfg, injector: newInjector(ctx, cfg, logger), logger: logger}, nil
}

func (a *app) registry() (*tools.Registry, error) {
	registry, err := do.Invoke[*tools.Registry](a.injector)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	return registry, nil
}

func (a *app) close() {
	if err := a.injector.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
		warn(a.logger, "shutdown returned error", zap.Error(err))
	}
}
