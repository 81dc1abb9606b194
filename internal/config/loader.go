// Package config provides centralized configuration management for wayback.
// Defaults are registered on a viper instance, which then layers the config
// file, WAYBACK_* environment variables and bound flags on top. The merged
// settings are decoded into Config with mapstructure.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
)

// ErrInvalid wraps every validation failure of Load.
var ErrInvalid = errors.New("invalid configuration")

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Fetch façade defaults
	v.SetDefault("fetch.backend", "direct")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.cache_ttl", "1h")
	v.SetDefault("fetch.cache_dir", DefaultCacheDir())
	v.SetDefault("fetch.max_cache_size", 50<<20)
	v.SetDefault("fetch.user_agent", "mcp-wayback-machine (+https://github.com/Mearman/mcp-wayback-machine)")
	v.SetDefault("fetch.headers", map[string]string{})
	v.SetDefault("fetch.redis_addr", "")

	// Outbound rate limit defaults
	v.SetDefault("rate_limit.max_requests", 15)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.slack", "100ms")
	v.SetDefault("rate_limit.margin", 1.0)

	// Archive endpoints
	v.SetDefault("wayback.base_url", "https://web.archive.org")
	v.SetDefault("wayback.availability_url", "https://archive.org")
	v.SetDefault("wayback.status_scan_limit", 10000)
}

// Load decodes the settings held by v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("viper instance is required")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg.Fetch.Headers = RestoreHeaderCase(cfg.Fetch.Headers, v.ConfigFileUsed())

	if strings.TrimSpace(cfg.Fetch.CacheDir) == "" {
		cfg.Fetch.CacheDir = DefaultCacheDir()
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = filepath.Join(cfg.Fetch.CacheDir, "responses.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var problems []string

	if c.RateLimit.MaxRequests <= 0 {
		problems = append(problems, "rate_limit.max_requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		problems = append(problems, "rate_limit.window must be positive")
	}
	if c.RateLimit.Margin < 0 || c.RateLimit.Margin > 1 {
		problems = append(problems, "rate_limit.margin must be within [0, 1]")
	}
	if c.Fetch.Timeout < 0 {
		problems = append(problems, "fetch.timeout must not be negative")
	}
	if strings.TrimSpace(c.Wayback.BaseURL) == "" {
		problems = append(problems, "wayback.base_url is required")
	}
	if strings.TrimSpace(c.Wayback.AvailabilityURL) == "" {
		problems = append(problems, "wayback.availability_url is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be within [0, 65535]")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultCacheDir returns the XDG-compliant cache directory for the app.
func DefaultCacheDir() string {
	dir := gfconfig.GetAppCacheDir(appid.ConfigName)
	if strings.TrimSpace(dir) == "" {
		return filepath.Join(".", "."+appid.BinaryName+"-cache")
	}
	return dir
}
