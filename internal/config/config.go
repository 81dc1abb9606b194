package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Values are layered: built-in defaults, then the config file, then
// WAYBACK_* environment variables, then command-line flags.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Wayback   WaybackConfig   `mapstructure:"wayback"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig contains HTTP tool server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimitRPS bounds inbound tool calls per second; 0 disables the limiter.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// StoreConfig points the disk cache at a libsql database.
// When both Path and URL are empty the database lives under fetch.cache_dir.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// FetchConfig holds the process-wide defaults of the fetch façade.
type FetchConfig struct {
	Backend      string            `mapstructure:"backend"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	CacheTTL     time.Duration     `mapstructure:"cache_ttl"`
	CacheDir     string            `mapstructure:"cache_dir"`
	MaxCacheSize int64             `mapstructure:"max_cache_size"`
	UserAgent    string            `mapstructure:"user_agent"`
	Headers      map[string]string `mapstructure:"headers"`
	RedisAddr    string            `mapstructure:"redis_addr"`
}

// RateLimitConfig configures the outbound sliding window.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	Slack       time.Duration `mapstructure:"slack"`
	Margin      float64       `mapstructure:"margin"`
}

// WaybackConfig locates the archive endpoints.
type WaybackConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	AvailabilityURL string `mapstructure:"availability_url"`
	StatusScanLimit int    `mapstructure:"status_scan_limit"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig controls the Prometheus exporter started by the HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}
