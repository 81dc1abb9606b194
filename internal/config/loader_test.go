package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("WAYBACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "direct", cfg.Fetch.Backend)
		assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, time.Hour, cfg.Fetch.CacheTTL)
		assert.Equal(t, int64(50<<20), cfg.Fetch.MaxCacheSize)

		assert.Equal(t, 15, cfg.RateLimit.MaxRequests)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 100*time.Millisecond, cfg.RateLimit.Slack)

		assert.Equal(t, "https://web.archive.org", cfg.Wayback.BaseURL)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
	})

	t.Run("StorePathDefaultsUnderCacheDir", func(t *testing.T) {
		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cfg.Fetch.CacheDir, "responses.db"), cfg.Store.Path)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		v := newViper(t)
		t.Setenv("WAYBACK_FETCH_BACKEND", "memory")
		t.Setenv("WAYBACK_RATE_LIMIT_MAX_REQUESTS", "5")
		t.Setenv("WAYBACK_RATE_LIMIT_WINDOW", "30s")

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Fetch.Backend)
		assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
		assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
fetch:
  backend: disk
  headers:
    X-Team: archive
wayback:
  status_scan_limit: 500
`), 0o600))

		v := newViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "disk", cfg.Fetch.Backend)
		assert.Equal(t, 500, cfg.Wayback.StatusScanLimit)
		assert.Equal(t, map[string]string{"X-Team": "archive"}, cfg.Fetch.Headers)
	})

	t.Run("NilViper", func(t *testing.T) {
		_, err := Load(nil)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero max requests": func(c *Config) { c.RateLimit.MaxRequests = 0 },
		"zero window":       func(c *Config) { c.RateLimit.Window = 0 },
		"margin above one":  func(c *Config) { c.RateLimit.Margin = 1.5 },
		"negative timeout":  func(c *Config) { c.Fetch.Timeout = -time.Second },
		"missing base url":  func(c *Config) { c.Wayback.BaseURL = " " },
		"port out of range": func(c *Config) { c.Server.Port = 70000 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(newViper(t))
			require.NoError(t, err)

			mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.True(t, strings.HasSuffix(DefaultConfigPath(), "config.yaml"))
	assert.NotEmpty(t, DefaultCacheDir())
}
