// Package cmd implements the wayback command line: one subcommand per
// archive tool plus the MCP and HTTP servers.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/config"
	"github.com/Mearman/mcp-wayback-machine/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// configErr is set when an explicitly requested config file cannot be read.
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   appid.BinaryName,
	Short: "Save, retrieve and search Wayback Machine snapshots",
	Long: appid.BinaryName + ` talks to the Internet Archive's Wayback Machine.

Each archive tool is available as a subcommand; "mcp" serves the same tools
to MCP clients over stdio and "serve" exposes them over HTTP. Outbound
requests share one sliding-window rate limiter.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep telemetry quiet until a server command starts the exporter.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath()))
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.StringP("output", "o", "table", "Output format: table, json, yaml, markdown")
	flags.Bool("no-cache", false, "Bypass response caches for this invocation")
	flags.String("backend", "", "Fetch backend: direct, memory, disk, redis")

	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("fetch.backend", flags.Lookup("backend"))
}

// initConfig layers the config file and WAYBACK_* variables over defaults.
func initConfig() {
	if err := observability.InitCLILogger(appid.BinaryName, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}

	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if path := config.DefaultConfigPath(); path != "" {
			v.SetConfigFile(path)
		}
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(appid.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil && cfgFile != "" {
		configErr = fmt.Errorf("read config %s: %w", cfgFile, err)
	}

	logger := observability.CLILogger
	if logger == nil {
		return
	}
	switch {
	case err == nil:
		logger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	case cfgFile != "":
		logger.Warn("Error reading config file", zap.String("path", cfgFile), zap.Error(err))
	default:
		logger.Debug("No config file found, using defaults and environment variables")
	}
}
