package cmd

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/mcpserver"
	"github.com/Mearman/mcp-wayback-machine/internal/observability"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the archive tools over MCP on stdio",
	Long: `Serve the archive tools to an MCP client over stdin/stdout.

Stdout carries protocol frames only; logs are written to stderr as JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		srv, err := mcpserver.New(registry, logger, call)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		signals.OnShutdown(func(context.Context) error {
			logger.Info("Stopping MCP server")
			cancel()
			return nil
		})
		go func() {
			if err := signals.Listen(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Signal handler error", zap.Error(err))
			}
		}()

		return srv.Serve(ctx, os.Stdin, os.Stdout, os.Stderr)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
