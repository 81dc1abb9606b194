package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	"github.com/Mearman/mcp-wayback-machine/internal/output"
	"github.com/Mearman/mcp-wayback-machine/internal/server/handlers"
)

var (
	doctorOffline bool
	doctorTimeout time.Duration
)

type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type doctorReport struct {
	Status string        `json:"status"`
	Checks []doctorCheck `json:"checks"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the configuration, the cache backends and the
archive connection.

The archive check sends one HEAD request through the rate limiter; --offline
skips it. Cache failures only degrade the result, as they do for the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		report, err := runDoctor(ctx, a)
		if err != nil {
			return err
		}
		if err := renderDoctor(cmd, format, report); err != nil {
			return err
		}

		if report.Status == handlers.StatusUnhealthy {
			return ErrOperationFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip the archive reachability check")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 15*time.Second, "overall time allowed for the checks")
}

func runDoctor(ctx context.Context, a *app) (*doctorReport, error) {
	info := handlers.CurrentVersion()
	checks := []doctorCheck{
		{Name: "version", Status: handlers.StatusHealthy, Detail: fmt.Sprintf("%s %s (%s)", appid.BinaryName, info.App.Version, info.App.GoVersion)},
		{Name: "gofulmen", Status: handlers.StatusHealthy, Detail: "gofulmen " + info.Dependencies.Gofulmen + ", crucible " + info.Dependencies.Crucible},
		configFileCheck(),
		cacheDirCheck(a.cfg.Fetch.CacheDir),
	}

	registry, err := a.registry()
	if err != nil {
		return nil, err
	}

	health := handlers.NewHealthManager(appid.Version)
	registerComponentChecks(health, a.injector, registry)
	if !doctorOffline {
		client, err := do.Invoke[*wayback.Client](a.injector)
		if err != nil {
			return nil, err
		}
		health.RegisterChecker("archive", handlers.CheckerFunc(client.Ping))
	}

	results, status := health.Check(ctx)
	for _, check := range checks {
		if check.Status == handlers.StatusDegraded && status == handlers.StatusHealthy {
			status = handlers.StatusDegraded
		}
	}
	for _, name := range slices.Sorted(maps.Keys(results)) {
		check := doctorCheck{Name: name, Status: results[name]}
		if name == "archive" {
			check.Detail = a.cfg.Wayback.BaseURL
		}
		checks = append(checks, check)
	}

	if a.logger != nil {
		a.logger.Debug("doctor finished", zap.String("status", status), zap.Int("checks", len(checks)))
	}
	return &doctorReport{Status: status, Checks: checks}, nil
}

func configFileCheck() doctorCheck {
	path := viper.ConfigFileUsed()
	if path == "" {
		return doctorCheck{Name: "config_file", Status: handlers.StatusHealthy, Detail: "defaults and environment"}
	}
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{Name: "config_file", Status: handlers.StatusHealthy, Detail: path + " (not present, using defaults)"}
	}
	return doctorCheck{Name: "config_file", Status: handlers.StatusHealthy, Detail: path}
}

func cacheDirCheck(dir string) doctorCheck {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return doctorCheck{Name: "cache_dir", Status: handlers.StatusHealthy, Detail: dir}
	case os.IsNotExist(err):
		return doctorCheck{Name: "cache_dir", Status: handlers.StatusHealthy, Detail: dir + " (not created yet)"}
	case err == nil:
		return doctorCheck{Name: "cache_dir", Status: handlers.StatusDegraded, Detail: dir + " is not a directory"}
	default:
		return doctorCheck{Name: "cache_dir", Status: handlers.StatusDegraded, Detail: err.Error()}
	}
}

func renderDoctor(cmd *cobra.Command, format output.Format, report *doctorReport) error {
	out := cmd.OutOrStdout()
	if format == output.FormatJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})
	for _, check := range report.Checks {
		t.AppendRow(table.Row{check.Name, check.Status, check.Detail})
	}
	t.AppendFooter(table.Row{"overall", report.Status, ""})
	_, err := fmt.Fprintln(out, t.Render())
	return err
}
