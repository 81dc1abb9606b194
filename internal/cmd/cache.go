package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/core/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response caches",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear every initialized cache backend",
	Long: `Clear every initialized cache backend.

A backend that fails to clear is reported and the others are still cleared.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		facade, err := do.Invoke[*fetch.Facade](a.injector)
		if err != nil {
			return err
		}

		failures := facade.ClearCaches(cmd.Context())
		out := cmd.OutOrStdout()
		for _, backend := range fetch.Backends {
			if !backend.Cached() || !facade.Available(backend) {
				continue
			}
			_, _ = fmt.Fprintf(out, "%s: cleared\n", backend)
		}
		for _, failure := range failures {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", failure)
		}
		return nil
	},
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache backends and disk usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		facade, err := do.Invoke[*fetch.Facade](a.injector)
		if err != nil {
			return err
		}
		cfg := facade.Config()

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Backend", "Available", "Notes"})
		for _, backend := range fetch.Backends {
			notes := ""
			switch backend {
			case fetch.BackendDisk:
				if disk, err := do.Invoke[*store.Store](a.injector); err == nil {
					if size, err := disk.TotalSize(cmd.Context()); err == nil {
						notes = fmt.Sprintf("%d of %d bytes, %s", size, cfg.MaxCacheSize, a.cfg.Store.Path)
					}
				}
			case fetch.BackendRedis:
				notes = cfg.RedisAddr
			}
			if backend == cfg.Backend {
				notes = joinNotes("default", notes)
			}
			t.AppendRow(table.Row{backend, yesNo(facade.Available(backend)), notes})
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return err
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd, cacheInfoCmd)
}

func joinNotes(a, b string) string {
	if b == "" {
		return a
	}
	return a + "; " + b
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
