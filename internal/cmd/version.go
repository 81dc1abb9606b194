package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/output"
	"github.com/Mearman/mcp-wayback-machine/internal/server/handlers"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, dependency and runtime details.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !extended {
			_, err := fmt.Fprintf(out, "%s %s\n", appid.BinaryName, appid.Version)
			return err
		}

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		info := handlers.CurrentVersion()
		if format == output.FormatJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}

		_, _ = fmt.Fprintf(out, "%s %s\n", info.App.Binary, info.App.Version)
		_, _ = fmt.Fprintf(out, "Commit: %s\n", info.App.Commit)
		_, _ = fmt.Fprintf(out, "Built: %s\n", info.App.BuildDate)
		_, _ = fmt.Fprintf(out, "Go: %s (%s)\n\n", info.App.GoVersion, info.Runtime.Platform)
		_, _ = fmt.Fprintf(out, "Gofulmen: %s\n", info.Dependencies.Gofulmen)
		_, err = fmt.Fprintf(out, "Crucible: %s\n", info.Dependencies.Crucible)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
