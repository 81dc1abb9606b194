package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mearman/mcp-wayback-machine/internal/output"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// ErrOperationFailed is returned after a result with success=false has been
// printed, so the process exits non-zero without repeating the message.
var ErrOperationFailed = errors.New("operation failed")

var saveCmd = &cobra.Command{
	Use:   "save <url>",
	Short: "Ask the Wayback Machine to capture a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, tools.SaveURL, map[string]any{"url": args[0]})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Find the archived snapshot closest to a timestamp",
	Long: `Find the archived snapshot of a URL.

Without --timestamp the most recent snapshot is returned. Timestamps may be
YYYYMMDDhhmmss (or any prefix of it), YYYY-MM-DD, or "latest".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolArgs := map[string]any{"url": args[0]}
		if cmd.Flags().Changed("timestamp") {
			timestamp, _ := cmd.Flags().GetString("timestamp")
			toolArgs["timestamp"] = timestamp
		}
		return runTool(cmd, tools.GetArchivedURL, toolArgs)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <url>",
	Short: "List captures of a URL from the CDX index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolArgs := map[string]any{"url": args[0]}
		for _, name := range []string{"from", "to", "match-type"} {
			if cmd.Flags().Changed(name) {
				value, _ := cmd.Flags().GetString(name)
				toolArgs[flagToArg(name)] = value
			}
		}
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			toolArgs["limit"] = limit
		}
		return runTool(cmd, tools.SearchArchives, toolArgs)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <url>",
	Short: "Summarise how often a URL has been archived",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, tools.CheckArchiveStatus, map[string]any{"url": args[0]})
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the archive tools and their input schemas",
	Args:  cobra.NoArgs,
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

		registry, err := a.registry()
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatTools(registry.List())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(saveCmd, getCmd, searchCmd, statusCmd, toolsCmd)

	getCmd.Flags().StringP("timestamp", "t", "", "Target timestamp (YYYYMMDDhhmmss, YYYY-MM-DD or latest)")

	searchCmd.Flags().String("from", "", "Earliest capture date (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "Latest capture date (YYYY-MM-DD)")
	searchCmd.Flags().IntP("limit", "n", 10, "Maximum number of captures (1-1000)")
	searchCmd.Flags().String("match-type", "exact", "CDX match type: exact, prefix, host, domain")
}

func flagToArg(name string) string {
	if name == "match-type" {
		return "match_type"
	}
	return name
}

func outputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// runTool calls a registry tool, so the CLI validates arguments exactly as
// the MCP and HTTP front ends do.
func runTool(cmd *cobra.Command, name string, args map[string]any) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	call, err := callOptions(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	registry, err := a.registry()
	if err != nil {
		return err
	}

	result, err := registry.Call(cmd.Context(), name, args, call)
	if err != nil {
		return err
	}

	rendered, err := output.NewFormatter(format).FormatResult(result)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
		return err
	}

	if !result.Success {
		return ErrOperationFailed
	}
	return nil
}
