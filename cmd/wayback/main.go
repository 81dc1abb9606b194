package main

import (
	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/cmd"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2025-10-28"
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	appid.Version = version
	appid.Commit = commit
	appid.BuildDate = buildDate

	if err := cmd.Execute(); err != nil {
		cmd.Exit(err)
	}
}
