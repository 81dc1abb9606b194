// Package appid holds the identity values shared by the CLI, config layer
// and servers.
package appid

const (
	// BinaryName is the installed command name.
	BinaryName = "wayback"
	// ServerName is the name advertised to MCP clients.
	ServerName = "mcp-wayback-machine"
	// ConfigName selects the XDG config and cache directories.
	ConfigName = "wayback"
	// EnvPrefix namespaces environment overrides, e.g. WAYBACK_FETCH_BACKEND.
	EnvPrefix = "WAYBACK"
)

// Version information, overridden at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
