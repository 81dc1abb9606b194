package observability_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/observability"
)

func TestLoggers(t *testing.T) {
	t.Run("CLI logger creation", func(t *testing.T) {
		if err := observability.InitCLILogger("wayback-test", true); err != nil {
			t.Fatalf("InitCLILogger: %v", err)
		}
		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}
		observability.CLILogger.Debug("cli debug message", zap.String("test", "value"))
	})

	t.Run("Structured logger creation", func(t *testing.T) {
		if err := observability.InitServerLogger("wayback-test", "debug"); err != nil {
			t.Fatalf("InitServerLogger: %v", err)
		}
		if observability.ServerLogger == nil {
			t.Fatal("server logger should not be nil after initialization")
		}
		observability.ServerLogger.Info("structured message", zap.String("component", "test"))
	})
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"chatty":  "INFO",
	}
	for in, want := range cases {
		if got := observability.ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
