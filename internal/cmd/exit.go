package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/Mearman/mcp-wayback-machine/internal/config"
	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// Exit terminates the process with the exit code that classifies err.
// A failed archive result has already been printed and exits quietly.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	if stderrors.Is(err, ErrOperationFailed) {
		os.Exit(int(foundry.ExitFailure))
	}
	ExitWithCodeStderr(ExitCodeFor(err), "Command failed", err)
}

// ExitCodeFor maps an error onto a semantic foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	var envelope *errors.ErrorEnvelope
	switch {
	case stderrors.Is(err, fetch.ErrConfigInvalid), stderrors.Is(err, config.ErrInvalid):
		return foundry.ExitConfigInvalid
	case stderrors.As(err, &envelope) && envelope.Code == "CONFIG_INVALID":
		return foundry.ExitConfigInvalid
	case stderrors.Is(err, tools.ErrInvalidInput), stderrors.Is(err, tools.ErrUnknownTool):
		return foundry.ExitFailure
	case stderrors.Is(err, fetch.ErrTransport), stderrors.Is(err, fetch.ErrTimeout):
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCodeStderr prints msg and the exit code metadata to stderr, then exits.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}
