// Package mcpserver serves the tool registry over the Model Context Protocol
// on stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// Server adapts a tool registry to an MCP server.
type Server struct {
	registry *tools.Registry
	logger   *logging.Logger
	call     wayback.CallOptions
	mcp      *server.MCPServer
}

// New registers every registry tool with its raw JSON schema.
func New(registry *tools.Registry, logger *logging.Logger, call wayback.CallOptions) (*Server, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}

	s := &Server{
		registry: registry,
		logger:   logger,
		call:     call,
		mcp: server.NewMCPServer(
			appid.ServerName,
			appid.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	for _, descriptor := range registry.List() {
		tool := mcp.NewToolWithRawSchema(descriptor.Name, descriptor.Description, descriptor.InputSchema)
		s.mcp.AddTool(tool, s.handler(descriptor.Name))
	}

	return s, nil
}

// MCP exposes the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
// Diagnostics go to errOut so stdout carries protocol frames only.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer, errOut io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(errOut, "", log.LstdFlags))

	s.info("mcp server listening on stdio", zap.Int("tools", len(s.registry.List())))
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.registry.Call(ctx, name, request.GetArguments(), s.call)
		if err != nil {
			s.debug("tool call rejected", zap.String("tool", name), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}

		if !result.Success {
			return mcp.NewToolResultError(string(text)), nil
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}

func (s *Server) info(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Server) debug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}
