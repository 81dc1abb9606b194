package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	apperrors "github.com/Mearman/mcp-wayback-machine/internal/errors"
	"github.com/Mearman/mcp-wayback-machine/internal/metrics"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

type listToolsOutput struct {
	Body struct {
		Tools []tools.Descriptor `json:"tools"`
	}
}

type callToolInput struct {
	Name    string         `path:"name" doc:"Tool name, as listed by GET /tools"`
	NoCache bool           `query:"no_cache" doc:"Bypass response caches for this call"`
	Backend string         `query:"backend" enum:"direct,memory,disk,redis" doc:"Fetch backend override for this call"`
	Body    map[string]any `required:"false"`
}

type callToolOutput struct {
	Body *wayback.Result
}

// toolError renders through huma with the same body shape as every other
// error response of the server.
type toolError struct {
	status int
	Detail apperrors.HTTPErrorDetail `json:"error"`
}

func (e *toolError) Error() string  { return e.Detail.Message }
func (e *toolError) GetStatus() int { return e.status }

func newToolError(ctx context.Context, err error) *toolError {
	envelope := apperrors.FromError(ctx, err)
	status := apperrors.HTTPStatusFromCode(envelope.Code)
	metrics.RecordError(envelope.Code, status)
	return &toolError{
		status: status,
		Detail: apperrors.HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   apperrors.ResponseDetails(envelope),
			RequestID: envelope.CorrelationID,
		},
	}
}

func registerToolRoutes(api huma.API, registry *tools.Registry, defaults wayback.CallOptions) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        "/tools",
		Summary:     "List tools",
		Description: "Lists every archive tool with its JSON input schema.",
		Tags:        []string{"Tools"},
	}, func(ctx context.Context, _ *struct{}) (*listToolsOutput, error) {
		out := &listToolsOutput{}
		out.Body.Tools = registry.List()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "call-tool",
		Method:      http.MethodPost,
		Path:        "/tools/{name}",
		Summary:     "Call a tool",
		Description: "Validates the JSON body against the tool schema and runs the tool. Remote failures are reported in the result with success=false.",
		Tags:        []string{"Tools"},
	}, func(ctx context.Context, input *callToolInput) (*callToolOutput, error) {
		call := defaults
		if input.NoCache {
			call.NoCache = true
		}
		if input.Backend != "" {
			call.Backend = fetch.Backend(input.Backend)
		}

		start := time.Now()
		result, err := registry.Call(ctx, input.Name, input.Body, call)
		if err != nil {
			outcome := "error"
			if stderrors.Is(err, tools.ErrInvalidInput) {
				outcome = "rejected"
			}
			metrics.RecordToolCall(input.Name, outcome, time.Since(start))
			return nil, newToolError(ctx, err)
		}

		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		metrics.RecordToolCall(input.Name, outcome, time.Since(start))
		return &callToolOutput{Body: result}, nil
	})
}
