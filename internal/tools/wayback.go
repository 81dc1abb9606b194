package tools

import (
	"context"
	"fmt"

	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
)

// Tool names.
const (
	SaveURL            = "save_url"
	GetArchivedURL     = "get_archived_url"
	SearchArchives     = "search_archives"
	CheckArchiveStatus = "check_archive_status"
)

// Operations is implemented by *wayback.Client.
type Operations interface {
	Save(ctx context.Context, in wayback.SaveInput, call wayback.CallOptions) (*wayback.Result, error)
	Retrieve(ctx context.Context, in wayback.RetrieveInput, call wayback.CallOptions) (*wayback.Result, error)
	Search(ctx context.Context, in wayback.SearchInput, call wayback.CallOptions) (*wayback.Result, error)
	Status(ctx context.Context, in wayback.StatusInput, call wayback.CallOptions) (*wayback.Result, error)
}

const saveSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "format": "uri", "pattern": "^https?://", "description": "URL to capture"}
  },
  "required": ["url"],
  "additionalProperties": false
}`

const getSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "format": "uri", "pattern": "^https?://", "description": "URL to look up"},
    "timestamp": {"type": "string", "description": "YYYYMMDDhhmmss (or a prefix), YYYY-MM-DD, or \"latest\""}
  },
  "required": ["url"],
  "additionalProperties": false
}`

const searchSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "format": "uri", "pattern": "^https?://", "description": "URL or URL prefix to search"},
    "from": {"type": "string", "description": "Earliest capture date (YYYY-MM-DD or timestamp prefix)"},
    "to": {"type": "string", "description": "Latest capture date (YYYY-MM-DD or timestamp prefix)"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 1000, "default": 10},
    "match_type": {"type": "string", "enum": ["exact", "prefix", "host", "domain"], "default": "exact"}
  },
  "required": ["url"],
  "additionalProperties": false
}`

const statusSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "format": "uri", "pattern": "^https?://", "description": "URL to summarise"}
  },
  "required": ["url"],
  "additionalProperties": false
}`

// NewWaybackRegistry registers the four archive tools backed by ops.
func NewWaybackRegistry(ops Operations) (*Registry, error) {
	if ops == nil {
		return nil, fmt.Errorf("archive operations are required")
	}

	r := NewRegistry()

	entries := []struct {
		name        string
		description string
		schema      string
		handler     Handler
	}{
		{
			name:        SaveURL,
			description: "Request that the Wayback Machine capture a URL now",
			schema:      saveSchema,
			handler: func(ctx context.Context, args map[string]any, call wayback.CallOptions) (*wayback.Result, error) {
				var in wayback.SaveInput
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				return ops.Save(ctx, in, call)
			},
		},
		{
			name:        GetArchivedURL,
			description: "Find the archived snapshot of a URL closest to a timestamp, or the latest one",
			schema:      getSchema,
			handler: func(ctx context.Context, args map[string]any, call wayback.CallOptions) (*wayback.Result, error) {
				var in wayback.RetrieveInput
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				return ops.Retrieve(ctx, in, call)
			},
		},
		{
			name:        SearchArchives,
			description: "List archived captures of a URL within an optional date range",
			schema:      searchSchema,
			handler: func(ctx context.Context, args map[string]any, call wayback.CallOptions) (*wayback.Result, error) {
				var in wayback.SearchInput
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				return ops.Search(ctx, in, call)
			},
		},
		{
			name:        CheckArchiveStatus,
			description: "Summarise how often a URL has been archived and when",
			schema:      statusSchema,
			handler: func(ctx context.Context, args map[string]any, call wayback.CallOptions) (*wayback.Result, error) {
				var in wayback.StatusInput
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				return ops.Status(ctx, in, call)
			},
		},
	}

	for _, entry := range entries {
		if err := r.Register(entry.name, entry.description, entry.schema, entry.handler); err != nil {
			return nil, err
		}
	}
	return r, nil
}
