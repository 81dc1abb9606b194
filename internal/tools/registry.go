// Package tools exposes the archive operations as named tools with JSON
// schema validated arguments. The MCP server and the HTTP tool API both
// serve the same registry.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
)

var (
	// ErrUnknownTool is returned when no tool is registered under a name.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidInput matches every argument rejection.
	ErrInvalidInput = wayback.ErrInvalidInput
)

// ValidationError reports arguments that do not satisfy a tool schema.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Handler runs a tool with validated, JSON-shaped arguments.
type Handler func(ctx context.Context, args map[string]any, call wayback.CallOptions) (*wayback.Result, error)

// Descriptor is the public description of a tool.
type Descriptor struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	InputSchema json.RawMessage `json:"input_schema" yaml:"-"`
}

type tool struct {
	descriptor Descriptor
	schema     *jsonschema.Schema
	handler    Handler
}

// Registry holds named tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*tool)}
}

// Register compiles schema and adds the tool. Names must be unique.
func (r *Registry) Register(name, description, schema string, handler Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", name)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	resource := "wayback://tools/" + name + ".json"
	if err := compiler.AddResource(resource, strings.NewReader(schema)); err != nil {
		return fmt.Errorf("tool %s: schema: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = &tool{
		descriptor: Descriptor{Name: name, Description: description, InputSchema: json.RawMessage(schema)},
		schema:     compiled,
		handler:    handler,
	}
	return nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call validates args against the tool schema and runs it. Invalid
// arguments never reach the network.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any, call wayback.CallOptions) (*wayback.Result, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	normalized, err := normalizeArgs(args)
	if err != nil {
		return nil, &ValidationError{Tool: name, Message: err.Error()}
	}

	if err := t.schema.Validate(normalized); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, &ValidationError{Tool: name, Message: validationMessage(verr)}
		}
		return nil, &ValidationError{Tool: name, Message: err.Error()}
	}

	return t.handler(ctx, normalized, call)
}

// normalizeArgs gives arguments the shapes encoding/json produces, which
// is what the schema validator expects.
func normalizeArgs(args map[string]any) (map[string]any, error) {
	if args == nil {
		return map[string]any{}, nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("arguments are not JSON encodable: %w", err)
	}

	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return out, nil
}

func decodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func validationMessage(err *jsonschema.ValidationError) string {
	var parts []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", location, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(err)
	return strings.Join(parts, "; ")
}
