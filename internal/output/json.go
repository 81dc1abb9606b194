package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatResult(result *wayback.Result) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(result)
}

func (f *JSONFormatter) FormatTools(descriptors []tools.Descriptor) (string, error) {
	return f.marshal(descriptors)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// YAMLFormatter renders results as YAML with the same snake_case keys as JSON.
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatResult(result *wayback.Result) (string, error) {
	if result == nil {
		return "", nil
	}
	data, err := yaml.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatTools includes each input schema, decoded so it nests as YAML.
func (f *YAMLFormatter) FormatTools(descriptors []tools.Descriptor) (string, error) {
	type entry struct {
		Name        string         `yaml:"name"`
		Description string         `yaml:"description"`
		InputSchema map[string]any `yaml:"input_schema,omitempty"`
	}

	entries := make([]entry, 0, len(descriptors))
	for _, d := range descriptors {
		e := entry{Name: d.Name, Description: d.Description}
		if len(d.InputSchema) > 0 {
			if err := json.Unmarshal(d.InputSchema, &e.InputSchema); err != nil {
				return "", err
			}
		}
		entries = append(entries, e)
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
