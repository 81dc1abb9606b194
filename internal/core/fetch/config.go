package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Backend selects how a request is executed. The set is closed.
type Backend string

const (
	BackendDirect Backend = "direct"
	BackendMemory Backend = "memory"
	BackendDisk   Backend = "disk"
	BackendRedis  Backend = "redis"
)

// Backends lists every supported backend in display order.
var Backends = []Backend{BackendDirect, BackendMemory, BackendDisk, BackendRedis}

// ParseBackend validates and normalizes a backend name. Empty means direct.
func ParseBackend(value string) (Backend, error) {
	normalized := Backend(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return BackendDirect, nil
	}
	for _, b := range Backends {
		if b == normalized {
			return b, nil
		}
	}
	return "", fmt.Errorf("unsupported fetch backend: %s", value)
}

// Cached reports whether the backend stores responses.
func (b Backend) Cached() bool {
	return b == BackendMemory || b == BackendDisk || b == BackendRedis
}

// DefaultUserAgent identifies this client to the archive.
const DefaultUserAgent = "mcp-wayback-machine (+https://github.com/Mearman/mcp-wayback-machine)"

// Config holds the process-wide fetch defaults.
type Config struct {
	Backend      Backend       `mapstructure:"backend"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheDir     string        `mapstructure:"cache_dir"`
	MaxCacheSize int64         `mapstructure:"max_cache_size"`
	UserAgent    string        `mapstructure:"user_agent"`
	Headers      Headers       `mapstructure:"headers"`
	RedisAddr    string        `mapstructure:"redis_addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendDirect,
		Timeout:      DefaultTimeout,
		CacheTTL:     time.Hour,
		MaxCacheSize: 50 << 20,
		UserAgent:    DefaultUserAgent,
		Headers:      Headers{},
	}
}

const configSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"backend": {"enum": ["direct", "memory", "disk", "redis"]},
		"timeout": {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"},
		"cache_ttl": {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"},
		"cache_dir": {"type": "string"},
		"max_cache_size": {"type": "integer", "minimum": 0},
		"user_agent": {"type": "string"},
		"headers": {"type": "object", "additionalProperties": {"type": "string"}},
		"redis_addr": {"type": "string"}
	},
	"required": ["backend", "timeout", "cache_ttl", "max_cache_size"]
}`

var compiledConfigSchema = jsonschema.MustCompileString("fetch-config.json", configSchema)

// Document renders the config in the shape the schema validates.
func (c Config) Document() map[string]any {
	headers := make(map[string]any, len(c.Headers))
	for key, value := range c.Headers {
		headers[key] = value
	}

	return map[string]any{
		"backend":        string(c.Backend),
		"timeout":        c.Timeout.String(),
		"cache_ttl":      c.CacheTTL.String(),
		"cache_dir":      c.CacheDir,
		"max_cache_size": c.MaxCacheSize,
		"user_agent":     c.UserAgent,
		"headers":        headers,
		"redis_addr":     c.RedisAddr,
	}
}

// Validate checks the config against the schema.
func (c Config) Validate() error {
	return validateDocument(c.Document())
}

// Merge overlays patch onto c, validates the result, and decodes it. c is not modified.
func (c Config) Merge(patch map[string]any) (Config, error) {
	doc := c.Document()
	for key, value := range patch {
		doc[key] = value
	}

	if err := validateDocument(doc); err != nil {
		return c, err
	}

	var merged Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &merged,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			headersDecodeHook,
		),
	})
	if err != nil {
		return c, fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return c, &ConfigInvalidError{Reason: err.Error(), Err: err}
	}
	return merged, nil
}

func validateDocument(doc map[string]any) error {
	// Round-trip through JSON so the validator only sees JSON-native types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return &ConfigInvalidError{Reason: err.Error(), Err: err}
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return &ConfigInvalidError{Reason: err.Error(), Err: err}
	}

	if err := compiledConfigSchema.Validate(value); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return &ConfigInvalidError{Reason: validationMessage(validationErr), Err: err}
		}
		return &ConfigInvalidError{Reason: err.Error(), Err: err}
	}
	return nil
}

// validationMessage flattens the deepest causes into one line.
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

var headersType = reflect.TypeOf(Headers{})

func headersDecodeHook(from, to reflect.Type, data any) (any, error) {
	if to != headersType {
		return data, nil
	}
	if headers := HeadersFrom(data); headers != nil {
		return headers, nil
	}
	return data, nil
}
