package fetch

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Headers is a case-preserving header map. Keys that differ only by case
// name the same header.
type Headers map[string]string

// HeadersFrom normalizes any supported header shape into Headers:
// Headers, map[string]string, http.Header, map[string][]string,
// map[string]any, [][2]string and "Key: Value" string slices.
// Multi-valued entries are joined with ", ". Unsupported shapes yield nil.
func HeadersFrom(src any) Headers {
	out := Headers{}

	switch v := src.(type) {
	case nil:
		return nil
	case Headers:
		for key, value := range v {
			out.Set(key, value)
		}
	case map[string]string:
		for key, value := range v {
			out.Set(key, value)
		}
	case http.Header:
		for key, values := range v {
			out.Set(key, strings.Join(values, ", "))
		}
	case map[string][]string:
		for key, values := range v {
			out.Set(key, strings.Join(values, ", "))
		}
	case map[string]any:
		for key, value := range v {
			switch typed := value.(type) {
			case string:
				out.Set(key, typed)
			case []any:
				parts := make([]string, 0, len(typed))
				for _, part := range typed {
					parts = append(parts, fmt.Sprint(part))
				}
				out.Set(key, strings.Join(parts, ", "))
			default:
				out.Set(key, fmt.Sprint(typed))
			}
		}
	case [][2]string:
		for _, pair := range v {
			out.Set(pair[0], pair[1])
		}
	case []string:
		for _, line := range v {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			out.Set(key, strings.TrimSpace(value))
		}
	default:
		return nil
	}

	return out
}

// Set stores value under key, replacing any entry whose key matches case-insensitively.
// The spelling of the newest key wins.
func (h Headers) Set(key, value string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	for existing := range h {
		if strings.EqualFold(existing, key) {
			delete(h, existing)
		}
	}
	h[key] = value
}

// Get returns the value for key, matching case-insensitively.
func (h Headers) Get(key string) string {
	if value, ok := h[key]; ok {
		return value
	}
	for existing, value := range h {
		if strings.EqualFold(existing, key) {
			return value
		}
	}
	return ""
}

// HTTPHeader converts to a canonicalized http.Header.
func (h Headers) HTTPHeader() http.Header {
	out := make(http.Header, len(h))
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Set(key, h[key])
	}
	return out
}

// MergeHeaders layers defaults, then the process user agent, then per-call
// headers. Later layers win on collision.
func MergeHeaders(defaults Headers, userAgent string, perCall Headers) Headers {
	merged := Headers{}
	for key, value := range defaults {
		merged.Set(key, value)
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		merged.Set("User-Agent", ua)
	}
	for key, value := range perCall {
		merged.Set(key, value)
	}
	return merged
}
