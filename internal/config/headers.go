package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RestoreHeaderCase renames the keys of headers, which viper has lowercased,
// back to the spelling used under fetch.headers in the config file at path.
// Keys the file does not name are kept as they are. The file is read as YAML,
// which also covers JSON; any read or parse failure leaves headers unchanged.
func RestoreHeaderCase(headers map[string]string, path string) map[string]string {
	if len(headers) == 0 || strings.TrimSpace(path) == "" {
		return headers
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return headers
	}
	var file struct {
		Fetch struct {
			Headers map[string]any `yaml:"headers"`
		} `yaml:"fetch"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return headers
	}

	spelling := make(map[string]string, len(file.Fetch.Headers))
	for name := range file.Fetch.Headers {
		spelling[strings.ToLower(name)] = name
	}

	restored := make(map[string]string, len(headers))
	for key, value := range headers {
		if name, ok := spelling[strings.ToLower(key)]; ok {
			key = name
		}
		restored[key] = value
	}
	return restored
}
