// Package config decodes configuration files shared by every package that
// exposes a Config type. JSON, JSON with comments, and YAML are supported;
// the format is chosen from the file extension.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Load reads filename and decodes it into v.
func Load(filename string, v any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(filepath.Ext(filename), data, v)
}

// Decode decodes data into v according to ext (".json", ".jsonc", ".yaml",
// ".yml"). An empty extension is treated as JSON with comments.
func Decode(ext string, data []byte, v any) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		return nil
	case "", ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}
