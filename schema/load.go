package schema

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Load decodes a schema document from JSON or YAML. YAML values are
// normalized to the shapes encoding/json produces (map[string]any, []any,
// float64) so both sources walk identically.
func Load(data []byte) (Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("schema: empty document")
	}
	if trimmed[0] == '{' {
		var n Node
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, fmt.Errorf("schema: invalid JSON: %w", err)
		}
		return n, nil
	}
	var raw any
	if err := yaml.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("schema: invalid YAML: %w", err)
	}
	n := yamlAnyToStringMap(raw)
	if n == nil {
		return nil, errors.New("schema: document root is not an object")
	}
	return n, nil
}

// LoadFile reads and decodes a schema file.
func LoadFile(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Load(data)
}

// yamlAnyToStringMap converts YAML-decoded values (which may contain map[any]any)
// into JSON-like map[string]any recursively. Non-map roots return nil.
func yamlAnyToStringMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNormalizeValue(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = yamlNormalizeValue(vv)
		}
		return out
	default:
		return nil
	}
}

func yamlNormalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return yamlAnyToStringMap(t)
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNormalizeValue(t[i])
		}
		return arr
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}
