// Package statefile reads and renders container values as YAML documents.
// JSON documents are accepted too, since YAML is a superset of JSON.
package statefile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/observables/internal/observable"
)

// Decode parses data into a Value. The document root must be a mapping;
// an empty document decodes to an empty Value.
func Decode(data []byte) (observable.Value, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if raw == nil {
		return observable.Value{}, nil
	}
	m, ok := Normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parsing state: %w", &observable.InvalidValueError{Type: fmt.Sprintf("%T", raw)})
	}
	return observable.Value(m), nil
}

// Load reads and decodes the state file at path.
func Load(path string) (observable.Value, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: caller-chosen state file
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Normalize converts nested map[any]any into map[string]any so values
// compare and render consistently. Non-string keys are formatted with %v.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case observable.Value:
		return Normalize(map[string]any(t))
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}

// Render formats v as YAML with sorted keys. Used for display and diffs.
func Render(v observable.Value) string {
	if len(v) == 0 {
		return "{}\n"
	}
	out, err := yaml.Marshal(Normalize(v))
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>\n", err)
	}
	return string(out)
}

// RenderInline formats v as a single-line YAML flow mapping, e.g.
// "{count: 1, other: 5}".
func RenderInline(v observable.Value) string {
	if len(v) == 0 {
		return "{}"
	}
	var node yaml.Node
	if err := node.Encode(Normalize(v)); err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	node.Style = yaml.FlowStyle
	out, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return strings.Join(strings.Fields(string(out)), " ")
}
