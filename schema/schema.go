// Package schema walks user-authored JSON Schema documents represented as
// decoded JSON (map[string]any). It resolves local $ref/allOf indirection,
// descends a schema by field path and reads the annotations the editor relies
// on (title, format, required, x-extraction-hint, x-ui-order).
//
// Lookups fail open: an unresolvable reference or a missing properties entry
// means "this branch does not exist", never an error.
package schema

import (
	"sort"
	"strconv"
	"strings"
)

// Node is a schema object as decoded from JSON or YAML.
type Node = map[string]any

// Annotation keys.
const (
	KeyRef          = "$ref"
	KeyAllOf        = "allOf"
	KeyHint         = "x-extraction-hint"
	KeyUIOrder      = "x-ui-order"
	KeyTableColumns = "x-table-columns"
)

// Types returns the declared type names; "type" may be a string or a list.
func Types(n Node) []string {
	switch t := n["type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return nil
}

// HasType reports whether name is among the declared types.
func HasType(n Node, name string) bool {
	for _, t := range Types(n) {
		if t == name {
			return true
		}
	}
	return false
}

// Properties returns the properties map, or nil.
func Properties(n Node) map[string]any {
	p, _ := n["properties"].(map[string]any)
	return p
}

// IsObject reports whether n describes an object (declared or implied by properties).
func IsObject(n Node) bool {
	return HasType(n, "object") || Properties(n) != nil
}

// IsArray reports whether n describes an array (declared or implied by items).
func IsArray(n Node) bool {
	return HasType(n, "array") || n["items"] != nil
}

// Items returns the item schema of an array node. Tuple-style items use the
// first element.
func Items(n Node) Node {
	switch it := n["items"].(type) {
	case map[string]any:
		return it
	case []any:
		if len(it) == 0 {
			return nil
		}
		first, _ := it[0].(map[string]any)
		return first
	}
	return nil
}

// Title returns the trimmed title, or "".
func Title(n Node) string { return trimmedString(n["title"]) }

// Format returns the format annotation, or "".
func Format(n Node) string {
	s, _ := n["format"].(string)
	return s
}

// Hint returns the trimmed x-extraction-hint, or "".
func Hint(n Node) string { return trimmedString(n[KeyHint]) }

// RequiredSet returns the non-blank names listed in "required".
func RequiredSet(n Node) map[string]bool {
	out := map[string]bool{}
	for _, name := range requiredList(n) {
		out[name] = true
	}
	return out
}

func requiredList(n Node) []string {
	var out []string
	switch r := n["required"].(type) {
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range r {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Property is a named entry of a properties map.
type Property struct {
	Name string
	Node Node
}

// OrderedProperties returns the object-valued properties of n in display
// order: entries carrying a numeric x-ui-order come first (ascending), the rest
// follow sorted by name.
func OrderedProperties(n Node) []Property {
	props := Properties(n)
	out := make([]Property, 0, len(props))
	for k, v := range props {
		m, ok := v.(map[string]any)
		if k == "" || !ok {
			continue
		}
		out = append(out, Property{Name: k, Node: m})
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, hasI := uiOrder(out[i].Node)
		oj, hasJ := uiOrder(out[j].Node)
		if hasI && hasJ && oi != oj {
			return oi < oj
		}
		if hasI != hasJ {
			return hasI
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func uiOrder(n Node) (float64, bool) {
	switch v := n[KeyUIOrder].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func trimmedString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
