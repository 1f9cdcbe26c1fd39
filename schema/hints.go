package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/schemaform/fieldpath"
)

// ErrNodeNotFound is returned when a field path does not resolve to a schema node.
var ErrNodeNotFound = errors.New("schema: field not found")

// maxWalkDepth bounds recursive walks over self-referencing schemas.
const maxWalkDepth = 32

// HintAt returns the x-extraction-hint for a field path. Indexed paths are
// normalized first, so every element of an array shares the item's hint.
func HintAt(root Node, path string) string {
	n := NodeAt(root, fieldpath.Normalize(path))
	if n == nil {
		return ""
	}
	return Hint(n)
}

// WithHint returns a deep copy of root whose node at path carries hint. A
// blank hint removes the annotation. root is not modified.
func WithHint(root Node, path, hint string) (Node, error) {
	clone := fieldpath.CloneObject(root)
	node := locate(clone, fieldpath.Normalize(path))
	if node == nil {
		return nil, fmt.Errorf("set hint at %q: %w", path, ErrNodeNotFound)
	}
	if trimmed := strings.TrimSpace(hint); trimmed != "" {
		node[KeyHint] = trimmed
	} else {
		delete(node, KeyHint)
	}
	return clone, nil
}

// HintMap collects every x-extraction-hint in the schema keyed by wildcard
// field path ("items[].code").
func HintMap(root Node) map[string]string {
	hints := map[string]string{}
	trail := Trail{}
	var walk func(n Node, prefix string, depth int)
	walk = func(n Node, prefix string, depth int) {
		if n == nil || depth > maxWalkDepth {
			return
		}
		r, leave, ok := trail.Enter(root, n)
		if !ok {
			return
		}
		defer leave()
		if prefix != "" {
			if h := Hint(r); h != "" {
				hints[prefix] = h
			}
		}
		if IsObject(r) && Properties(r) != nil {
			for _, p := range OrderedProperties(r) {
				walk(p.Node, fieldpath.Join(prefix, p.Name), depth+1)
			}
			return
		}
		if IsArray(r) {
			walk(Items(r), prefix+"[]", depth+1)
		}
	}
	walk(root, "", 0)
	return hints
}

// RequiredPaths lists the field paths declared required, following required
// objects and arrays ("items[].code" when items and its code are required).
func RequiredPaths(root Node) []string {
	var out []string
	seen := map[string]bool{}
	trail := Trail{}
	var walk func(n Node, prefix string, depth int)
	walk = func(n Node, prefix string, depth int) {
		if n == nil || depth > maxWalkDepth {
			return
		}
		r, leave, ok := trail.Enter(root, n)
		if !ok {
			return
		}
		defer leave()
		obj := IsObject(r)
		if obj {
			props := Properties(r)
			for _, name := range requiredList(r) {
				path := fieldpath.Join(prefix, name)
				if !seen[path] {
					seen[path] = true
					out = append(out, path)
				}
				child, ok := props[name].(map[string]any)
				if !ok {
					continue
				}
				if rc := Resolve(root, child); IsArray(rc) || IsObject(rc) {
					walk(child, path, depth+1)
				}
			}
		}
		if !obj && IsArray(r) {
			walk(Items(r), prefix+"[]", depth+1)
		}
	}
	walk(root, "", 0)
	return out
}
