package schema

import (
	"fmt"
	"sort"
)

// Diagnose reports $ref problems that Resolve silently tolerates: pointers
// that do not reach an object and reference chains that loop back on
// themselves. Each message names the schema location as a JSON Pointer.
func Diagnose(root Node) []string {
	var out []string
	var walk func(v any, at string, depth int)
	walk = func(v any, at string, depth int) {
		if depth > maxWalkDepth {
			return
		}
		switch t := v.(type) {
		case map[string]any:
			if ref := refOf(t); ref != "" {
				if msg := checkRef(root, ref); msg != "" {
					out = append(out, fmt.Sprintf("%s: %s", at, msg))
				}
			}
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k], at+"/"+escapeToken(k), depth+1)
			}
		case []any:
			for i, el := range t {
				walk(el, fmt.Sprintf("%s/%d", at, i), depth+1)
			}
		}
	}
	walk(root, "#", 0)
	return out
}

func checkRef(root Node, ref string) string {
	seen := map[string]bool{}
	for ref != "" {
		if seen[ref] {
			return fmt.Sprintf("cyclic $ref %q", ref)
		}
		seen[ref] = true
		target, ok := ResolvePointer(root, ref)
		if !ok {
			return fmt.Sprintf("dangling $ref %q", ref)
		}
		tm, ok := target.(map[string]any)
		if !ok {
			return fmt.Sprintf("$ref %q does not point to an object", ref)
		}
		ref = refOf(tm)
	}
	return ""
}
