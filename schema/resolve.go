package schema

import (
	"sort"
	"strconv"
	"strings"

	"github.com/reoring/schemaform/fieldpath"
)

const maxResolveDepth = 25

// Resolve expands local $ref and allOf on node. Keys set on node itself win
// over the referenced definition, so a property may $ref a shared definition
// and still override its title or hint. properties maps are merged per key and
// required lists are unioned. Unresolvable or cyclic references leave node
// unchanged. Neither root nor node is mutated.
func Resolve(root, node Node) Node {
	return resolve(root, node, map[string]bool{}, nil, 0)
}

// ResolveRefs is Resolve that also returns the references it expanded,
// sorted.
func ResolveRefs(root, node Node) (Node, []string) {
	followed := map[string]bool{}
	n := resolve(root, node, map[string]bool{}, followed, 0)
	refs := make([]string, 0, len(followed))
	for ref := range followed {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return n, refs
}

func resolve(root, node Node, seen, followed map[string]bool, depth int) Node {
	if node == nil || depth > maxResolveDepth {
		return node
	}
	resolved := node
	if ref := refOf(node); ref != "" {
		if seen[ref] {
			return node
		}
		if target, ok := ResolvePointer(root, ref); ok {
			if tm, ok := target.(map[string]any); ok {
				seen[ref] = true
				if followed != nil {
					followed[ref] = true
				}
				resolved = merge(resolve(root, tm, seen, followed, depth+1), without(node, KeyRef))
			}
		}
	}
	if entries := allOf(resolved); len(entries) > 0 {
		merged := without(resolved, KeyAllOf)
		for _, e := range entries {
			merged = merge(merged, resolve(root, e, copySet(seen), followed, depth+1))
		}
		resolved = merged
	}
	return resolved
}

func refOf(n Node) string {
	s, _ := n[KeyRef].(string)
	return strings.TrimSpace(s)
}

func allOf(n Node) []Node {
	list, _ := n[KeyAllOf].([]any)
	var out []Node
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// merge overlays override on base (shallow), merging properties per key and
// unioning required.
func merge(base, override Node) Node {
	out := make(Node, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	bp, op := Properties(base), Properties(override)
	if bp != nil || op != nil {
		props := make(map[string]any, len(bp)+len(op))
		for k, v := range bp {
			props[k] = v
		}
		for k, v := range op {
			props[k] = v
		}
		out["properties"] = props
	}
	baseReq, overReq := requiredList(base), requiredList(override)
	if baseReq != nil || overReq != nil {
		seen := map[string]bool{}
		var req []any
		for _, name := range append(baseReq, overReq...) {
			if !seen[name] {
				seen[name] = true
				req = append(req, name)
			}
		}
		out["required"] = req
	}
	return out
}

func without(n Node, key string) Node {
	out := make(Node, len(n))
	for k, v := range n {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// ResolvePointer follows a same-document JSON Pointer ("#", "#/a/b/0").
// Tokens are decoded per RFC 6901 (~1 -> /, ~0 -> ~).
func ResolvePointer(root any, pointer string) (any, bool) {
	if pointer == "#" {
		return root, true
	}
	if !strings.HasPrefix(pointer, "#/") {
		return nil, false
	}
	cur := root
	for _, raw := range strings.Split(pointer[len("#/"):], "/") {
		tok := unescapeToken(raw)
		if tok == "" {
			continue
		}
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[tok]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func unescapeToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

func escapeToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

// NodeAt returns the resolved schema node for a field path, or nil when any
// segment cannot be followed. Indexed and wildcard segments both descend into
// the array's items; the schema has one shape per array.
func NodeAt(root Node, path string) Node {
	raw := locate(root, path)
	if raw == nil {
		return nil
	}
	return Resolve(root, raw)
}

// locate returns the unresolved node stored in root for path, so callers
// can edit it in place on a copy of root.
func locate(root Node, path string) Node {
	segs := fieldpath.Parse(path)
	if len(segs) == 0 {
		return nil
	}
	cur := root
	for _, seg := range segs {
		cur = Resolve(root, cur)
		next, ok := Properties(cur)[seg.Key].(map[string]any)
		if !ok {
			return nil
		}
		if seg.Kind == fieldpath.Plain {
			cur = next
			continue
		}
		items := Items(Resolve(root, next))
		if items == nil {
			return nil
		}
		cur = items
	}
	return cur
}
