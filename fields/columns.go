package fields

import (
	"sort"
	"strings"

	"github.com/reoring/schemaform/schema"
)

// DefaultColumnLimit is the number of fallback columns TableColumns picks.
const DefaultColumnLimit = 4

// Column describes one column of a document list.
type Column struct {
	Path   string `json:"path"`
	Title  string `json:"title,omitempty"`
	Type   Type   `json:"type,omitempty"`
	Format string `json:"format,omitempty"`
}

// TableColumns chooses list columns for documents of root. An explicit
// x-table-columns list wins (wildcard paths are dropped, an empty list means
// no columns). Otherwise the first limit top-level scalar leaves are used,
// skipping names starting with "_", required fields first and then in schema
// order. limit <= 0 uses DefaultColumnLimit.
func TableColumns(root schema.Node, limit int) []Column {
	if limit <= 0 {
		limit = DefaultColumnLimit
	}
	scalars := Derive(root).Scalars
	byPath := make(map[string]Leaf, len(scalars))
	for _, f := range scalars {
		byPath[f.Path] = f
	}

	if raw, ok := root[schema.KeyTableColumns].([]any); ok {
		cols := []Column{}
		for _, v := range raw {
			s, _ := v.(string)
			path := strings.TrimSpace(s)
			if path == "" || strings.Contains(path, "[]") {
				continue
			}
			f := byPath[path]
			cols = append(cols, Column{Path: path, Title: f.Title, Type: f.Type, Format: f.Format})
		}
		return cols
	}

	var candidates []Leaf
	for _, f := range scalars {
		if strings.Contains(f.Path, "[]") || strings.HasPrefix(f.Path, "_") {
			continue
		}
		candidates = append(candidates, f)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Required != candidates[j].Required {
			return candidates[i].Required
		}
		return candidates[i].SchemaOrder < candidates[j].SchemaOrder
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	cols := make([]Column, 0, len(candidates))
	for _, f := range candidates {
		cols = append(cols, Column{Path: f.Path, Title: f.Title, Type: f.Type, Format: f.Format})
	}
	return cols
}
