// Package fields flattens a JSON Schema into the field descriptors an editor
// renders: scalar leaves, arrays of objects (with their own leaves) and arrays
// of scalars.
//
// Traversal is depth-first in display order (see schema.OrderedProperties) and
// every descriptor records its position as SchemaOrder, so deriving the same
// schema twice yields identical output. Branches that cannot be resolved are
// left out rather than defaulted.
package fields

import (
	"sort"
	"strings"

	"github.com/reoring/schemaform/fieldpath"
	"github.com/reoring/schemaform/schema"
)

// Type is the value type of a leaf field.
type Type string

const (
	String  Type = "string"
	Integer Type = "integer"
	Number  Type = "number"
	Boolean Type = "boolean"
)

// pickType applies the preference string, integer, number, boolean when the
// schema lists several types.
func pickType(types []string) (Type, bool) {
	for _, want := range []Type{String, Integer, Number, Boolean} {
		for _, t := range types {
			if t == string(want) {
				return want, true
			}
		}
	}
	return "", false
}

// Leaf is a scalar field. Inside an ArrayObject its Path is a template such as
// "items[].code".
type Leaf struct {
	Path        string `json:"path"`
	Type        Type   `json:"type"`
	Format      string `json:"format,omitempty"`
	Title       string `json:"title,omitempty"`
	Required    bool   `json:"required"`
	SchemaOrder int    `json:"schemaOrder"`
}

// ArrayObject is an array whose items are objects.
type ArrayObject struct {
	Path        string `json:"path"`
	Title       string `json:"title,omitempty"`
	Required    bool   `json:"required"`
	SchemaOrder int    `json:"schemaOrder"`
	ItemFields  []Leaf `json:"itemFields"`
}

// ArrayScalar is an array whose items are scalars or have no usable schema;
// editors treat its value as an opaque JSON blob.
type ArrayScalar struct {
	Path        string `json:"path"`
	Title       string `json:"title,omitempty"`
	Required    bool   `json:"required"`
	SchemaOrder int    `json:"schemaOrder"`
}

// Set is the result of Derive.
type Set struct {
	Scalars      []Leaf        `json:"scalarFields"`
	ArrayObjects []ArrayObject `json:"arrayObjectFields"`
	Arrays       []ArrayScalar `json:"arrayFields"`
}

// maxDepth bounds recursion through self-referencing object schemas.
const maxDepth = 32

type deriver struct {
	root  schema.Node
	trail schema.Trail
	order int
	out   Set
}

// Derive walks root and returns its field descriptors. Arrays nested inside
// another array's items are not emitted.
func Derive(root schema.Node) Set {
	if root == nil {
		return Set{}
	}
	d := &deriver{root: root, trail: schema.Trail{}}
	d.out.Scalars = d.leaves(root, "", 0)
	return d.out
}

func (d *deriver) next() int {
	n := d.order
	d.order++
	return n
}

func (d *deriver) leaves(n schema.Node, prefix string, depth int) []Leaf {
	if n == nil || depth > maxDepth {
		return nil
	}
	r, leave, ok := d.trail.Enter(d.root, n)
	if !ok {
		return nil
	}
	defer leave()
	if !schema.IsObject(r) || schema.Properties(r) == nil {
		return nil
	}
	required := schema.RequiredSet(r)
	var out []Leaf
	for _, p := range schema.OrderedProperties(r) {
		prop := schema.Resolve(d.root, p.Node)
		path := fieldpath.Join(prefix, p.Name)

		if schema.IsArray(prop) {
			if strings.Contains(path, "[]") {
				continue
			}
			d.array(prop, path, required[p.Name], depth)
			continue
		}
		if schema.IsObject(prop) {
			out = append(out, d.leaves(p.Node, path, depth+1)...)
			continue
		}
		typ, ok := pickType(schema.Types(prop))
		if !ok {
			continue
		}
		out = append(out, Leaf{
			Path:        path,
			Type:        typ,
			Format:      schema.Format(prop),
			Title:       schema.Title(prop),
			Required:    required[p.Name],
			SchemaOrder: d.next(),
		})
	}
	return out
}

func (d *deriver) array(prop schema.Node, path string, required bool, depth int) {
	order := d.next()
	var it, items schema.Node
	if it = schema.Items(prop); it != nil {
		items = schema.Resolve(d.root, it)
	}
	if items != nil && schema.IsObject(items) && schema.Properties(items) != nil {
		d.out.ArrayObjects = append(d.out.ArrayObjects, ArrayObject{
			Path:        path,
			Title:       schema.Title(prop),
			Required:    required,
			SchemaOrder: order,
			ItemFields:  d.leaves(it, path+"[]", depth+1),
		})
		return
	}
	d.out.Arrays = append(d.out.Arrays, ArrayScalar{
		Path:        path,
		Title:       schema.Title(prop),
		Required:    required,
		SchemaOrder: order,
	})
}

// Orderable is implemented by every descriptor kind.
type Orderable interface {
	Leaf | ArrayObject | ArrayScalar
}

func key[F Orderable](f F) (path string, required bool, order int) {
	switch v := any(f).(type) {
	case Leaf:
		return v.Path, v.Required, v.SchemaOrder
	case ArrayObject:
		return v.Path, v.Required, v.SchemaOrder
	case ArrayScalar:
		return v.Path, v.Required, v.SchemaOrder
	}
	return "", false, 0
}

// Sort returns fs in display order: required fields first by SchemaOrder,
// then optional fields by path. The input is not modified.
func Sort[F Orderable](fs []F) []F {
	out := append([]F(nil), fs...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, ri, oi := key(out[i])
		pj, rj, oj := key(out[j])
		if ri != rj {
			return ri
		}
		if ri {
			return oi < oj
		}
		return pi < pj
	})
	return out
}

// NewItem builds a default element for the array: every item leaf is set to
// the zero value of its type (false, 0 or "").
func (a ArrayObject) NewItem() map[string]any {
	item := map[string]any{}
	prefix := a.Path + "[]."
	for _, f := range a.ItemFields {
		rel := strings.TrimPrefix(f.Path, prefix)
		if rel == f.Path || strings.Contains(rel, "[]") {
			continue
		}
		v, err := fieldpath.Set(item, rel, f.Type.Zero())
		if err != nil {
			continue
		}
		item = v.(map[string]any)
	}
	return item
}

// Zero returns the default value for the type.
func (t Type) Zero() any {
	switch t {
	case Boolean:
		return false
	case Integer, Number:
		return 0.0
	default:
		return ""
	}
}
