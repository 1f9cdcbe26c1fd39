// Package fieldpath reads and writes values inside JSON-shaped documents
// (map[string]any / []any / scalars) addressed by dot-separated field paths.
//
// A segment is either a plain property name ("invoice"), a property name with
// an explicit element index ("items[2]") or a property name with the wildcard
// suffix ("items[]"). Wildcard paths are schema-level templates; indexed paths
// address a concrete document.
//
// Wildcard reads are first-match: Get(doc, "items[].code") returns the code of
// the first element that has one and does not look at the remaining
// elements. Hints and confidence scores are authored once per schema path, not
// per element, so diverging element values are not reconciled.
package fieldpath

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyPath is returned by Set for the empty path.
	ErrEmptyPath = errors.New("fieldpath: empty path")
	// ErrWildcardWrite is returned by Set when a segment carries the [] suffix.
	ErrWildcardWrite = errors.New("fieldpath: cannot write through a wildcard segment")
	// ErrIndexTooFar is returned by Set when an index lies more than MaxGap
	// elements past the end of its array.
	ErrIndexTooFar = errors.New("fieldpath: index too far past the end of the array")
)

// MaxGap is the largest number of padding elements Set appends to reach an
// index.
const MaxGap = 1000

// Kind classifies a path segment.
type Kind int

const (
	Plain    Kind = iota // name
	Wildcard             // name[]
	Indexed              // name[N]
)

// Segment is one dot-separated component of a field path.
type Segment struct {
	Key   string
	Kind  Kind
	Index int // valid for Indexed only
}

func (s Segment) String() string {
	switch s.Kind {
	case Wildcard:
		return s.Key + "[]"
	case Indexed:
		return s.Key + "[" + strconv.Itoa(s.Index) + "]"
	default:
		return s.Key
	}
}

// hasKey reports whether the segment looks up an object property before any
// array step. A bare "[]" or "[N]" applies to the current value itself.
func (s Segment) hasKey() bool { return s.Kind == Plain || s.Key != "" }

// Parse splits a path into segments. The empty path yields no segments.
// Brackets that do not form a trailing [] or [N] stay part of the key.
func Parse(path string) []Segment {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, parseSegment(p))
	}
	return segs
}

func parseSegment(p string) Segment {
	if strings.HasSuffix(p, "[]") {
		return Segment{Key: p[:len(p)-2], Kind: Wildcard}
	}
	if !strings.HasSuffix(p, "]") {
		return Segment{Key: p}
	}
	open := strings.LastIndexByte(p, '[')
	if open < 0 {
		return Segment{Key: p}
	}
	digits := p[open+1 : len(p)-1]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return Segment{Key: p}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Segment{Key: p}
	}
	return Segment{Key: p[:open], Kind: Indexed, Index: n}
}

// Format renders segments back into a path.
func Format(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Join appends a property name to a path prefix.
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Get returns the value at path and whether it was present. A present JSON
// null yields (nil, true). The empty path returns doc itself.
func Get(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}
	return get(doc, Parse(path))
}

func get(cur any, segs []Segment) (any, bool) {
	for i, seg := range segs {
		if seg.hasKey() {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := obj[seg.Key]
			if !ok {
				return nil, false
			}
			cur = v
		}
		switch seg.Kind {
		case Wildcard:
			arr, ok := cur.([]any)
			if !ok || len(arr) == 0 {
				return nil, false
			}
			if i == len(segs)-1 {
				return arr, true
			}
			for _, el := range arr {
				if v, ok := get(el, segs[i+1:]); ok {
					return v, true
				}
			}
			return nil, false
		case Indexed:
			arr, ok := cur.([]any)
			if !ok || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
		}
	}
	return cur, true
}

type setOptions struct {
	onOverwrite func(path string, old any)
}

// SetOption configures Set.
type SetOption func(*setOptions)

// OnOverwrite registers a callback invoked whenever Set replaces a non-container
// intermediate value (for example a string sitting where an object is needed)
// with a fresh object or array. path is the location of the replaced value.
func OnOverwrite(fn func(path string, old any)) SetOption {
	return func(o *setOptions) { o.onOverwrite = fn }
}

// Set returns a copy of doc with value written at path. Containers along the
// path are copied, never mutated. Missing arrays are padded with empty objects
// up to an explicit index, at most MaxGap past the current end, and scalar
// intermediates are replaced by containers.
func Set(doc any, path string, value any, opts ...SetOption) (any, error) {
	if path == "" {
		return doc, ErrEmptyPath
	}
	segs := Parse(path)
	for _, s := range segs {
		if s.Kind == Wildcard {
			return doc, fmt.Errorf("set %q: %w", path, ErrWildcardWrite)
		}
	}
	if err := checkGaps(doc, segs); err != nil {
		return doc, fmt.Errorf("set %q: %w", path, err)
	}
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	return set(doc, segs, value, "", &o), nil
}

// checkGaps walks the existing containers along segs and rejects an index
// that would need more than MaxGap padding elements.
func checkGaps(cur any, segs []Segment) error {
	for _, seg := range segs {
		if seg.hasKey() {
			m, _ := cur.(map[string]any)
			cur = m[seg.Key]
		}
		if seg.Kind != Indexed {
			continue
		}
		arr, _ := cur.([]any)
		if seg.Index-len(arr) > MaxGap {
			return fmt.Errorf("[%d] with %d elements: %w", seg.Index, len(arr), ErrIndexTooFar)
		}
		cur = nil
		if seg.Index < len(arr) {
			cur = arr[seg.Index]
		}
	}
	return nil
}

func set(cur any, segs []Segment, value any, at string, o *setOptions) any {
	seg := segs[0]
	rest := segs[1:]
	if !seg.hasKey() {
		return setIndex(cur, seg.Index, rest, value, at, o)
	}
	obj := copyObject(cur, at, o)
	here := Join(at, seg.Key)
	switch {
	case seg.Kind == Indexed:
		obj[seg.Key] = setIndex(obj[seg.Key], seg.Index, rest, value, here, o)
	case len(rest) == 0:
		obj[seg.Key] = value
	default:
		obj[seg.Key] = set(obj[seg.Key], rest, value, here, o)
	}
	return obj
}

func setIndex(cur any, index int, rest []Segment, value any, at string, o *setOptions) any {
	arr := copyArray(cur, at, o)
	for len(arr) <= index {
		arr = append(arr, map[string]any{})
	}
	if len(rest) == 0 {
		arr[index] = value
		return arr
	}
	arr[index] = set(arr[index], rest, value, at+"["+strconv.Itoa(index)+"]", o)
	return arr
}

func copyObject(cur any, at string, o *setOptions) map[string]any {
	if m, ok := cur.(map[string]any); ok {
		out := make(map[string]any, len(m)+1)
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	if cur != nil && o.onOverwrite != nil {
		o.onOverwrite(at, cur)
	}
	return map[string]any{}
}

func copyArray(cur any, at string, o *setOptions) []any {
	if a, ok := cur.([]any); ok {
		return append(make([]any, 0, len(a)+1), a...)
	}
	if cur != nil && o.onOverwrite != nil {
		o.onOverwrite(at, cur)
	}
	return []any{}
}

var indexPattern = regexp.MustCompile(`\[\d+\]`)

// Normalize replaces every [N] with [].
func Normalize(path string) string {
	return indexPattern.ReplaceAllString(path, "[]")
}

// Equivalent reports whether two paths address the same schema location.
func Equivalent(a, b string) bool { return Normalize(a) == Normalize(b) }

// TargetForHint truncates a normalized path so that it ends at its first []
// group, i.e. at the owning array element ("lines[].tax.rate" -> "lines[]").
// Paths without a wildcard are returned unchanged.
func TargetForHint(path string) string {
	i := strings.Index(path, "[]")
	if i < 0 {
		return path
	}
	return path[:i+2]
}

// Instantiate replaces the first [] of a template path with [index].
func Instantiate(template string, index int) string {
	return strings.Replace(template, "[]", "["+strconv.Itoa(index)+"]", 1)
}

// Expand lists the concrete indexed paths a template addresses in doc: every
// wildcard is expanded over the elements actually present. Plain tail
// segments are kept even when the leaf itself is missing.
func Expand(doc any, template string) []string {
	var out []string
	expand(doc, Parse(template), "", &out)
	return out
}

func expand(cur any, segs []Segment, at string, out *[]string) {
	if len(segs) == 0 {
		*out = append(*out, at)
		return
	}
	seg := segs[0]
	next := cur
	here := at
	if seg.hasKey() {
		here = Join(at, seg.Key)
		next = nil
		if m, ok := cur.(map[string]any); ok {
			next = m[seg.Key]
		}
	}
	switch seg.Kind {
	case Plain:
		expand(next, segs[1:], here, out)
	case Indexed:
		var el any
		if arr, ok := next.([]any); ok && seg.Index < len(arr) {
			el = arr[seg.Index]
		}
		expand(el, segs[1:], here+"["+strconv.Itoa(seg.Index)+"]", out)
	case Wildcard:
		arr, ok := next.([]any)
		if !ok {
			return
		}
		for i, el := range arr {
			expand(el, segs[1:], here+"["+strconv.Itoa(i)+"]", out)
		}
	}
}

// Clone deep-copies a JSON-shaped value.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = Clone(t[i])
		}
		return out
	default:
		return v
	}
}

// CloneObject deep-copies an object; nil yields an empty object.
func CloneObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Clone(m).(map[string]any)
}
