// Package validate checks an extracted document against its schema and
// produces the report the review protocol consults before granting
// verification.
//
// Missing required values and values of the wrong JSON kind are errors.
// Unparsable dates and fields the extraction flagged as uncertain are
// warnings.
package validate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/reoring/schemaform"
	"github.com/reoring/schemaform/confidence"
	"github.com/reoring/schemaform/fieldpath"
	"github.com/reoring/schemaform/fields"
	"github.com/reoring/schemaform/schema"
)

type options struct {
	now       func() time.Time
	uncertain bool
}

// Option configures Run.
type Option func(*options)

// WithClock stamps reports with now() instead of the wall clock.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithUncertainFields controls whether uncertain fields listed in the
// extraction metadata are reported. On by default.
func WithUncertainFields(on bool) Option { return func(o *options) { o.uncertain = on } }

// Run validates data against root.
func Run(root schema.Node, data map[string]any, opts ...Option) schemaform.Report {
	o := options{now: time.Now, uncertain: true}
	for _, opt := range opts {
		opt(&o)
	}
	set := fields.Derive(root)
	var issues schemaform.Issues

	for _, f := range set.Scalars {
		issues = append(issues, checkLeaf(data, f.Path, f)...)
	}
	for _, a := range set.ArrayObjects {
		arr, present := presentArray(data, a.Path, &issues)
		if !present {
			issues = append(issues, missingArray(data, a.Path, a.Required)...)
			continue
		}
		for i := range arr {
			for _, f := range a.ItemFields {
				issues = append(issues, checkLeaf(data, fieldpath.Instantiate(f.Path, i), f)...)
			}
		}
	}
	for _, a := range set.Arrays {
		if _, present := presentArray(data, a.Path, &issues); !present {
			issues = append(issues, missingArray(data, a.Path, a.Required)...)
		}
	}
	if o.uncertain {
		for _, p := range confidence.ParseInfo(data).UncertainFields {
			issues = append(issues, schemaform.Issue{
				Path:     p,
				Code:     schemaform.CodeUncertainField,
				Message:  "extraction marked this field as uncertain",
				Severity: schemaform.SeverityWarning,
			})
		}
	}

	r := schemaform.NewReport(issues)
	r.ValidatedAt = o.now().UTC()
	return r
}

// presentArray returns the array at path. A non-array value is reported as
// invalid_type and treated as present.
func presentArray(data map[string]any, path string, issues *schemaform.Issues) ([]any, bool) {
	v, ok := fieldpath.Get(data, path)
	if !ok || v == nil {
		return nil, false
	}
	arr, isArr := v.([]any)
	if !isArr {
		*issues = append(*issues, schemaform.Issue{
			Path:     path,
			Code:     schemaform.CodeInvalidType,
			Message:  "expected an array",
			Severity: schemaform.SeverityError,
			Actual:   kindOf(v),
			Expected: "array",
		})
	}
	return arr, true
}

func missingArray(data map[string]any, path string, required bool) schemaform.Issues {
	if !required || !parentPresent(data, path) {
		return nil
	}
	return schemaform.Issues{{
		Path:     path,
		Code:     schemaform.CodeRequired,
		Message:  "required field is missing",
		Severity: schemaform.SeverityError,
	}}
}

func checkLeaf(data map[string]any, path string, f fields.Leaf) schemaform.Issues {
	v, ok := fieldpath.Get(data, path)
	if !ok || v == nil || isBlank(v) {
		if f.Required && parentPresent(data, path) {
			return schemaform.Issues{{
				Path:     path,
				Code:     schemaform.CodeRequired,
				Message:  "required field is missing",
				Severity: schemaform.SeverityError,
			}}
		}
		return nil
	}
	if !hasType(v, f.Type) {
		return schemaform.Issues{{
			Path:     path,
			Code:     schemaform.CodeInvalidType,
			Message:  fmt.Sprintf("expected %s", f.Type),
			Severity: schemaform.SeverityError,
			Actual:   kindOf(v),
			Expected: string(f.Type),
		}}
	}
	if s, ok := v.(string); ok && !formatOK(f.Format, s) {
		return schemaform.Issues{{
			Path:     path,
			Code:     schemaform.CodeInvalidFormat,
			Message:  fmt.Sprintf("not a valid %s", f.Format),
			Severity: schemaform.SeverityWarning,
			Actual:   s,
			Expected: f.Format,
		}}
	}
	return nil
}

// parentPresent reports whether the object holding path exists, so that a
// required member of an absent optional object is not reported.
func parentPresent(data map[string]any, path string) bool {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return true
	}
	v, ok := fieldpath.Get(data, path[:i])
	return ok && v != nil
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func hasType(v any, t fields.Type) bool {
	switch t {
	case fields.String:
		_, ok := v.(string)
		return ok
	case fields.Boolean:
		_, ok := v.(bool)
		return ok
	case fields.Number:
		_, ok := toFloat(v)
		return ok
	case fields.Integer:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func kindOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func formatOK(format, s string) bool {
	switch format {
	case "date":
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	case "date-time":
		return parseRFC3339(s) == nil
	}
	return true
}

func parseRFC3339(s string) error {
	// Accept RFC3339Nano (trailing zeros optional)
	if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
		if _, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return nil
		}
		return err
	}
	return nil
}
