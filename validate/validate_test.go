package validate_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/reoring/schemaform"
	"github.com/reoring/schemaform/schema"
	"github.com/reoring/schemaform/validate"
)

func invoiceSchema() schema.Node {
	return schema.Node{
		"type":     "object",
		"required": []any{"po_no", "items"},
		"properties": map[string]any{
			"po_no":  map[string]any{"type": "string"},
			"issued": map[string]any{"type": "string", "format": "date"},
			"total":  map[string]any{"type": "number"},
			"vendor": map[string]any{
				"type":     "object",
				"required": []any{"name"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
			},
			"items": map[string]any{"type": "array", "items": map[string]any{
				"type":     "object",
				"required": []any{"code"},
				"properties": map[string]any{
					"code": map[string]any{"type": "string"},
					"qty":  map[string]any{"type": "integer"},
				},
			}},
		},
	}
}

var fixed = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func TestRun_ValidDocument(t *testing.T) {
	data := map[string]any{
		"po_no":  "PO-1",
		"issued": "2024-01-02",
		"total":  12.5,
		"items":  []any{map[string]any{"code": "A", "qty": 2.0}},
	}
	r := validate.Run(invoiceSchema(), data, validate.WithClock(func() time.Time { return fixed }))
	if !r.Passed() || len(r.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", r.Issues)
	}
	if !r.ValidatedAt.Equal(fixed) {
		t.Fatalf("ValidatedAt = %v", r.ValidatedAt)
	}
}

func TestRun_Issues(t *testing.T) {
	data := map[string]any{
		"po_no":  "  ",
		"issued": "02/01/2024",
		"total":  "12.5",
		"vendor": map[string]any{},
		"items": []any{
			map[string]any{"code": "A", "qty": 1.5},
			map[string]any{"qty": 1.0},
		},
		"_extraction_info": map[string]any{"uncertain_fields": []any{"total"}},
	}
	r := validate.Run(invoiceSchema(), data)
	got := map[string]string{}
	for _, it := range r.Issues {
		got[it.Path] = it.Code
	}
	want := map[string]string{
		"po_no":         schemaform.CodeRequired,
		"issued":        schemaform.CodeInvalidFormat,
		"vendor.name":   schemaform.CodeRequired,
		"items[0].qty":  schemaform.CodeInvalidType,
		"items[1].code": schemaform.CodeRequired,
	}
	// "total" carries both invalid_type and uncertain_field
	delete(got, "total")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
	if r.ErrorCount != 5 || r.WarningCount != 2 {
		t.Fatalf("counts = %d errors, %d warnings", r.ErrorCount, r.WarningCount)
	}
}

func TestRun_OptionalParentAbsent(t *testing.T) {
	data := map[string]any{"po_no": "PO-1", "items": []any{}}
	r := validate.Run(invoiceSchema(), data)
	if len(r.Issues) != 0 {
		t.Fatalf("absent optional object must not report its required members: %v", r.Issues)
	}
}

func TestRun_MissingRequiredArray(t *testing.T) {
	r := validate.Run(invoiceSchema(), map[string]any{"po_no": "PO-1"}, validate.WithUncertainFields(false))
	want := schemaform.Issues{{
		Path: "items", Code: schemaform.CodeRequired, Message: "required field is missing", Severity: schemaform.SeverityError,
	}}
	if diff := cmp.Diff(want, r.Issues, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
}

func TestRun_NonArrayValue(t *testing.T) {
	r := validate.Run(invoiceSchema(), map[string]any{"po_no": "PO-1", "items": "nope"})
	if r.ErrorCount != 1 || r.Issues[0].Code != schemaform.CodeInvalidType || r.Issues[0].Path != "items" {
		t.Fatalf("got %v", r.Issues)
	}
}
