package confidence_test

import (
	"reflect"
	"testing"

	"github.com/reoring/schemaform/confidence"
)

func doc(scores map[string]any) map[string]any {
	return map[string]any{
		"items": []any{map[string]any{"code": "A"}},
		confidence.InfoKey: map[string]any{
			"confidence":        0.8,
			"field_confidences": scores,
			"ocr_issues":        []any{"blurry scan", ""},
			"uncertain_fields":  []any{"invoice.po_no"},
		},
	}
}

func TestScore_FallbackOrder(t *testing.T) {
	r := confidence.New(doc(map[string]any{"items[].code": 0.75}))
	f, ok := r.Score("items[].code", "items[3].code")
	if !ok || f != 0.75 {
		t.Fatalf("normalized key should serve indexed lookups, got %v %v", f, ok)
	}

	r = confidence.New(doc(map[string]any{"items[3].code": 0.95, "items[].code": 0.5}))
	if f, _ := r.Score("items[].code", "items[3].code"); f != 0.95 {
		t.Fatalf("indexed key must win, got %v", f)
	}
	if f, _ := r.Score("items[].code", "items[1].code"); f != 0.5 {
		t.Fatalf("other elements fall back to the schema path, got %v", f)
	}

	r = confidence.New(doc(map[string]any{"total": 0.6}))
	if f, ok := r.Score("total", ""); !ok || f != 0.6 {
		t.Fatalf("plain path lookup, got %v %v", f, ok)
	}
}

func TestTierFor(t *testing.T) {
	r := confidence.New(doc(map[string]any{"a": 0.9, "b": 0.7, "c": 0.69, "d": "bogus"}))
	cases := map[string]confidence.Tier{
		"a":       confidence.High,
		"b":       confidence.Medium,
		"c":       confidence.Low,
		"d":       confidence.Neutral,
		"missing": confidence.Neutral,
	}
	for path, want := range cases {
		if got := r.TierFor(path, ""); got != want {
			t.Fatalf("TierFor(%q) = %v, want %v", path, got, want)
		}
	}

	strict := confidence.New(doc(map[string]any{"a": 0.9}), confidence.WithThresholds(confidence.Thresholds{High: 0.95, Medium: 0.5}))
	if got := strict.TierFor("a", ""); got != confidence.Medium {
		t.Fatalf("custom thresholds: got %v", got)
	}
}

func TestNoMetadata(t *testing.T) {
	r := confidence.New(map[string]any{"total": 1.0})
	if got := r.TierFor("total", ""); got != confidence.Neutral {
		t.Fatalf("got %v", got)
	}
	if len(r.Alerts()) != 0 {
		t.Fatalf("no alerts expected")
	}
}

func TestAlerts(t *testing.T) {
	r := confidence.New(doc(nil))
	want := []string{"blurry scan", "Uncertain field: invoice.po_no"}
	if got := r.Alerts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Alerts = %v", got)
	}
	if c := r.Info().Confidence; c == nil || *c != 0.8 {
		t.Fatalf("overall confidence not parsed: %v", c)
	}
}
