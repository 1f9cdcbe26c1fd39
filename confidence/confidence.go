// Package confidence maps field paths to the extraction confidence recorded in
// a document's reserved metadata key and to a discrete display tier.
package confidence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reoring/schemaform/fieldpath"
)

// InfoKey is the reserved top-level document key holding extraction metadata.
const InfoKey = "_extraction_info"

// ExtractionInfo is the metadata an extraction pipeline attaches to a document.
type ExtractionInfo struct {
	Confidence       *float64           `json:"confidence,omitempty"`
	FieldConfidences map[string]float64 `json:"field_confidences,omitempty"`
	OCRIssues        []string           `json:"ocr_issues,omitempty"`
	UncertainFields  []string           `json:"uncertain_fields,omitempty"`
	RawOCRText       string             `json:"raw_ocr_text,omitempty"`
}

// ParseInfo reads the metadata from doc. Malformed entries are skipped; a
// document without metadata yields the zero value.
func ParseInfo(doc map[string]any) ExtractionInfo {
	var info ExtractionInfo
	raw, ok := doc[InfoKey].(map[string]any)
	if !ok {
		return info
	}
	if f, ok := number(raw["confidence"]); ok {
		info.Confidence = &f
	}
	if m, ok := raw["field_confidences"].(map[string]any); ok {
		info.FieldConfidences = make(map[string]float64, len(m))
		for k, v := range m {
			if f, ok := number(v); ok {
				info.FieldConfidences[k] = f
			}
		}
	}
	info.OCRIssues = stringList(raw["ocr_issues"])
	info.UncertainFields = stringList(raw["uncertain_fields"])
	info.RawOCRText, _ = raw["raw_ocr_text"].(string)
	return info
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case fmt.Stringer:
		// json.Number and friends
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

func stringList(v any) []string {
	list, _ := v.([]any)
	var out []string
	for _, el := range list {
		if s, ok := el.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Tier is the display bucket of a confidence score.
type Tier int

const (
	Neutral Tier = iota // no score recorded
	High
	Medium
	Low
)

func (t Tier) String() string {
	switch t {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "neutral"
	}
}

// Thresholds are the inclusive lower bounds of the High and Medium tiers.
type Thresholds struct {
	High   float64 `yaml:"high" json:"high"`
	Medium float64 `yaml:"medium" json:"medium"`
}

// DefaultThresholds returns High 0.9, Medium 0.7.
func DefaultThresholds() Thresholds { return Thresholds{High: 0.9, Medium: 0.7} }

// Resolver answers confidence lookups for one document.
type Resolver struct {
	info       ExtractionInfo
	thresholds Thresholds
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThresholds overrides DefaultThresholds.
func WithThresholds(t Thresholds) Option { return func(r *Resolver) { r.thresholds = t } }

// New builds a Resolver over the metadata of doc.
func New(doc map[string]any, opts ...Option) *Resolver {
	r := &Resolver{info: ParseInfo(doc), thresholds: DefaultThresholds()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Info returns the parsed metadata.
func (r *Resolver) Info() ExtractionInfo { return r.info }

// Score looks up the confidence for a field. indexed is the concrete path of
// the rendered control ("items[2].code") and may be empty; path is the schema
// path ("items[].code"). Candidates are tried in order: indexed, indexed
// normalized, path, path normalized. The first recorded score wins.
func (r *Resolver) Score(path, indexed string) (float64, bool) {
	if len(r.info.FieldConfidences) == 0 {
		return 0, false
	}
	for _, k := range []string{indexed, fieldpath.Normalize(indexed), path, fieldpath.Normalize(path)} {
		if k == "" {
			continue
		}
		if f, ok := r.info.FieldConfidences[k]; ok {
			return f, true
		}
	}
	return 0, false
}

// TierFor returns the tier of the field's score, Neutral when none is recorded.
func (r *Resolver) TierFor(path, indexed string) Tier {
	f, ok := r.Score(path, indexed)
	if !ok {
		return Neutral
	}
	return r.thresholds.Tier(f)
}

// Tier buckets a score.
func (t Thresholds) Tier(score float64) Tier {
	switch {
	case score >= t.High:
		return High
	case score >= t.Medium:
		return Medium
	default:
		return Low
	}
}

// Alerts lists the extraction issues followed by one entry per uncertain field.
func (r *Resolver) Alerts() []string {
	out := append([]string(nil), r.info.OCRIssues...)
	for _, f := range r.info.UncertainFields {
		out = append(out, "Uncertain field: "+f)
	}
	return out
}
