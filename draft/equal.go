package draft

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Equal reports deep structural equality of two states. Absent and empty
// containers compare equal, as do integer and float encodings of a number.
func Equal(a, b State) bool {
	if a.HumanVerified != b.HumanVerified {
		return false
	}
	return cmp.Equal(canonical(a.ExtractedData), canonical(b.ExtractedData), cmpopts.EquateEmpty())
}

// canonical deep-copies a JSON-shaped value, widening integers to float64.
func canonical(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = canonical(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = canonical(t[i])
		}
		return out
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
