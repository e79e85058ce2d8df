package rules

import (
	"encoding/json"
	"sort"
)

// Measurements maps input field names (e.g. "Systolic", "PLT Count") to their values.
// Numeric fields accept any Go integer or float type and json.Number. Gender is matched
// as a string; any other value is treated as an unrecognized gender.
type Measurements map[string]any

// bind checks values against the panel schema and returns the activation for its
// compiled conditions, keyed by expression variable
func bind(p *Panel, values Measurements) (map[string]any, error) {
	var missing []string
	for _, f := range p.Fields {
		if _, ok := values[f.Key]; !ok {
			missing = append(missing, f.Key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingFieldError{Kind: p.Kind, Fields: missing}
	}

	vars := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		raw := values[f.Key]
		switch f.Type {
		case Number:
			n, ok := toFloat(raw)
			if !ok {
				return nil, &TypeMismatchError{Kind: p.Kind, Field: f.Key, Want: Number, Got: raw}
			}
			vars[f.Var] = n
		case Text:
			// A non-string category matches no tier, like any unrecognized string.
			s, _ := raw.(string)
			vars[f.Var] = s
		}
	}
	return vars, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
