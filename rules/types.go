package rules

import (
	"fmt"
	"strconv"
)

// TestKind identifies one of the fixed lab panels
type TestKind int

const (
	BloodPressure      TestKind = 1
	LipidProfile       TestKind = 2
	KidneyHealth       TestKind = 3
	LiverFunction      TestKind = 4
	UricAcid           TestKind = 5
	CompleteBloodCount TestKind = 6
)

// Kinds lists every panel in identifier order
var Kinds = []TestKind{
	BloodPressure,
	LipidProfile,
	KidneyHealth,
	LiverFunction,
	UricAcid,
	CompleteBloodCount,
}

// String returns the panel's display name
func (k TestKind) String() string {
	switch k {
	case BloodPressure:
		return "Blood Pressure"
	case LipidProfile:
		return "Lipid Profile"
	case KidneyHealth:
		return "Kidney Health"
	case LiverFunction:
		return "Liver Function"
	case UricAcid:
		return "Uric Acid"
	case CompleteBloodCount:
		return "Complete Blood Count"
	default:
		return "TestKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is one of the known panels
func (k TestKind) Valid() bool {
	return k >= BloodPressure && k <= CompleteBloodCount
}

// ValueType is the type a measurement field must carry
type ValueType string

const (
	Number ValueType = "number"
	Text   ValueType = "string"
)

// Field declares one required input of a panel
type Field struct {
	Key  string    // input name as supplied by the caller, e.g. "Total Bilirubin"
	Var  string    // expression variable bound to the value, e.g. "TotalBilirubin"
	Type ValueType
}

// Tier is one branch of a field rule. When is a CEL expression over the panel's variables.
type Tier struct {
	When           string
	Label          string
	Recommendation *string
}

// FieldRule classifies a single output key. The first tier whose condition holds wins.
type FieldRule struct {
	Key   string
	Tiers []Tier
}

// Panel is a lab test: its input schema plus the rules producing its output keys
type Panel struct {
	Kind   TestKind
	Name   string
	Fields []Field
	Rules  []FieldRule
}

// OutputKeys returns the keys the panel can produce, in rule order
func (p *Panel) OutputKeys() []string {
	keys := make([]string, 0, len(p.Rules))
	for _, r := range p.Rules {
		keys = append(keys, r.Key)
	}
	return keys
}

// Classification is the label and optional recommendation for one measurement
type Classification struct {
	Label          string  `json:"classification"`
	Recommendation *string `json:"recommendation"`
}

func (c Classification) String() string {
	if c.Recommendation == nil {
		return c.Label
	}
	return fmt.Sprintf("%s (%s)", c.Label, *c.Recommendation)
}

// FieldOutcome is the result for one output key: a classification, or an explicit omission
// when no tier applied.
type FieldOutcome struct {
	Key     string
	Omitted bool
	Result  Classification
	Matched string // condition of the winning tier, empty when omitted
}

// PanelResult holds one outcome per field rule, in rule order
type PanelResult struct {
	Kind     TestKind
	Outcomes []FieldOutcome
}

// Get returns the classification for key. The boolean is false when the key was omitted
// or is not produced by the panel.
func (r *PanelResult) Get(key string) (Classification, bool) {
	for _, o := range r.Outcomes {
		if o.Key == key {
			return o.Result, !o.Omitted
		}
	}
	return Classification{}, false
}

// Keys returns the keys that carry a classification
func (r *PanelResult) Keys() []string {
	keys := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if !o.Omitted {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

// OmittedKeys returns the keys for which no tier applied
func (r *PanelResult) OmittedKeys() []string {
	var keys []string
	for _, o := range r.Outcomes {
		if o.Omitted {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

// Len returns the number of classified keys
func (r *PanelResult) Len() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Omitted {
			n++
		}
	}
	return n
}

func rec(s string) *string {
	return &s
}
