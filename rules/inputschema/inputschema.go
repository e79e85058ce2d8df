// Package inputschema publishes each panel's required fields as a JSON Schema document
// and validates measurement sets against the compiled schema. Validation reports every
// violation at once, where the engine stops at the first class of problem.
package inputschema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/liamcoop/labrules/rules"
)

const draft = "https://json-schema.org/draft/2020-12/schema"

// Validator holds the compiled schema of every panel
type Validator struct {
	docs    map[rules.TestKind]map[string]any
	schemas map[rules.TestKind]*jsonschema.Schema
}

// Document builds the JSON Schema for a panel's measurement object
func Document(p *rules.Panel) map[string]any {
	required := make([]any, 0, len(p.Fields))
	properties := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		required = append(required, f.Key)
		properties[f.Key] = property(f)
	}

	return map[string]any{
		"$schema":    draft,
		"title":      p.Name,
		"type":       "object",
		"required":   required,
		"properties": properties,
	}
}

// Categorical fields carry no type constraint: the engine accepts any value there and
// classifies only the recognized strings.
func property(f rules.Field) map[string]any {
	if f.Type == rules.Text {
		return map[string]any{"examples": []any{"M", "F"}}
	}
	return map[string]any{"type": string(f.Type)}
}

// NewValidator compiles one schema per panel
func NewValidator(panels []*rules.Panel) (*Validator, error) {
	v := &Validator{
		docs:    make(map[rules.TestKind]map[string]any, len(panels)),
		schemas: make(map[rules.TestKind]*jsonschema.Schema, len(panels)),
	}

	c := jsonschema.NewCompiler()
	for _, p := range panels {
		doc := Document(p)

		// The compiler expects plain decoded JSON values.
		parsed, err := normalize(doc)
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", p.Kind, err)
		}
		if err := c.AddResource(schemaURL(p.Kind), parsed); err != nil {
			return nil, fmt.Errorf("add schema for panel %s: %w", p.Kind, err)
		}

		compiled, err := c.Compile(schemaURL(p.Kind))
		if err != nil {
			return nil, fmt.Errorf("compile schema for panel %s: %w", p.Kind, err)
		}
		v.docs[p.Kind] = doc
		v.schemas[p.Kind] = compiled
	}
	return v, nil
}

// Document returns the schema document for kind
func (v *Validator) Document(kind rules.TestKind) (map[string]any, error) {
	doc, ok := v.docs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", rules.ErrUnknownTest, int(kind))
	}
	return doc, nil
}

// Validate checks values against the schema for kind. Violations are returned as a
// *jsonschema.ValidationError wrapped with the panel name.
func (v *Validator) Validate(kind rules.TestKind, values rules.Measurements) error {
	sch, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("%w: %d", rules.ErrUnknownTest, int(kind))
	}

	inst, err := normalize(map[string]any(values))
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return nil
}

func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var parsed any
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return parsed, nil
}

func schemaURL(kind rules.TestKind) string {
	return fmt.Sprintf("schema://labrules/panel-%d.json", int(kind))
}
