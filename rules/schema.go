package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidatePanel checks a panel definition before its conditions are compiled
func ValidatePanel(p *Panel) error {
	if p == nil {
		return fmt.Errorf("panel cannot be nil")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("panel %q has unknown kind %d", p.Name, int(p.Kind))
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("panel %d has an empty name", int(p.Kind))
	}
	if len(p.Fields) == 0 {
		return fmt.Errorf("panel %q must declare at least one field", p.Name)
	}
	if len(p.Rules) == 0 {
		return fmt.Errorf("panel %q must declare at least one rule", p.Name)
	}

	keys := make(map[string]bool, len(p.Fields))
	vars := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		if f.Key == "" {
			return fmt.Errorf("panel %q has a field with an empty key", p.Name)
		}
		if strings.TrimSpace(f.Key) != f.Key {
			return fmt.Errorf("field %q in panel %q has leading/trailing whitespace", f.Key, p.Name)
		}
		if keys[f.Key] {
			return fmt.Errorf("field %q is declared twice in panel %q", f.Key, p.Name)
		}
		keys[f.Key] = true

		if err := validateIdentifier(f.Var); err != nil {
			return fmt.Errorf("invalid variable %q for field %q in panel %q: %w", f.Var, f.Key, p.Name, err)
		}
		if vars[f.Var] {
			return fmt.Errorf("variable %q is bound twice in panel %q", f.Var, p.Name)
		}
		vars[f.Var] = true

		if f.Type != Number && f.Type != Text {
			return fmt.Errorf("field %q in panel %q has invalid type %q (must be one of: number, string)", f.Key, p.Name, f.Type)
		}
	}

	outputs := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		if r.Key == "" {
			return fmt.Errorf("panel %q has a rule with an empty key", p.Name)
		}
		if outputs[r.Key] {
			return fmt.Errorf("rule key %q is declared twice in panel %q", r.Key, p.Name)
		}
		outputs[r.Key] = true

		if len(r.Tiers) == 0 {
			return fmt.Errorf("rule %q in panel %q has no tiers", r.Key, p.Name)
		}
		for i, t := range r.Tiers {
			if strings.TrimSpace(t.When) == "" {
				return fmt.Errorf("tier %d of rule %q in panel %q has an empty condition", i, r.Key, p.Name)
			}
			if t.Label == "" {
				return fmt.Errorf("tier %d of rule %q in panel %q has an empty label", i, r.Key, p.Name)
			}
		}
	}

	return nil
}

// NewPanelEnv creates a CEL environment declaring one typed variable per panel field
func NewPanelEnv(p *Panel) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(p.Fields))
	for _, f := range p.Fields {
		switch f.Type {
		case Number:
			opts = append(opts, cel.Variable(f.Var, cel.DoubleType))
		case Text:
			opts = append(opts, cel.Variable(f.Var, cel.StringType))
		}
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment for panel %q: %w", p.Name, err)
	}
	return env, nil
}

// validateIdentifier checks an expression variable name: 1-100 characters, identifier
// syntax, and not a reserved word
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(name))
	}
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}
	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}
	return nil
}

func isReservedKeyword(name string) bool {
	reservedKeywords := map[string]bool{
		"true":  true,
		"false": true,
		"null":  true,

		"if":       true,
		"else":     true,
		"for":      true,
		"while":    true,
		"break":    true,
		"continue": true,
		"return":   true,

		"var":      true,
		"let":      true,
		"const":    true,
		"function": true,

		"in":        true,
		"as":        true,
		"import":    true,
		"package":   true,
		"namespace": true,
		"loop":      true,
		"void":      true,
	}

	return reservedKeywords[name]
}
