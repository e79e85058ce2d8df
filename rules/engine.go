package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// costLimit bounds the runtime cost of a single tier condition
const costLimit = 1000000

type compiledTier struct {
	tier Tier
	prog cel.Program
}

type compiledRule struct {
	key   string
	tiers []compiledTier
}

type compiledPanel struct {
	panel *Panel
	rules []compiledRule
}

// Engine compiles every panel's tier conditions once and evaluates measurement sets
// against them. It is immutable after construction and safe for concurrent use.
type Engine struct {
	panels map[TestKind]*compiledPanel
	order  []TestKind
}

// NewDefaultEngine creates an engine over the built-in panels
func NewDefaultEngine() (*Engine, error) {
	catalog, err := NewDefaultCatalog()
	if err != nil {
		return nil, err
	}
	return NewEngine(catalog)
}

// NewEngine validates and compiles all panels of the catalog
func NewEngine(catalog Catalog) (*Engine, error) {
	panels, err := catalog.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list panels: %w", err)
	}

	en := &Engine{
		panels: make(map[TestKind]*compiledPanel, len(panels)),
	}
	for _, p := range panels {
		cp, err := compilePanel(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile panel %s: %w", p.Kind, err)
		}
		en.panels[p.Kind] = cp
		en.order = append(en.order, p.Kind)
	}

	return en, nil
}

func compilePanel(p *Panel) (*compiledPanel, error) {
	if err := ValidatePanel(p); err != nil {
		return nil, err
	}

	env, err := NewPanelEnv(p)
	if err != nil {
		return nil, err
	}

	cp := &compiledPanel{panel: p, rules: make([]compiledRule, 0, len(p.Rules))}
	for _, r := range p.Rules {
		cr := compiledRule{key: r.Key, tiers: make([]compiledTier, 0, len(r.Tiers))}
		for i, t := range r.Tiers {
			prog, err := CompileCondition(env, t.When)
			if err != nil {
				return nil, fmt.Errorf("rule %q tier %d: %w", r.Key, i, err)
			}
			cr.tiers = append(cr.tiers, compiledTier{tier: t, prog: prog})
		}
		cp.rules = append(cp.rules, cr)
	}
	return cp, nil
}

// CompileCondition compiles a tier condition and checks that it yields a bool
func CompileCondition(env *cel.Env, expression string) (cel.Program, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	prog, err := env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Panels returns the compiled panel definitions in kind order
func (en *Engine) Panels() []*Panel {
	panels := make([]*Panel, 0, len(en.order))
	for _, k := range en.order {
		panels = append(panels, en.panels[k].panel)
	}
	return panels
}

// Panel returns the definition for kind
func (en *Engine) Panel(kind TestKind) (*Panel, error) {
	cp, exists := en.panels[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTest, int(kind))
	}
	return cp.panel, nil
}

// Evaluate classifies values with the panel selected by testID. An identifier outside
// the catalog returns ErrUnknownTest.
func (en *Engine) Evaluate(testID int, values Measurements) (*PanelResult, error) {
	return en.EvaluatePanel(TestKind(testID), values)
}

// EvaluatePanel classifies values with the given panel. Missing or mistyped inputs are
// reported before any condition runs.
func (en *Engine) EvaluatePanel(kind TestKind, values Measurements) (*PanelResult, error) {
	cp, exists := en.panels[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTest, int(kind))
	}

	vars, err := bind(cp.panel, values)
	if err != nil {
		return nil, err
	}

	result := &PanelResult{
		Kind:     kind,
		Outcomes: make([]FieldOutcome, 0, len(cp.rules)),
	}
	for _, cr := range cp.rules {
		outcome, err := cr.evaluate(vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func (cr compiledRule) evaluate(vars map[string]any) (FieldOutcome, error) {
	for _, ct := range cr.tiers {
		out, _, err := ct.prog.Eval(vars)
		if err != nil {
			return FieldOutcome{}, fmt.Errorf("rule %q condition %q: %w", cr.key, ct.tier.When, err)
		}

		// Non-boolean results count as no match.
		if matched, ok := out.Value().(bool); ok && matched {
			return FieldOutcome{
				Key: cr.key,
				Result: Classification{
					Label:          ct.tier.Label,
					Recommendation: cloneRec(ct.tier.Recommendation),
				},
				Matched: ct.tier.When,
			}, nil
		}
	}
	return FieldOutcome{Key: cr.key, Omitted: true}, nil
}

// cloneRec keeps callers from mutating the catalog's recommendation strings
func cloneRec(s *string) *string {
	if s == nil {
		return nil
	}
	return rec(*s)
}

// Input is a typed measurement set that knows which panel it belongs to
type Input interface {
	Kind() TestKind
	Measurements() Measurements
}

// EvaluateInput classifies a typed input with its own panel
func (en *Engine) EvaluateInput(in Input) (*PanelResult, error) {
	return en.EvaluatePanel(in.Kind(), in.Measurements())
}
