// internal/types/program.go
package types

import "fmt"

/*
 * Routing program AST.
 *
 * A Program is an ordered list of rules plus a mandatory default selection.
 * Rules are evaluated top-to-bottom and the first match wins, so rule order is
 * part of the program's meaning and must survive serialization unchanged.
 *
 * Key types:
 *   - Program[O]: rules + default, parameterised by the output payload
 *   - Rule[O]: name, output, and statements (OR of statements)
 *   - IfStatement: condition (AND of comparisons) plus optional nested
 *     refinements; a nested branch is only considered once its parent
 *     condition holds, and at least one nested branch must hold
 *   - Comparison: lhs key, operator, typed value
 *
 * Programs are produced by an external parser or decoded from storage and are
 * never mutated after validation; a rule change replaces the whole program.
 */

// Comparison is a single leaf test: context[LHS] <Comparison> Value.
type Comparison struct {
	LHS        string         `json:"lhs"`
	Comparison ComparisonType `json:"comparison"`
	Value      ValueType      `json:"value"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// IfCondition is a conjunction of comparisons.
type IfCondition []Comparison

// IfStatement is a condition with optional nested refinements.
type IfStatement struct {
	Condition IfCondition   `json:"condition"`
	Nested    []IfStatement `json:"nested,omitempty"`
}

// Rule pairs statements with the selection returned when any statement holds.
type Rule[O any] struct {
	Name       string        `json:"name"`
	Selection  O             `json:"connector_selection"`
	Statements []IfStatement `json:"statements"`
}

// Program is the unit of evaluation, analysis and persistence.
type Program[O any] struct {
	Default  *O             `json:"default_selection"`
	Rules    []Rule[O]      `json:"rules"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// selectionValidator is implemented by outputs that carry their own invariants.
type selectionValidator interface {
	Validate() error
}

// Validate checks the structural invariants a program must hold before it
// can be analyzed or activated. Rule names are informational and need not be unique.
func (p *Program[O]) Validate() error {
	if p.Default == nil {
		return ErrMissingDefault
	}
	if err := validateSelection(*p.Default); err != nil {
		return fmt.Errorf("default selection: %w", err)
	}
	if len(p.Rules) > MaxRules {
		return ErrTooManyRules
	}
	for i, rule := range p.Rules {
		if err := rule.validate(); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}
	return nil
}

func (r *Rule[O]) validate() error {
	if len(r.Statements) == 0 {
		return ErrEmptyRule
	}
	if err := validateSelection(r.Selection); err != nil {
		return err
	}
	for _, stmt := range r.Statements {
		if err := stmt.validate(1); err != nil {
			return err
		}
	}
	return nil
}

func (s *IfStatement) validate(depth int) error {
	if depth > MaxNestingDepth {
		return ErrNestingTooDeep
	}
	if len(s.Condition) == 0 {
		return ErrEmptyCondition
	}
	for _, cmp := range s.Condition {
		if err := cmp.validate(); err != nil {
			return err
		}
	}
	for _, nested := range s.Nested {
		if err := nested.validate(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (c *Comparison) validate() error {
	if !c.Comparison.Valid() {
		return fmt.Errorf("%w: %q on %s", ErrUnknownComparison, c.Comparison, c.LHS)
	}
	if c.Value.Kind.IsArray() && c.Value.Len() > MaxArrayValues {
		return fmt.Errorf("%w: %s has %d", ErrTooManyValues, c.LHS, c.Value.Len())
	}
	for _, nc := range c.Value.NumberComparisons {
		if !nc.Type.Valid() {
			return fmt.Errorf("%w: %q on %s", ErrUnknownComparison, nc.Type, c.LHS)
		}
	}
	return nil
}

func validateSelection[O any](sel O) error {
	if v, ok := any(sel).(selectionValidator); ok {
		return v.Validate()
	}
	if v, ok := any(&sel).(selectionValidator); ok {
		return v.Validate()
	}
	return nil
}

// Depth returns the deepest nesting level of the statement (1 for a leaf).
func (s *IfStatement) Depth() int {
	deepest := 0
	for i := range s.Nested {
		if d := s.Nested[i].Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Paths flattens the statement into the conjunctions it can match:
// one path per root-to-leaf walk through nested refinements.
func (s *IfStatement) Paths() []IfCondition {
	if len(s.Nested) == 0 {
		return []IfCondition{append(IfCondition(nil), s.Condition...)}
	}
	var paths []IfCondition
	for i := range s.Nested {
		for _, tail := range s.Nested[i].Paths() {
			path := make(IfCondition, 0, len(s.Condition)+len(tail))
			path = append(path, s.Condition...)
			path = append(path, tail...)
			paths = append(paths, path)
		}
	}
	return paths
}

// Paths returns every conjunction path of the rule, statement by statement.
func (r *Rule[O]) Paths() []IfCondition {
	var paths []IfCondition
	for i := range r.Statements {
		paths = append(paths, r.Statements[i].Paths()...)
	}
	return paths
}
