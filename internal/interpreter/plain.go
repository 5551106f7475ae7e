// internal/interpreter/plain.go
package interpreter

import (
	"fmt"

	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/types"
)

/*
 * Plain interpreter.
 *
 * Walks the program AST directly. Every leaf looks its key up in the context,
 * so a key referenced by many rules is hashed once per reference.
 *
 * Evaluation flow:
 *   1. Rules in declared order; first rule with a holding statement wins
 *   2. Statements of a rule are OR-ed (short-circuit on first match)
 *   3. Comparisons of a condition are AND-ed (short-circuit on first false)
 *   4. Nested statements are only considered once the parent condition holds,
 *      and at least one of them must hold
 *   5. No rule holds -> program default, not an error
 *
 * Errors abort the whole evaluation. A leaf that is never reached because of
 * short-circuiting cannot fail, which keeps results identical to Valued.
 */

// Plain evaluates a program by walking its AST.
type Plain[O any] struct {
	program *types.Program[O]
}

// NewPlain validates program and returns a plain interpreter for it.
func NewPlain[O any](program *types.Program[O]) (*Plain[O], error) {
	if program == nil {
		return nil, fmt.Errorf("nil program")
	}
	if err := program.Validate(); err != nil {
		return nil, err
	}
	return &Plain[O]{program: program}, nil
}

// Strategy implements Interpreter.
func (p *Plain[O]) Strategy() Strategy { return StrategyPlain }

// Evaluate implements Interpreter.
func (p *Plain[O]) Evaluate(ctx domain.Context) (Output[O], error) {
	for i := range p.program.Rules {
		rule := &p.program.Rules[i]
		matched, err := p.evalRule(rule, ctx)
		if err != nil {
			return Output[O]{}, err
		}
		if matched {
			return Output[O]{RuleName: rule.Name, Selection: rule.Selection}, nil
		}
	}
	return Output[O]{Selection: *p.program.Default}, nil
}

func (p *Plain[O]) evalRule(rule *types.Rule[O], ctx domain.Context) (bool, error) {
	for i := range rule.Statements {
		ok, err := evalStatement(&rule.Statements[i], ctx)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalStatement(stmt *types.IfStatement, ctx domain.Context) (bool, error) {
	for i := range stmt.Condition {
		ok, err := evalComparison(&stmt.Condition[i], ctx)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(stmt.Nested) == 0 {
		return true, nil
	}
	for i := range stmt.Nested {
		ok, err := evalStatement(&stmt.Nested[i], ctx)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalComparison(cmp *types.Comparison, ctx domain.Context) (bool, error) {
	observed, present, known := ctx.Lookup(cmp.LHS)
	if !known {
		return false, invalidKey(cmp.LHS)
	}
	if ctx.IsMetadataKey(cmp.LHS) {
		return evalMetadata(cmp, ctx)
	}
	if !present {
		return false, nil
	}
	return compare(observed, cmp, nil)
}

// evalMetadata resolves a metadata comparison against the request metadata map.
func evalMetadata(cmp *types.Comparison, ctx domain.Context) (bool, error) {
	if cmp.Value.Kind != types.KindMetadataVariant {
		return false, invalidComparison(cmp, types.KindMetadataVariant)
	}
	observed, ok := ctx.Metadata(cmp.Value.Metadata.Key)
	if !ok {
		return false, nil
	}
	return compareMetadata(observed, cmp)
}
