// internal/interpreter/valued.go
package interpreter

import (
	"fmt"
	"sync"

	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/types"
)

/*
 * Valued interpreter.
 *
 * Compiles the program once into a tree of leaves that refer to keys by a
 * dense slot index. Each evaluation resolves every referenced key from the
 * context exactly once into a slot slice; leaves then read by index.
 *
 * Compilation workflow:
 *   1. Validate the program
 *   2. Assign a slot to every distinct LHS key, in first-reference order
 *   3. Build hash sets for enum arrays longer than enumSetThreshold
 *
 * Resolution does not fail on unknown keys: the slot records known=false and
 * the leaf reports InvalidKey only when evaluation reaches it, exactly as the
 * plain interpreter does.
 *
 * Slot slices are pooled; the compiled tree is immutable after NewValued.
 */

// enumSetThreshold is the enum array length above which membership uses a set.
const enumSetThreshold = 8

type valuedLeaf struct {
	slot    int
	cmp     *types.Comparison
	enumSet map[string]struct{}
}

type valuedStatement struct {
	leaves []valuedLeaf
	nested []valuedStatement
}

type valuedRule[O any] struct {
	rule       *types.Rule[O]
	statements []valuedStatement
}

type resolved struct {
	value    types.ValueType
	present  bool
	known    bool
	metadata bool
}

// Valued evaluates a compiled program with per-evaluation key resolution.
type Valued[O any] struct {
	program *types.Program[O]
	keys    []string
	rules   []valuedRule[O]
	pool    sync.Pool
}

// NewValued validates and compiles program.
func NewValued[O any](program *types.Program[O]) (*Valued[O], error) {
	if program == nil {
		return nil, fmt.Errorf("nil program")
	}
	if err := program.Validate(); err != nil {
		return nil, err
	}

	v := &Valued[O]{program: program}
	slots := make(map[string]int)
	v.rules = make([]valuedRule[O], len(program.Rules))
	for i := range program.Rules {
		rule := &program.Rules[i]
		v.rules[i] = valuedRule[O]{
			rule:       rule,
			statements: compileStatements(rule.Statements, slots, &v.keys),
		}
	}

	n := len(v.keys)
	v.pool.New = func() any {
		s := make([]resolved, n)
		return &s
	}
	return v, nil
}

func compileStatements(stmts []types.IfStatement, slots map[string]int, keys *[]string) []valuedStatement {
	out := make([]valuedStatement, len(stmts))
	for i := range stmts {
		stmt := &stmts[i]
		leaves := make([]valuedLeaf, len(stmt.Condition))
		for j := range stmt.Condition {
			cmp := &stmt.Condition[j]
			slot, ok := slots[cmp.LHS]
			if !ok {
				slot = len(*keys)
				slots[cmp.LHS] = slot
				*keys = append(*keys, cmp.LHS)
			}
			leaves[j] = valuedLeaf{slot: slot, cmp: cmp, enumSet: buildEnumSet(cmp.Value)}
		}
		out[i] = valuedStatement{leaves: leaves, nested: compileStatements(stmt.Nested, slots, keys)}
	}
	return out
}

func buildEnumSet(v types.ValueType) map[string]struct{} {
	if v.Kind != types.KindEnumVariantArray || len(v.Enums) <= enumSetThreshold {
		return nil
	}
	set := make(map[string]struct{}, len(v.Enums))
	for _, e := range v.Enums {
		set[e] = struct{}{}
	}
	return set
}

// Strategy implements Interpreter.
func (v *Valued[O]) Strategy() Strategy { return StrategyValued }

// Keys returns the distinct keys the program references, in slot order.
func (v *Valued[O]) Keys() []string {
	return append([]string(nil), v.keys...)
}

// Evaluate implements Interpreter.
func (v *Valued[O]) Evaluate(ctx domain.Context) (Output[O], error) {
	sp := v.pool.Get().(*[]resolved)
	defer v.pool.Put(sp)
	slots := *sp
	for i, key := range v.keys {
		val, present, known := ctx.Lookup(key)
		slots[i] = resolved{value: val, present: present, known: known, metadata: ctx.IsMetadataKey(key)}
	}

	for i := range v.rules {
		r := &v.rules[i]
		for j := range r.statements {
			ok, err := r.statements[j].eval(slots, ctx)
			if err != nil {
				return Output[O]{}, err
			}
			if ok {
				return Output[O]{RuleName: r.rule.Name, Selection: r.rule.Selection}, nil
			}
		}
	}
	return Output[O]{Selection: *v.program.Default}, nil
}

func (s *valuedStatement) eval(slots []resolved, ctx domain.Context) (bool, error) {
	for i := range s.leaves {
		ok, err := s.leaves[i].eval(slots, ctx)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(s.nested) == 0 {
		return true, nil
	}
	for i := range s.nested {
		ok, err := s.nested[i].eval(slots, ctx)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (l *valuedLeaf) eval(slots []resolved, ctx domain.Context) (bool, error) {
	r := &slots[l.slot]
	if !r.known {
		return false, invalidKey(l.cmp.LHS)
	}
	if r.metadata {
		return evalMetadata(l.cmp, ctx)
	}
	if !r.present {
		return false, nil
	}
	return compare(r.value, l.cmp, l.enumSet)
}
