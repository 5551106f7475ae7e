// Package interpreter evaluates routing programs against request contexts.
//
// Two strategies implement the same Interpreter interface with identical
// semantics: Plain walks the AST and looks every leaf up in the context, and
// Valued compiles the program once and resolves each referenced key a single
// time per evaluation. Select picks one by name or, for "auto", by the cost
// model in cost.go.
//
// Interpreters hold only immutable data and are safe for concurrent use.
package interpreter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/types"
)

// Output is the result of an evaluation. RuleName is empty when no rule
// matched and the default selection was returned.
type Output[O any] struct {
	RuleName  string
	Selection O
}

// IsDefault reports whether the output came from the program default.
func (o Output[O]) IsDefault() bool {
	return o.RuleName == ""
}

// Interpreter evaluates one program.
type Interpreter[O any] interface {
	// Evaluate returns the selection of the first rule whose statements hold
	// in ctx, or the program default when none does.
	Evaluate(ctx domain.Context) (Output[O], error)

	// Strategy names the implementation.
	Strategy() Strategy
}

// Strategy selects an interpreter implementation.
type Strategy string

const (
	StrategyPlain  Strategy = "plain"
	StrategyValued Strategy = "valued"
	StrategyAuto   Strategy = "auto"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyPlain, StrategyValued, StrategyAuto:
		return st, nil
	default:
		return "", fmt.Errorf("unknown interpreter strategy %q (expected plain, valued or auto)", s)
	}
}

// Select builds the interpreter for strategy. For StrategyAuto the valued
// interpreter is chosen when ProgramCost exceeds threshold.
func Select[O any](strategy Strategy, program *types.Program[O], threshold int) (Interpreter[O], error) {
	switch strategy {
	case StrategyPlain:
		return NewPlain(program)
	case StrategyValued:
		return NewValued(program)
	case StrategyAuto:
		if ProgramCost(program) > threshold {
			return NewValued(program)
		}
		return NewPlain(program)
	default:
		return nil, fmt.Errorf("unknown interpreter strategy %q", strategy)
	}
}

// ErrorType classifies interpreter failures.
type ErrorType string

const (
	ErrorInvalidKey        ErrorType = "invalid_key"
	ErrorInvalidComparison ErrorType = "invalid_comparison"
)

// Sentinels matched by InterpreterError.Is.
var (
	ErrInvalidKey        = errors.New("invalid key")
	ErrInvalidComparison = errors.New("invalid comparison")
)

// InterpreterError aborts a single evaluation. It signals drift between a
// program and the domain and must be surfaced, not folded into the default.
type InterpreterError struct {
	Type     ErrorType
	Metadata map[string]any
}

func (e *InterpreterError) Error() string {
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(e.Type))
	for i, k := range keys {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, e.Metadata[k])
	}
	return b.String()
}

// Is matches ErrInvalidKey and ErrInvalidComparison.
func (e *InterpreterError) Is(target error) bool {
	switch target {
	case ErrInvalidKey:
		return e.Type == ErrorInvalidKey
	case ErrInvalidComparison:
		return e.Type == ErrorInvalidComparison
	default:
		return false
	}
}

func invalidKey(key string) error {
	return &InterpreterError{
		Type:     ErrorInvalidKey,
		Metadata: map[string]any{"key": key},
	}
}

func invalidComparison(cmp *types.Comparison, observed types.ValueKind) error {
	return &InterpreterError{
		Type: ErrorInvalidComparison,
		Metadata: map[string]any{
			"lhs":           cmp.LHS,
			"comparison":    string(cmp.Comparison),
			"observed_kind": string(observed),
			"asserted_kind": string(cmp.Value.Kind),
		},
	}
}
