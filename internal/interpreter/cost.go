// internal/interpreter/cost.go
package interpreter

import "github.com/solatis/routekeeper/internal/types"

/*
 * Cost model for strategy selection.
 *
 * Estimates the work of one plain evaluation in abstract units so "auto" can
 * pick the valued interpreter once repeated context lookups dominate.
 *
 * Cost formula per comparison: lookup_cost + operator_cost * kind_multiplier
 *
 * Array values multiply by their length (linear membership scan). Nested
 * statements add their own comparisons. A program's cost is the sum over all
 * rules, the worst case where no rule matches and the default is returned.
 */

const (
	// Operator base costs
	CostEq      = 5
	CostNeq     = 5
	CostOrdered = 7

	// Context lookup cost per comparison (one map hash)
	CostLookup = 32

	// Value kind multipliers
	MultiplierNumber   = 1
	MultiplierEnum     = 2
	MultiplierStr      = 4
	MultiplierMetadata = 6

	// AutoValuedThreshold is the program cost above which auto selects valued.
	AutoValuedThreshold = 4096
)

// ProgramCost sums ComparisonCost over every comparison of the program.
func ProgramCost[O any](program *types.Program[O]) int {
	if program == nil {
		return 0
	}
	total := 0
	for i := range program.Rules {
		for j := range program.Rules[i].Statements {
			total += statementCost(&program.Rules[i].Statements[j])
		}
	}
	return total
}

func statementCost(stmt *types.IfStatement) int {
	total := 0
	for i := range stmt.Condition {
		total += ComparisonCost(&stmt.Condition[i])
	}
	for i := range stmt.Nested {
		total += statementCost(&stmt.Nested[i])
	}
	return total
}

// ComparisonCost computes the cost of one leaf.
func ComparisonCost(cmp *types.Comparison) int {
	width := 1
	if cmp.Value.Kind.IsArray() && cmp.Value.Len() > 0 {
		width = cmp.Value.Len()
	}
	return CostLookup + operatorCost(cmp.Comparison)*kindMultiplier(cmp.Value.Kind)*width
}

func operatorCost(op types.ComparisonType) int {
	switch op {
	case types.Equal:
		return CostEq
	case types.NotEqual:
		return CostNeq
	default:
		return CostOrdered
	}
}

func kindMultiplier(kind types.ValueKind) int {
	switch kind {
	case types.KindNumber, types.KindNumberArray, types.KindNumberComparisonArray:
		return MultiplierNumber
	case types.KindEnumVariant, types.KindEnumVariantArray:
		return MultiplierEnum
	case types.KindStrValue:
		return MultiplierStr
	case types.KindMetadataVariant:
		return MultiplierMetadata
	default:
		return MultiplierStr
	}
}
