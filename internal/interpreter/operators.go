// internal/interpreter/operators.go
package interpreter

import (
	"slices"

	"github.com/solatis/routekeeper/internal/types"
)

/*
 * Comparison operators.
 *
 * Compares an observed context value against the value a comparison asserts.
 * Both interpreters call compare so their decisions, and their errors, match
 * exactly.
 *
 * Supported pairings (observed <op> asserted):
 *   - enum   =/!=  enum            exact variant match
 *   - enum   =/!=  enum array      = any element / != every element
 *   - number all   number          all six operators
 *   - number =/!=  number array    = any element / != every element
 *   - number =     comparison arr  every bound holds
 *   - str    =/!=  str             exact match
 *   - metadata =/!= metadata       same key present and value (in)equal
 *
 * Any other pairing is InvalidComparison: it means the program and the domain
 * disagree about a key's type, which no request can fix.
 */

// compare evaluates one leaf against an observed value.
func compare(observed types.ValueType, cmp *types.Comparison, enumSet map[string]struct{}) (bool, error) {
	asserted := cmp.Value
	op := cmp.Comparison

	switch observed.Kind {
	case types.KindEnumVariant:
		switch asserted.Kind {
		case types.KindEnumVariant:
			return equality(op, observed.Enum == asserted.Enum, cmp, observed.Kind)
		case types.KindEnumVariantArray:
			var found bool
			if enumSet != nil {
				_, found = enumSet[observed.Enum]
			} else {
				found = slices.Contains(asserted.Enums, observed.Enum)
			}
			return equality(op, found, cmp, observed.Kind)
		}

	case types.KindNumber:
		switch asserted.Kind {
		case types.KindNumber:
			return compareNumber(op, observed.Number, asserted.Number, cmp)
		case types.KindNumberArray:
			return equality(op, slices.Contains(asserted.Numbers, observed.Number), cmp, observed.Kind)
		case types.KindNumberComparisonArray:
			if op != types.Equal {
				return false, invalidComparison(cmp, observed.Kind)
			}
			for _, nc := range asserted.NumberComparisons {
				ok, err := compareNumber(nc.Type, observed.Number, nc.Number, cmp)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		}

	case types.KindStrValue:
		if asserted.Kind == types.KindStrValue {
			return equality(op, observed.Str == asserted.Str, cmp, observed.Kind)
		}
	}

	return false, invalidComparison(cmp, observed.Kind)
}

// compareMetadata evaluates a metadata leaf against the request metadata value.
func compareMetadata(observed string, cmp *types.Comparison) (bool, error) {
	return equality(cmp.Comparison, observed == cmp.Value.Metadata.Value, cmp, types.KindMetadataVariant)
}

// equality applies = or != to a match result. Ordering operators are invalid
// for non-numeric values.
func equality(op types.ComparisonType, matched bool, cmp *types.Comparison, observed types.ValueKind) (bool, error) {
	switch op {
	case types.Equal:
		return matched, nil
	case types.NotEqual:
		return !matched, nil
	default:
		return false, invalidComparison(cmp, observed)
	}
}

// compareNumber applies any of the six operators to two numbers.
func compareNumber(op types.ComparisonType, a, b int64, cmp *types.Comparison) (bool, error) {
	switch op {
	case types.Equal:
		return a == b, nil
	case types.NotEqual:
		return a != b, nil
	case types.LessThan:
		return a < b, nil
	case types.LessThanEqual:
		return a <= b, nil
	case types.GreaterThan:
		return a > b, nil
	case types.GreaterThanEqual:
		return a >= b, nil
	default:
		return false, invalidComparison(cmp, types.KindNumber)
	}
}
