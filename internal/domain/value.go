package domain

import (
	"fmt"

	"github.com/solatis/routekeeper/internal/types"
)

// Refinement narrows a number value from an exact match to a bound.
type Refinement string

const (
	RefineNone             Refinement = ""
	RefineNotEqual         Refinement = "not_equal"
	RefineGreaterThan      Refinement = "greater_than"
	RefineGreaterThanEqual Refinement = "greater_than_equal"
	RefineLessThan         Refinement = "less_than"
	RefineLessThanEqual    Refinement = "less_than_equal"
)

// RefinementOf maps a comparison operator to the refinement it asserts.
// Equal maps to RefineNone.
func RefinementOf(c types.ComparisonType) Refinement {
	switch c {
	case types.NotEqual:
		return RefineNotEqual
	case types.GreaterThan:
		return RefineGreaterThan
	case types.GreaterThanEqual:
		return RefineGreaterThanEqual
	case types.LessThan:
		return RefineLessThan
	case types.LessThanEqual:
		return RefineLessThanEqual
	default:
		return RefineNone
	}
}

// NumValue is a number, optionally refined into a bound.
type NumValue struct {
	Number     int64
	Refinement Refinement
}

// Fits reports whether an observed number satisfies n.
// An observed value that is itself refined only fits the identical assertion.
func (n NumValue) Fits(observed NumValue) bool {
	if observed.Refinement != RefineNone {
		return n == observed
	}
	o := observed.Number
	switch n.Refinement {
	case RefineNone:
		return o == n.Number
	case RefineNotEqual:
		return o != n.Number
	case RefineGreaterThan:
		return o > n.Number
	case RefineGreaterThanEqual:
		return o >= n.Number
	case RefineLessThan:
		return o < n.Number
	case RefineLessThanEqual:
		return o <= n.Number
	default:
		return false
	}
}

func (n NumValue) String() string {
	if n.Refinement == RefineNone {
		return fmt.Sprintf("%d", n.Number)
	}
	return fmt.Sprintf("%s %d", n.Refinement, n.Number)
}

// DirValue is a concrete value of one key. Only the member matching Kind is
// meaningful. DirValue is comparable and used as a map key by the constraint graph.
type DirValue struct {
	Key      string
	Kind     types.ValueKind
	Enum     string
	Number   NumValue
	Metadata types.MetadataValue
	Str      string
}

// EnumDir returns an enum DirValue.
func EnumDir(key, variant string) DirValue {
	return DirValue{Key: key, Kind: types.KindEnumVariant, Enum: variant}
}

// NumberDir returns a number DirValue.
func NumberDir(key string, n NumValue) DirValue {
	return DirValue{Key: key, Kind: types.KindNumber, Number: n}
}

// MetadataDir returns a metadata DirValue.
func MetadataDir(key string, md types.MetadataValue) DirValue {
	return DirValue{Key: key, Kind: types.KindMetadataVariant, Metadata: md}
}

// StrDir returns a string DirValue.
func StrDir(key, s string) DirValue {
	return DirValue{Key: key, Kind: types.KindStrValue, Str: s}
}

// Equal compares two values of the same kind. Values of different kinds are
// not comparable and return ErrKindMismatch.
func (v DirValue) Equal(o DirValue) (bool, error) {
	if v.Kind != o.Kind {
		return false, fmt.Errorf("%w: %s vs %s", ErrKindMismatch, v.Kind, o.Kind)
	}
	return v == o, nil
}

// Fits reports whether an observed value satisfies v. Numbers honour refinements;
// every other kind requires equality.
func (v DirValue) Fits(observed DirValue) bool {
	if v.Key != observed.Key || v.Kind != observed.Kind {
		return false
	}
	if v.Kind == types.KindNumber {
		return v.Number.Fits(observed.Number)
	}
	return v == observed
}

func (v DirValue) String() string {
	switch v.Kind {
	case types.KindEnumVariant:
		return v.Key + "=" + v.Enum
	case types.KindNumber:
		if v.Number.Refinement == RefineNone {
			return fmt.Sprintf("%s=%d", v.Key, v.Number.Number)
		}
		return fmt.Sprintf("%s %s %d", v.Key, v.Number.Refinement, v.Number.Number)
	case types.KindMetadataVariant:
		return fmt.Sprintf("%s[%s]=%s", v.Key, v.Metadata.Key, v.Metadata.Value)
	case types.KindStrValue:
		return fmt.Sprintf("%s=%q", v.Key, v.Str)
	default:
		return v.Key + "=<invalid>"
	}
}

// Values converts an AST comparison into the DirValues it asserts, checking the
// key exists, accepts the value kind and declares every enum variant used.
// Arrays expand to one DirValue per element; number bounds become refinements.
func (d *Domain) Values(cmp types.Comparison) ([]DirValue, error) {
	key, ok := d.Key(cmp.LHS)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, cmp.LHS)
	}
	if !key.Accepts(cmp.Value.Kind) {
		return nil, fmt.Errorf("%w: %s (%s) compared with %s", ErrKindMismatch, key.Name, key.Type, cmp.Value.Kind)
	}

	v := cmp.Value
	switch v.Kind {
	case types.KindEnumVariant:
		if !key.HasVariant(v.Enum) {
			return nil, fmt.Errorf("%w: %s=%s", ErrUnknownVariant, key.Name, v.Enum)
		}
		return []DirValue{EnumDir(key.Name, v.Enum)}, nil
	case types.KindEnumVariantArray:
		out := make([]DirValue, 0, len(v.Enums))
		for _, e := range v.Enums {
			if !key.HasVariant(e) {
				return nil, fmt.Errorf("%w: %s=%s", ErrUnknownVariant, key.Name, e)
			}
			out = append(out, EnumDir(key.Name, e))
		}
		return out, nil
	case types.KindNumber:
		return []DirValue{NumberDir(key.Name, NumValue{Number: v.Number, Refinement: RefinementOf(cmp.Comparison)})}, nil
	case types.KindNumberArray:
		out := make([]DirValue, 0, len(v.Numbers))
		for _, n := range v.Numbers {
			out = append(out, NumberDir(key.Name, NumValue{Number: n}))
		}
		return out, nil
	case types.KindNumberComparisonArray:
		out := make([]DirValue, 0, len(v.NumberComparisons))
		for _, nc := range v.NumberComparisons {
			out = append(out, NumberDir(key.Name, NumValue{Number: nc.Number, Refinement: RefinementOf(nc.Type)}))
		}
		return out, nil
	case types.KindMetadataVariant:
		return []DirValue{MetadataDir(key.Name, v.Metadata)}, nil
	case types.KindStrValue:
		return []DirValue{StrDir(key.Name, v.Str)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownValueType, v.Kind)
	}
}
