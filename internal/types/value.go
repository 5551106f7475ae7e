// internal/types/value.go
package types

import (
	"encoding/json"
	"fmt"
)

/*
 * Typed comparison values of the routing language.
 *
 * ValueType is a tagged union. On the wire it is {"type": <kind>, "value": <payload>}
 * so authoring tools and stored programs share one representation:
 *
 *   {"type": "number", "value": 4000}
 *   {"type": "enum_variant", "value": "card"}
 *   {"type": "metadata_variant", "value": {"key": "tier", "value": "gold"}}
 *   {"type": "str_value", "value": "424242"}
 *   {"type": "number_array", "value": [100, 200]}
 *   {"type": "enum_variant_array", "value": ["card", "wallet"]}
 *   {"type": "number_comparison_array", "value": [{"type": "greater_than", "number": 10}]}
 *
 * Only the field matching Kind is meaningful; the rest stay zero.
 */

// ValueKind tags the active member of a ValueType.
type ValueKind string

const (
	KindNumber                ValueKind = "number"
	KindEnumVariant           ValueKind = "enum_variant"
	KindMetadataVariant       ValueKind = "metadata_variant"
	KindStrValue              ValueKind = "str_value"
	KindNumberArray           ValueKind = "number_array"
	KindEnumVariantArray      ValueKind = "enum_variant_array"
	KindNumberComparisonArray ValueKind = "number_comparison_array"
)

// IsArray reports whether the kind carries multiple values.
func (k ValueKind) IsArray() bool {
	switch k {
	case KindNumberArray, KindEnumVariantArray, KindNumberComparisonArray:
		return true
	default:
		return false
	}
}

// ComparisonType is the operator of a comparison.
type ComparisonType string

const (
	Equal            ComparisonType = "equal"
	NotEqual         ComparisonType = "not_equal"
	LessThan         ComparisonType = "less_than"
	LessThanEqual    ComparisonType = "less_than_equal"
	GreaterThan      ComparisonType = "greater_than"
	GreaterThanEqual ComparisonType = "greater_than_equal"
)

// Valid reports whether c is a known operator.
func (c ComparisonType) Valid() bool {
	switch c {
	case Equal, NotEqual, LessThan, LessThanEqual, GreaterThan, GreaterThanEqual:
		return true
	default:
		return false
	}
}

// MetadataValue is a key/value pair matched against request metadata.
type MetadataValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NumberComparison is one bound inside a number_comparison_array.
type NumberComparison struct {
	Type   ComparisonType `json:"type"`
	Number int64          `json:"number"`
}

// ValueType is a typed value either asserted by a program or observed in a request.
type ValueType struct {
	Kind              ValueKind
	Number            int64
	Enum              string
	Metadata          MetadataValue
	Str               string
	Numbers           []int64
	Enums             []string
	NumberComparisons []NumberComparison
}

// Number returns a number value (amounts are minor units).
func Number(n int64) ValueType { return ValueType{Kind: KindNumber, Number: n} }

// EnumVariant returns a named variant value.
func EnumVariant(s string) ValueType { return ValueType{Kind: KindEnumVariant, Enum: s} }

// MetadataVariant returns a metadata key/value value.
func MetadataVariant(key, value string) ValueType {
	return ValueType{Kind: KindMetadataVariant, Metadata: MetadataValue{Key: key, Value: value}}
}

// StrValue returns a free-form string value.
func StrValue(s string) ValueType { return ValueType{Kind: KindStrValue, Str: s} }

// NumberArray returns a number set value.
func NumberArray(ns ...int64) ValueType { return ValueType{Kind: KindNumberArray, Numbers: ns} }

// EnumVariantArray returns a variant set value.
func EnumVariantArray(vs ...string) ValueType {
	return ValueType{Kind: KindEnumVariantArray, Enums: vs}
}

// NumberComparisonArray returns a conjunction of number bounds.
func NumberComparisonArray(cs ...NumberComparison) ValueType {
	return ValueType{Kind: KindNumberComparisonArray, NumberComparisons: cs}
}

// Len returns the number of elements of an array value, or 1 for scalars.
func (v ValueType) Len() int {
	switch v.Kind {
	case KindNumberArray:
		return len(v.Numbers)
	case KindEnumVariantArray:
		return len(v.Enums)
	case KindNumberComparisonArray:
		return len(v.NumberComparisons)
	default:
		return 1
	}
}

// String renders the value for logs and error metadata.
func (v ValueType) String() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%d", v.Number)
	case KindEnumVariant:
		return v.Enum
	case KindMetadataVariant:
		return v.Metadata.Key + "=" + v.Metadata.Value
	case KindStrValue:
		return fmt.Sprintf("%q", v.Str)
	case KindNumberArray:
		return fmt.Sprintf("%v", v.Numbers)
	case KindEnumVariantArray:
		return fmt.Sprintf("%v", v.Enums)
	case KindNumberComparisonArray:
		return fmt.Sprintf("%v", v.NumberComparisons)
	default:
		return "<invalid>"
	}
}

type valueWire struct {
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (v ValueType) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case KindNumber:
		payload = v.Number
	case KindEnumVariant:
		payload = v.Enum
	case KindMetadataVariant:
		payload = v.Metadata
	case KindStrValue:
		payload = v.Str
	case KindNumberArray:
		payload = nonNil(v.Numbers)
	case KindEnumVariantArray:
		payload = nonNil(v.Enums)
	case KindNumberComparisonArray:
		payload = nonNil(v.NumberComparisons)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownValueType, v.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueWire{Type: v.Kind, Value: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *ValueType) UnmarshalJSON(data []byte) error {
	var w valueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := ValueType{Kind: w.Type}
	var err error
	switch w.Type {
	case KindNumber:
		err = json.Unmarshal(w.Value, &out.Number)
	case KindEnumVariant:
		err = json.Unmarshal(w.Value, &out.Enum)
	case KindMetadataVariant:
		err = json.Unmarshal(w.Value, &out.Metadata)
	case KindStrValue:
		err = json.Unmarshal(w.Value, &out.Str)
	case KindNumberArray:
		err = json.Unmarshal(w.Value, &out.Numbers)
	case KindEnumVariantArray:
		err = json.Unmarshal(w.Value, &out.Enums)
	case KindNumberComparisonArray:
		err = json.Unmarshal(w.Value, &out.NumberComparisons)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownValueType, w.Type)
	}
	if err != nil {
		return fmt.Errorf("decode %s value: %w", w.Type, err)
	}
	*v = out
	return nil
}

// nonNil keeps empty arrays encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
