package interpreter

import (
	"errors"
	"testing"

	"github.com/solatis/routekeeper/internal/types"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		observed types.ValueType
		op       types.ComparisonType
		asserted types.ValueType
		want     bool
		wantErr  error
	}{
		// enum
		{name: "enum equal", observed: types.EnumVariant("card"), op: types.Equal, asserted: types.EnumVariant("card"), want: true},
		{name: "enum equal differs", observed: types.EnumVariant("card"), op: types.Equal, asserted: types.EnumVariant("wallet"), want: false},
		{name: "enum not equal", observed: types.EnumVariant("card"), op: types.NotEqual, asserted: types.EnumVariant("wallet"), want: true},
		{name: "enum ordering invalid", observed: types.EnumVariant("card"), op: types.LessThan, asserted: types.EnumVariant("wallet"), wantErr: ErrInvalidComparison},
		{name: "enum in array", observed: types.EnumVariant("card"), op: types.Equal, asserted: types.EnumVariantArray("wallet", "card"), want: true},
		{name: "enum not in array", observed: types.EnumVariant("upi"), op: types.Equal, asserted: types.EnumVariantArray("wallet", "card"), want: false},
		{name: "enum differs from every element", observed: types.EnumVariant("upi"), op: types.NotEqual, asserted: types.EnumVariantArray("wallet", "card"), want: true},
		{name: "enum equals one element", observed: types.EnumVariant("card"), op: types.NotEqual, asserted: types.EnumVariantArray("wallet", "card"), want: false},
		{name: "enum vs number", observed: types.EnumVariant("card"), op: types.Equal, asserted: types.Number(1), wantErr: ErrInvalidComparison},

		// number
		{name: "number equal", observed: types.Number(40), op: types.Equal, asserted: types.Number(40), want: true},
		{name: "number not equal", observed: types.Number(40), op: types.NotEqual, asserted: types.Number(40), want: false},
		{name: "number less than", observed: types.Number(39), op: types.LessThan, asserted: types.Number(40), want: true},
		{name: "number less than equal", observed: types.Number(40), op: types.LessThanEqual, asserted: types.Number(40), want: true},
		{name: "number greater than", observed: types.Number(40), op: types.GreaterThan, asserted: types.Number(40), want: false},
		{name: "number greater than equal", observed: types.Number(40), op: types.GreaterThanEqual, asserted: types.Number(40), want: true},
		{name: "number in array", observed: types.Number(200), op: types.Equal, asserted: types.NumberArray(100, 200), want: true},
		{name: "number not in array", observed: types.Number(300), op: types.NotEqual, asserted: types.NumberArray(100, 200), want: true},
		{name: "number array ordering invalid", observed: types.Number(300), op: types.GreaterThan, asserted: types.NumberArray(100), wantErr: ErrInvalidComparison},
		{
			name:     "number within bounds",
			observed: types.Number(500),
			op:       types.Equal,
			asserted: types.NumberComparisonArray(
				types.NumberComparison{Type: types.GreaterThanEqual, Number: 100},
				types.NumberComparison{Type: types.LessThan, Number: 1000},
			),
			want: true,
		},
		{
			name:     "number outside bounds",
			observed: types.Number(1000),
			op:       types.Equal,
			asserted: types.NumberComparisonArray(
				types.NumberComparison{Type: types.GreaterThanEqual, Number: 100},
				types.NumberComparison{Type: types.LessThan, Number: 1000},
			),
			want: false,
		},
		{
			name:     "bounds with not equal invalid",
			observed: types.Number(1),
			op:       types.NotEqual,
			asserted: types.NumberComparisonArray(types.NumberComparison{Type: types.LessThan, Number: 10}),
			wantErr:  ErrInvalidComparison,
		},
		{name: "number vs str", observed: types.Number(1), op: types.Equal, asserted: types.StrValue("1"), wantErr: ErrInvalidComparison},

		// str
		{name: "str equal", observed: types.StrValue("424242"), op: types.Equal, asserted: types.StrValue("424242"), want: true},
		{name: "str not equal", observed: types.StrValue("424242"), op: types.NotEqual, asserted: types.StrValue("411111"), want: true},
		{name: "str ordering invalid", observed: types.StrValue("a"), op: types.GreaterThan, asserted: types.StrValue("b"), wantErr: ErrInvalidComparison},
		{name: "str vs enum", observed: types.StrValue("card"), op: types.Equal, asserted: types.EnumVariant("card"), wantErr: ErrInvalidComparison},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &types.Comparison{LHS: "k", Comparison: tt.op, Value: tt.asserted}
			got, err := compare(tt.observed, c, buildEnumSet(tt.asserted))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("compare() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("compare() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompare_EnumSetMatchesScan(t *testing.T) {
	variants := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	asserted := types.EnumVariantArray(variants...)
	set := buildEnumSet(asserted)
	if set == nil {
		t.Fatalf("buildEnumSet() = nil for %d variants, want set", len(variants))
	}

	for _, op := range []types.ComparisonType{types.Equal, types.NotEqual} {
		for _, probe := range []string{"a", "j", "z"} {
			c := &types.Comparison{LHS: "k", Comparison: op, Value: asserted}
			withSet, err1 := compare(types.EnumVariant(probe), c, set)
			withScan, err2 := compare(types.EnumVariant(probe), c, nil)
			if err1 != nil || err2 != nil {
				t.Fatalf("compare() errors = %v, %v", err1, err2)
			}
			if withSet != withScan {
				t.Errorf("%s %s: set = %v, scan = %v", op, probe, withSet, withScan)
			}
		}
	}
}

func TestCompareMetadata(t *testing.T) {
	c := &types.Comparison{LHS: "metadata", Comparison: types.Equal, Value: types.MetadataVariant("tier", "gold")}
	if ok, err := compareMetadata("gold", c); err != nil || !ok {
		t.Errorf("compareMetadata(gold) = %v, %v; want true, nil", ok, err)
	}
	c.Comparison = types.NotEqual
	if ok, err := compareMetadata("silver", c); err != nil || !ok {
		t.Errorf("compareMetadata(silver, !=) = %v, %v; want true, nil", ok, err)
	}
	c.Comparison = types.LessThan
	if _, err := compareMetadata("gold", c); !errors.Is(err, ErrInvalidComparison) {
		t.Errorf("compareMetadata(<) error = %v, want ErrInvalidComparison", err)
	}
}
