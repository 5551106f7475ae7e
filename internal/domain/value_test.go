package domain

import (
	"errors"
	"testing"

	"github.com/solatis/routekeeper/internal/types"
)

func TestNumValue_Fits(t *testing.T) {
	tests := []struct {
		name     string
		asserted NumValue
		observed NumValue
		want     bool
	}{
		{"exact match", NumValue{Number: 40}, NumValue{Number: 40}, true},
		{"exact mismatch", NumValue{Number: 40}, NumValue{Number: 41}, false},
		{"greater than holds", NumValue{Number: 100, Refinement: RefineGreaterThan}, NumValue{Number: 101}, true},
		{"greater than boundary", NumValue{Number: 100, Refinement: RefineGreaterThan}, NumValue{Number: 100}, false},
		{"greater than equal boundary", NumValue{Number: 100, Refinement: RefineGreaterThanEqual}, NumValue{Number: 100}, true},
		{"less than holds", NumValue{Number: 100, Refinement: RefineLessThan}, NumValue{Number: 99}, true},
		{"less than equal fails", NumValue{Number: 100, Refinement: RefineLessThanEqual}, NumValue{Number: 101}, false},
		{"not equal holds", NumValue{Number: 5, Refinement: RefineNotEqual}, NumValue{Number: 6}, true},
		{"refined observed identical", NumValue{Number: 5, Refinement: RefineLessThan}, NumValue{Number: 5, Refinement: RefineLessThan}, true},
		{"refined observed different", NumValue{Number: 5, Refinement: RefineLessThan}, NumValue{Number: 4, Refinement: RefineLessThan}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.asserted.Fits(tt.observed); got != tt.want {
				t.Errorf("Fits() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirValue_Equal(t *testing.T) {
	card := EnumDir(KeyPaymentMethod, "card")

	eq, err := card.Equal(EnumDir(KeyPaymentMethod, "card"))
	if err != nil || !eq {
		t.Errorf("Equal() = %v, %v; want true, nil", eq, err)
	}

	eq, err = card.Equal(EnumDir(KeyPaymentMethod, "wallet"))
	if err != nil || eq {
		t.Errorf("Equal() = %v, %v; want false, nil", eq, err)
	}

	_, err = card.Equal(NumberDir(KeyAmount, NumValue{Number: 1}))
	if !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Equal() across kinds error = %v, want ErrKindMismatch", err)
	}
}

func TestDomain_Values(t *testing.T) {
	d := DefaultDomain()

	tests := []struct {
		name    string
		cmp     types.Comparison
		want    []DirValue
		wantErr error
	}{
		{
			name: "enum",
			cmp:  types.Comparison{LHS: KeyPaymentMethod, Comparison: types.Equal, Value: types.EnumVariant("card")},
			want: []DirValue{EnumDir(KeyPaymentMethod, "card")},
		},
		{
			name: "enum array",
			cmp:  types.Comparison{LHS: KeyPaymentMethod, Comparison: types.Equal, Value: types.EnumVariantArray("card", "wallet")},
			want: []DirValue{EnumDir(KeyPaymentMethod, "card"), EnumDir(KeyPaymentMethod, "wallet")},
		},
		{
			name: "number bound",
			cmp:  types.Comparison{LHS: KeyAmount, Comparison: types.GreaterThan, Value: types.Number(100)},
			want: []DirValue{NumberDir(KeyAmount, NumValue{Number: 100, Refinement: RefineGreaterThan})},
		},
		{
			name: "number comparison array",
			cmp: types.Comparison{LHS: KeyAmount, Comparison: types.Equal, Value: types.NumberComparisonArray(
				types.NumberComparison{Type: types.GreaterThanEqual, Number: 10},
				types.NumberComparison{Type: types.LessThan, Number: 20},
			)},
			want: []DirValue{
				NumberDir(KeyAmount, NumValue{Number: 10, Refinement: RefineGreaterThanEqual}),
				NumberDir(KeyAmount, NumValue{Number: 20, Refinement: RefineLessThan}),
			},
		},
		{
			name:    "unknown key",
			cmp:     types.Comparison{LHS: "legacy_flag", Comparison: types.Equal, Value: types.EnumVariant("on")},
			wantErr: ErrUnknownKey,
		},
		{
			name:    "kind mismatch",
			cmp:     types.Comparison{LHS: KeyAmount, Comparison: types.Equal, Value: types.EnumVariant("card")},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "undeclared variant",
			cmp:     types.Comparison{LHS: KeyPaymentMethod, Comparison: types.Equal, Value: types.EnumVariant("cheque")},
			wantErr: ErrUnknownVariant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Values(tt.cmp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Values() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Values() error = %v, want nil", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len(Values()) = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Values()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
