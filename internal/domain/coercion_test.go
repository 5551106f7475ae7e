package domain

import (
	"errors"
	"testing"

	"github.com/solatis/routekeeper/internal/types"
)

func TestCoerce(t *testing.T) {
	d := DefaultDomain().Freeze()

	tests := []struct {
		name    string
		key     string
		raw     string
		want    types.ValueType
		wantErr error
	}{
		{name: "number", key: KeyAmount, raw: "4000", want: types.Number(4000)},
		{name: "number with whitespace", key: KeyAmount, raw: "  42  ", want: types.Number(42)},
		{name: "negative number", key: KeyAmount, raw: "-7", want: types.Number(-7)},
		{name: "number rejects decimals", key: KeyAmount, raw: "12.5", wantErr: types.ErrCoercionFailed},
		{name: "number rejects whitespace only", key: KeyAmount, raw: "   ", wantErr: types.ErrCoercionFailed},
		{name: "number rejects text", key: KeyAmount, raw: "abc", wantErr: types.ErrCoercionFailed},
		{name: "declared variant", key: KeyPaymentMethod, raw: "card", want: types.EnumVariant("card")},
		{name: "undeclared variant", key: KeyPaymentMethod, raw: "cheque", wantErr: ErrUnknownVariant},
		{name: "open enum", key: KeyCurrency, raw: "EUR", want: types.EnumVariant("EUR")},
		{name: "empty enum", key: KeyCurrency, raw: "", wantErr: types.ErrCoercionFailed},
		{name: "string verbatim", key: KeyCardBin, raw: " 4242 ", want: types.StrValue(" 4242 ")},
		{name: "empty string", key: KeyCardBin, raw: "", want: types.StrValue("")},
		{name: "whitespace only enum", key: KeyCurrency, raw: "  ", wantErr: types.ErrCoercionFailed},
		{name: "metadata blank key", key: KeyMetadata, raw: " =gold", wantErr: types.ErrCoercionFailed},
		{name: "metadata pair", key: KeyMetadata, raw: "tier=gold", want: types.MetadataVariant("tier", "gold")},
		{name: "metadata without separator", key: KeyMetadata, raw: "tier", wantErr: types.ErrCoercionFailed},
		{name: "unknown key", key: "legacy_flag", raw: "on", wantErr: ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Coerce(tt.key, tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Coerce() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() error = %v, want nil", err)
			}
			if got.Kind != tt.want.Kind || got.String() != tt.want.String() {
				t.Errorf("Coerce() = %v (%s), want %v (%s)", got, got.Kind, tt.want, tt.want.Kind)
			}
		})
	}
}
