// internal/domain/coercion.go
package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/routekeeper/internal/types"
)

/*
 * Raw attribute coercion.
 *
 * Converts raw string attributes (CLI --set flags, gRPC Struct fields,
 * configuration) into the typed value the key's data type requires.
 *
 * Type modes:
 *   - number: strict - trimmed base-10 integer (minor units), floats rejected
 *   - enum_value: strict when the key declares variants, otherwise any non-empty string
 *   - str_value: lenient - taken verbatim
 *   - metadata_value: "key=value" form
 *
 * Whitespace-only input fails for numbers, enums and metadata keys. Strings
 * are the exception: "" is a valid str_value, so an absent attribute should be
 * left unset rather than coerced.
 */

// Coerce converts raw into the value type of key.
// Returns ErrUnknownKey for keys outside the domain and ErrCoercionFailed
// for impossible conversions.
func (d *Domain) Coerce(key, raw string) (types.ValueType, error) {
	k, ok := d.Key(key)
	if !ok {
		return types.ValueType{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	switch k.Type {
	case NumberValue:
		return coerceNumber(raw)
	case EnumValue:
		return coerceEnum(k, raw)
	case StrValue:
		return types.StrValue(raw), nil
	case MetadataValue:
		return coerceMetadata(raw)
	default:
		return types.ValueType{}, types.ErrCoercionFailed
	}
}

// coerceNumber parses an integer amount. Decimal strings are rejected because
// amounts are carried in minor units.
func coerceNumber(raw string) (types.ValueType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.ValueType{}, fmt.Errorf("%w: empty number", types.ErrCoercionFailed)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return types.ValueType{}, fmt.Errorf("%w: %q is not an integer", types.ErrCoercionFailed, raw)
	}
	return types.Number(n), nil
}

// coerceEnum validates raw against the declared variants, if any.
func coerceEnum(k DirKey, raw string) (types.ValueType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.ValueType{}, fmt.Errorf("%w: empty variant", types.ErrCoercionFailed)
	}
	if !k.HasVariant(raw) {
		return types.ValueType{}, fmt.Errorf("%w: %s=%s", ErrUnknownVariant, k.Name, raw)
	}
	return types.EnumVariant(raw), nil
}

// coerceMetadata splits "key=value".
func coerceMetadata(raw string) (types.ValueType, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return types.ValueType{}, fmt.Errorf("%w: metadata must be key=value", types.ErrCoercionFailed)
	}
	return types.MetadataVariant(key, value), nil
}
