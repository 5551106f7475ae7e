// Package domain defines the attribute vocabulary routing programs are written
// against: the closed set of directional keys, the value kinds each key
// accepts, and the projection of a payment request into an evaluation Context.
//
// A Domain is assembled once at startup (default payment keys plus any keys
// declared in configuration), frozen, and then shared read-only by every
// interpreter and analyzer for the life of the process.
package domain

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/solatis/routekeeper/internal/types"
)

// Domain errors.
var (
	// ErrConflictingKeyKind indicates a key registered twice with different data types.
	ErrConflictingKeyKind = errors.New("key already registered with a different data type")

	// ErrDomainFrozen indicates a registration after the domain was frozen.
	ErrDomainFrozen = errors.New("domain is frozen")

	// ErrUnknownKey indicates a key identifier that is not part of the domain.
	ErrUnknownKey = errors.New("unknown domain key")

	// ErrKindMismatch indicates a value kind the key (or the other value) cannot be compared with.
	ErrKindMismatch = errors.New("value kind mismatch")

	// ErrUnknownVariant indicates an enum variant the key does not declare.
	ErrUnknownVariant = errors.New("unknown enum variant")
)

// DataType is the shape of values a key takes.
type DataType string

const (
	EnumValue     DataType = "enum_value"
	NumberValue   DataType = "number"
	MetadataValue DataType = "metadata_value"
	StrValue      DataType = "str_value"
)

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	switch t {
	case EnumValue, NumberValue, MetadataValue, StrValue:
		return true
	default:
		return false
	}
}

// DirKey is one decision dimension. Identity is the Name.
type DirKey struct {
	Name     string
	Type     DataType
	Variants []string // declared enum variants; empty means open-ended
}

// Kinds returns the value kinds a comparison on this key may use.
func (k DirKey) Kinds() []types.ValueKind {
	switch k.Type {
	case EnumValue:
		return []types.ValueKind{types.KindEnumVariant, types.KindEnumVariantArray}
	case NumberValue:
		return []types.ValueKind{types.KindNumber, types.KindNumberArray, types.KindNumberComparisonArray}
	case MetadataValue:
		return []types.ValueKind{types.KindMetadataVariant}
	case StrValue:
		return []types.ValueKind{types.KindStrValue}
	default:
		return nil
	}
}

// Accepts reports whether values of kind can be compared against this key.
func (k DirKey) Accepts(kind types.ValueKind) bool {
	return slices.Contains(k.Kinds(), kind)
}

// HasVariant reports whether v is a declared variant. Open-ended keys accept anything.
func (k DirKey) HasVariant(v string) bool {
	if len(k.Variants) == 0 {
		return true
	}
	return slices.Contains(k.Variants, v)
}

// Domain is the registry of keys.
type Domain struct {
	mu     sync.RWMutex
	keys   map[string]DirKey
	frozen bool
}

// New returns an empty, unfrozen domain.
func New() *Domain {
	return &Domain{keys: make(map[string]DirKey)}
}

// Register adds a key. Re-registering a key with the same data type merges
// declared variants; a different data type is a configuration error.
func (d *Domain) Register(key DirKey) error {
	if key.Name == "" {
		return fmt.Errorf("%w: empty key name", ErrUnknownKey)
	}
	if !key.Type.Valid() {
		return fmt.Errorf("key %s: unknown data type %q", key.Name, key.Type)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frozen {
		return ErrDomainFrozen
	}

	existing, ok := d.keys[key.Name]
	if !ok {
		key.Variants = slices.Clone(key.Variants)
		d.keys[key.Name] = key
		return nil
	}
	if existing.Type != key.Type {
		return fmt.Errorf("%w: %s is %s, not %s", ErrConflictingKeyKind, key.Name, existing.Type, key.Type)
	}
	for _, v := range key.Variants {
		if !slices.Contains(existing.Variants, v) {
			existing.Variants = append(existing.Variants, v)
		}
	}
	d.keys[key.Name] = existing
	return nil
}

// MustRegister is Register for package-level setup; panics on error.
func (d *Domain) MustRegister(keys ...DirKey) *Domain {
	for _, k := range keys {
		if err := d.Register(k); err != nil {
			panic(err)
		}
	}
	return d
}

// Freeze makes the domain read-only.
func (d *Domain) Freeze() *Domain {
	d.mu.Lock()
	d.frozen = true
	d.mu.Unlock()
	return d
}

// Key returns the canonical key for name.
func (d *Domain) Key(name string) (DirKey, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	k, ok := d.keys[name]
	return k, ok
}

// Names returns all key names, sorted.
func (d *Domain) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.keys))
	for n := range d.keys {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Payment attribute keys of the default domain.
const (
	KeyPaymentMethod         = "payment_method"
	KeyPaymentMethodType     = "payment_method_type"
	KeyCardNetwork           = "card_network"
	KeyCardBin               = "card_bin"
	KeyAmount                = "amount"
	KeyCurrency              = "currency"
	KeyAuthenticationType    = "authentication_type"
	KeyCaptureMethod         = "capture_method"
	KeyBusinessCountry       = "business_country"
	KeyBillingCountry        = "billing_country"
	KeyBusinessLabel         = "business_label"
	KeySetupFutureUsage      = "setup_future_usage"
	KeyMandateAcceptanceType = "mandate_acceptance_type"
	KeyMandateType           = "mandate_type"
	KeyPaymentType           = "payment_type"
	KeyMetadata              = "metadata"
)

// DefaultDomain returns an unfrozen domain with the payment vocabulary.
// Country and currency keys are open-ended; callers may narrow them by
// registering variants before freezing.
func DefaultDomain() *Domain {
	return New().MustRegister(
		DirKey{Name: KeyPaymentMethod, Type: EnumValue, Variants: []string{
			"card", "card_redirect", "pay_later", "wallet", "bank_redirect",
			"bank_transfer", "crypto", "bank_debit", "reward", "upi", "voucher", "gift_card",
		}},
		DirKey{Name: KeyPaymentMethodType, Type: EnumValue},
		DirKey{Name: KeyCardNetwork, Type: EnumValue, Variants: []string{
			"Visa", "Mastercard", "AmericanExpress", "JCB", "DinersClub",
			"Discover", "CartesBancaires", "UnionPay", "Interac", "RuPay", "Maestro",
		}},
		DirKey{Name: KeyCardBin, Type: StrValue},
		DirKey{Name: KeyAmount, Type: NumberValue},
		DirKey{Name: KeyCurrency, Type: EnumValue},
		DirKey{Name: KeyAuthenticationType, Type: EnumValue, Variants: []string{"three_ds", "no_three_ds"}},
		DirKey{Name: KeyCaptureMethod, Type: EnumValue, Variants: []string{
			"automatic", "manual", "manual_multiple", "scheduled",
		}},
		DirKey{Name: KeyBusinessCountry, Type: EnumValue},
		DirKey{Name: KeyBillingCountry, Type: EnumValue},
		DirKey{Name: KeyBusinessLabel, Type: StrValue},
		DirKey{Name: KeySetupFutureUsage, Type: EnumValue, Variants: []string{"off_session", "on_session"}},
		DirKey{Name: KeyMandateAcceptanceType, Type: EnumValue, Variants: []string{"online", "offline"}},
		DirKey{Name: KeyMandateType, Type: EnumValue, Variants: []string{"single_use", "multi_use"}},
		DirKey{Name: KeyPaymentType, Type: EnumValue, Variants: []string{
			"normal", "new_mandate", "setup_mandate", "recurring_mandate", "non_mandate",
		}},
		DirKey{Name: KeyMetadata, Type: MetadataValue},
	)
}
