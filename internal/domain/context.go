// internal/domain/context.go
package domain

import (
	"fmt"
	"sort"

	"github.com/solatis/routekeeper/internal/types"
)

/*
 * Evaluation context and request projection.
 *
 * A Context maps every key of the domain to an optional observed value. A key
 * that is known but has no value means "unknown / not applicable" and never
 * satisfies a positive comparison. A key outside the domain is not in the
 * context at all; the interpreter reports it as InvalidKey.
 *
 * Metadata comparisons read the request metadata map directly: a rule on
 * metadata {tier: gold} looks up Metadata["tier"].
 *
 * Contexts are immutable once built and are discarded at the end of a request.
 */

type slot struct {
	value    types.ValueType
	present  bool
	metadata bool
}

// Context is the per-request snapshot of attribute values.
type Context struct {
	values   map[string]slot
	metadata types.Metadata
}

// Lookup returns the observed value of key. known is false when the key is not
// part of the domain; present is false when the key is known but unset.
func (c Context) Lookup(key string) (v types.ValueType, present, known bool) {
	s, known := c.values[key]
	if !known {
		return types.ValueType{}, false, false
	}
	return s.value, s.present, true
}

// IsMetadataKey reports whether key is a known metadata-typed key.
func (c Context) IsMetadataKey(key string) bool {
	return c.values[key].metadata
}

// Metadata returns the request metadata value for key.
func (c Context) Metadata(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// Keys returns the known keys of the context, sorted.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContextBuilder assembles a Context against a domain.
type ContextBuilder struct {
	domain   *Domain
	values   map[string]slot
	metadata types.Metadata
}

// NewContext starts a context in which every domain key is known and unset.
func (d *Domain) NewContext() *ContextBuilder {
	d.mu.RLock()
	values := make(map[string]slot, len(d.keys))
	for name, k := range d.keys {
		values[name] = slot{metadata: k.Type == MetadataValue}
	}
	d.mu.RUnlock()
	return &ContextBuilder{domain: d, values: values}
}

// Set records an observed value. The key must exist and accept the value kind.
func (b *ContextBuilder) Set(key string, v types.ValueType) error {
	k, ok := b.domain.Key(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !k.Accepts(v.Kind) || v.Kind.IsArray() {
		return fmt.Errorf("%w: %s (%s) cannot hold %s", ErrKindMismatch, key, k.Type, v.Kind)
	}
	if k.Type == MetadataValue {
		b.SetMetadata(v.Metadata.Key, v.Metadata.Value)
		return nil
	}
	b.values[key] = slot{value: v, present: true}
	return nil
}

// MustSet is Set for tests and fixtures; panics on error.
func (b *ContextBuilder) MustSet(key string, v types.ValueType) *ContextBuilder {
	if err := b.Set(key, v); err != nil {
		panic(err)
	}
	return b
}

// SetMetadata records one request metadata pair.
func (b *ContextBuilder) SetMetadata(key, value string) *ContextBuilder {
	if b.metadata == nil {
		b.metadata = make(types.Metadata)
	}
	b.metadata[key] = value
	return b
}

// Build freezes the builder into a Context. The builder must not be reused.
func (b *ContextBuilder) Build() Context {
	ctx := Context{values: b.values, metadata: b.metadata}
	b.values = nil
	b.metadata = nil
	return ctx
}

// Input is the flat set of optional payment attributes a Context is projected from.
type Input struct {
	Metadata      types.Metadata     `json:"metadata,omitempty"`
	Payment       PaymentInput       `json:"payment"`
	PaymentMethod PaymentMethodInput `json:"payment_method"`
	Mandate       MandateInput       `json:"mandate"`
}

// PaymentInput holds payment level attributes.
type PaymentInput struct {
	Amount             *int64  `json:"amount,omitempty"`
	Currency           *string `json:"currency,omitempty"`
	AuthenticationType *string `json:"authentication_type,omitempty"`
	CardBin            *string `json:"card_bin,omitempty"`
	CaptureMethod      *string `json:"capture_method,omitempty"`
	BusinessCountry    *string `json:"business_country,omitempty"`
	BillingCountry     *string `json:"billing_country,omitempty"`
	BusinessLabel      *string `json:"business_label,omitempty"`
	SetupFutureUsage   *string `json:"setup_future_usage,omitempty"`
}

// PaymentMethodInput holds payment method attributes.
type PaymentMethodInput struct {
	PaymentMethod     *string `json:"payment_method,omitempty"`
	PaymentMethodType *string `json:"payment_method_type,omitempty"`
	CardNetwork       *string `json:"card_network,omitempty"`
}

// MandateInput holds mandate related attributes.
type MandateInput struct {
	MandateAcceptanceType *string `json:"mandate_acceptance_type,omitempty"`
	MandateType           *string `json:"mandate_type,omitempty"`
	PaymentType           *string `json:"payment_type,omitempty"`
}

// Project builds the Context for a request. Attributes whose key is not in the
// domain are ignored. Only metadata limit violations are errors.
func (d *Domain) Project(in Input) (Context, error) {
	if err := in.Metadata.Validate(); err != nil {
		return Context{}, err
	}

	b := d.NewContext()
	if in.Payment.Amount != nil {
		b.project(KeyAmount, types.Number(*in.Payment.Amount))
	}

	strs := []struct {
		key string
		val *string
	}{
		{KeyCurrency, in.Payment.Currency},
		{KeyAuthenticationType, in.Payment.AuthenticationType},
		{KeyCardBin, in.Payment.CardBin},
		{KeyCaptureMethod, in.Payment.CaptureMethod},
		{KeyBusinessCountry, in.Payment.BusinessCountry},
		{KeyBillingCountry, in.Payment.BillingCountry},
		{KeyBusinessLabel, in.Payment.BusinessLabel},
		{KeySetupFutureUsage, in.Payment.SetupFutureUsage},
		{KeyPaymentMethod, in.PaymentMethod.PaymentMethod},
		{KeyPaymentMethodType, in.PaymentMethod.PaymentMethodType},
		{KeyCardNetwork, in.PaymentMethod.CardNetwork},
		{KeyMandateAcceptanceType, in.Mandate.MandateAcceptanceType},
		{KeyMandateType, in.Mandate.MandateType},
		{KeyPaymentType, in.Mandate.PaymentType},
	}
	for _, s := range strs {
		if s.val == nil {
			continue
		}
		k, ok := d.Key(s.key)
		if !ok {
			continue
		}
		switch k.Type {
		case StrValue:
			b.project(s.key, types.StrValue(*s.val))
		case EnumValue:
			b.project(s.key, types.EnumVariant(*s.val))
		default:
			// Keys redeclared with another type go through coercion.
			if v, err := d.Coerce(s.key, *s.val); err == nil {
				b.project(s.key, v)
			}
		}
	}

	for k, v := range in.Metadata {
		b.SetMetadata(k, v)
	}
	return b.Build(), nil
}

// project sets a value, silently skipping keys outside the domain.
func (b *ContextBuilder) project(key string, v types.ValueType) {
	_ = b.Set(key, v)
}
