// Package types provides domain models shared across routekeeper components.
//
// The program AST (program.go, value.go, selection.go) depends only on
// encoding/json so it can be embedded by authoring tools without pulling in
// the interpreter or the constraint graph. ID utilities in ids.go import uuid
// but are isolated from the AST.
package types

import "unicode/utf8"

// ProgramID represents a UUIDv7 identifier of a stored program version.
type ProgramID string

// Metadata represents request metadata projected into the evaluation context.
// String-only values keep metadata comparisons exact.
type Metadata map[string]string

// Resource limits enforced at program validation and input projection.
const (
	// MaxNestingDepth bounds recursion through nested if-statements.
	MaxNestingDepth = 8

	// MaxArrayValues limits array comparison values to keep membership tests linear and small.
	MaxArrayValues = 64

	// MaxRules caps the number of rules in one program.
	MaxRules = 1024

	// MaxMetadataPairs limits metadata pairs to prevent unbounded iteration.
	MaxMetadataPairs = 64

	// MaxMetadataKeyLength prevents excessively long keys.
	MaxMetadataKeyLength = 128

	// MaxMetadataValueLength prevents unbounded value sizes.
	MaxMetadataValueLength = 1024
)

// Validate enforces the metadata limits.
func (m Metadata) Validate() error {
	if len(m) > MaxMetadataPairs {
		return ErrTooManyMetadataPairs
	}
	for k, v := range m {
		if utf8.RuneCountInString(k) > MaxMetadataKeyLength {
			return ErrMetadataKeyTooLong
		}
		if utf8.RuneCountInString(v) > MaxMetadataValueLength {
			return ErrMetadataValueTooLong
		}
	}
	return nil
}
