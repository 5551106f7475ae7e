package types

import "errors"

// Sentinel errors for routekeeper operations.
var (
	// ErrMissingDefault indicates a program has no default selection.
	ErrMissingDefault = errors.New("program has no default selection")

	// ErrEmptyRule indicates a rule has no statements.
	ErrEmptyRule = errors.New("rule has no statements")

	// ErrEmptyCondition indicates an if-statement has no comparisons.
	ErrEmptyCondition = errors.New("if-statement condition is empty")

	// ErrNestingTooDeep indicates nested statements exceed MaxNestingDepth.
	ErrNestingTooDeep = errors.New("nested statements exceed maximum depth")

	// ErrTooManyValues indicates an array value exceeds MaxArrayValues.
	ErrTooManyValues = errors.New("array value has too many elements")

	// ErrTooManyRules indicates a program exceeds MaxRules.
	ErrTooManyRules = errors.New("program has too many rules")

	// ErrInvalidSplit indicates volume split percentages do not sum to 100.
	ErrInvalidSplit = errors.New("volume split percentages must sum to 100")

	// ErrEmptySelection indicates a connector selection names no connectors.
	ErrEmptySelection = errors.New("connector selection is empty")

	// ErrUnknownValueType indicates an unrecognized value type tag.
	ErrUnknownValueType = errors.New("unknown value type")

	// ErrUnknownComparison indicates an unrecognized comparison operator.
	ErrUnknownComparison = errors.New("unknown comparison type")

	// ErrCoercionFailed indicates a raw attribute could not be coerced to its key's type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrTooManyMetadataPairs indicates too many metadata key-value pairs.
	ErrTooManyMetadataPairs = errors.New("too many metadata pairs")

	// ErrMetadataKeyTooLong indicates a metadata key exceeds MaxMetadataKeyLength.
	ErrMetadataKeyTooLong = errors.New("metadata key too long")

	// ErrMetadataValueTooLong indicates a metadata value exceeds MaxMetadataValueLength.
	ErrMetadataValueTooLong = errors.New("metadata value too long")
)
