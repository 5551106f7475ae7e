package graph

import (
	"errors"
	"fmt"
)

// ErrorKind classifies graph failures.
type ErrorKind string

const (
	ErrorConflictingEdge      ErrorKind = "conflicting_edge_created"
	ErrorCycleDetected        ErrorKind = "cycle_detected"
	ErrorDomainNotFound       ErrorKind = "domain_not_found"
	ErrorNodeNotFound         ErrorKind = "node_not_found"
	ErrorValueNodeNotFound    ErrorKind = "value_node_not_found"
	ErrorNoInAggregatorValues ErrorKind = "no_in_aggregator_values"
	ErrorMalformedGraph       ErrorKind = "malformed_graph"
	ErrorAnalysis             ErrorKind = "analysis_error"
)

// Sentinels matched by GraphError.Is.
var (
	ErrConflictingEdge      = errors.New("conflicting edge created")
	ErrCycleDetected        = errors.New("cycle detected")
	ErrDomainNotFound       = errors.New("domain not found")
	ErrNodeNotFound         = errors.New("node not found")
	ErrValueNodeNotFound    = errors.New("value node not found")
	ErrNoInAggregatorValues = errors.New("in-aggregator has no values")
	ErrMalformedGraph       = errors.New("malformed graph")
	ErrAnalysis             = errors.New("analysis failed")
)

var sentinels = map[ErrorKind]error{
	ErrorConflictingEdge:      ErrConflictingEdge,
	ErrorCycleDetected:        ErrCycleDetected,
	ErrorDomainNotFound:       ErrDomainNotFound,
	ErrorNodeNotFound:         ErrNodeNotFound,
	ErrorValueNodeNotFound:    ErrValueNodeNotFound,
	ErrorNoInAggregatorValues: ErrNoInAggregatorValues,
	ErrorMalformedGraph:       ErrMalformedGraph,
	ErrorAnalysis:             ErrAnalysis,
}

// GraphError is returned by graph construction and analysis. Only the fields
// relevant to Kind are set.
type GraphError struct {
	Kind   ErrorKind
	Node   NodeID
	Value  NodeValue
	Domain string
	Reason string
	Trace  *Trace
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case ErrorConflictingEdge, ErrorCycleDetected:
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case ErrorDomainNotFound:
		return fmt.Sprintf("%s: %s", e.Kind, e.Domain)
	case ErrorNodeNotFound:
		return fmt.Sprintf("%s: %d", e.Kind, e.Node)
	case ErrorValueNodeNotFound:
		return fmt.Sprintf("%s: %s", e.Kind, e.Value)
	case ErrorAnalysis:
		if e.Trace != nil {
			return fmt.Sprintf("%s: %s", e.Kind, e.Trace.Summary())
		}
		return string(e.Kind)
	default:
		if e.Reason != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
		}
		return string(e.Kind)
	}
}

// Is matches the sentinel for the error kind.
func (e *GraphError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// TraceOf returns the analysis trace carried by err, if any.
func TraceOf(err error) (*Trace, bool) {
	var ge *GraphError
	if errors.As(err, &ge) && ge.Kind == ErrorAnalysis && ge.Trace != nil {
		return ge.Trace, true
	}
	return nil, false
}

func malformed(format string, args ...any) error {
	return &GraphError{Kind: ErrorMalformedGraph, Reason: fmt.Sprintf(format, args...)}
}
