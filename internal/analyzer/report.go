package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/routekeeper/internal/graph"
)

// Analyzer errors.
var (
	// ErrInvalidOperator indicates an operator the value kind does not support.
	ErrInvalidOperator = errors.New("operator not supported for value kind")

	// ErrConflictingAssertions indicates one path asserts incompatible values for a key.
	ErrConflictingAssertions = errors.New("conflicting assertions")

	// ErrUnsatisfiable indicates at least one rule path can never match.
	ErrUnsatisfiable = errors.New("program has unsatisfiable rules")
)

// TypeError is a comparison that does not type check against the domain.
type TypeError struct {
	Rule      string
	RuleIndex int
	LHS       string
	Err       error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("rule %d (%s): %s: %v", e.RuleIndex, e.Rule, e.LHS, e.Err)
}

func (e *TypeError) Unwrap() error { return e.Err }

// AnalysisError reports one rule path that can never match. Err is either
// ErrConflictingAssertions or a graph analysis error carrying a trace.
type AnalysisError struct {
	Rule      string
	RuleIndex int
	Path      int
	Err       error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("rule %d (%s) path %d: %v", e.RuleIndex, e.Rule, e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Trace returns the constraint trace, if the failure came from the graph.
func (e *AnalysisError) Trace() (*graph.Trace, bool) {
	return graph.TraceOf(e.Err)
}

// RuleReport is the outcome for one rule.
type RuleReport struct {
	Index    int
	Name     string
	Paths    int
	Failures []*AnalysisError
}

// Satisfiable reports whether at least one path of the rule can match.
func (r RuleReport) Satisfiable() bool {
	return len(r.Failures) < r.Paths
}

// Report is the result of analysing a program.
type Report struct {
	Graph *graph.Graph
	Rules []RuleReport
}

// Failures returns every failing path in rule order.
func (r *Report) Failures() []*AnalysisError {
	var out []*AnalysisError
	for _, rr := range r.Rules {
		out = append(out, rr.Failures...)
	}
	return out
}

// Unsatisfiable returns the rules none of whose paths can match.
func (r *Report) Unsatisfiable() []RuleReport {
	var out []RuleReport
	for _, rr := range r.Rules {
		if !rr.Satisfiable() {
			out = append(out, rr)
		}
	}
	return out
}

// Err returns an error wrapping ErrUnsatisfiable and every failure of the
// unsatisfiable rules, or nil when every rule can match.
func (r *Report) Err() error {
	bad := r.Unsatisfiable()
	if len(bad) == 0 {
		return nil
	}
	errs := []error{ErrUnsatisfiable}
	for _, rr := range bad {
		for _, f := range rr.Failures {
			errs = append(errs, f)
		}
	}
	return errors.Join(errs...)
}

// Explain renders every failure with its trace.
func (r *Report) Explain() string {
	var b strings.Builder
	for _, f := range r.Failures() {
		fmt.Fprintf(&b, "rule %d (%s) path %d:\n", f.RuleIndex, f.Rule, f.Path)
		if tr, ok := f.Trace(); ok {
			for _, line := range strings.Split(strings.TrimRight(tr.Explain(), "\n"), "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
			continue
		}
		fmt.Fprintf(&b, "  %v\n", f.Err)
	}
	return b.String()
}
