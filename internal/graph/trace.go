package graph

import (
	"fmt"
	"strings"

	"github.com/solatis/routekeeper/internal/domain"
)

// TraceKind tags a trace node.
type TraceKind int

const (
	TraceValue TraceKind = iota
	TraceAll
	TraceAny
	TraceIn
	TraceContradiction
)

func (k TraceKind) String() string {
	switch k {
	case TraceValue:
		return "value"
	case TraceAll:
		return "all"
	case TraceAny:
		return "any"
	case TraceIn:
		return "in"
	case TraceContradiction:
		return "contradiction"
	default:
		return fmt.Sprintf("trace(%d)", int(k))
	}
}

// PredecessorKind tells which downstream requirement broke a value node.
type PredecessorKind int

const (
	PredecessorNone PredecessorKind = iota
	PredecessorMandatory
	PredecessorOneOf
)

// ValueTracePredecessor points at the failed requirement of a value node:
// one mandatory successor, or every candidate of a one-of set.
type ValueTracePredecessor struct {
	Kind      PredecessorKind
	Mandatory int
	OneOf     []int
}

// RelationResolution records a node required with both relations in one check.
type RelationResolution struct {
	Node      NodeID
	Value     NodeValue
	Resolved  Relation
	Requested Relation
}

// TraceNode is one step of an analysis failure. References to other steps
// are indices into Trace.Nodes; a step may be referenced by several parents.
type TraceNode struct {
	Kind        TraceKind
	Node        NodeID
	Info        string
	Relation    Relation
	Value       NodeValue
	Expected    []domain.DirValue
	Found       []domain.DirValue
	Predecessor *ValueTracePredecessor
	Unsatisfied []int
	Resolution  *RelationResolution
}

// Trace is the arena of an analysis failure rooted at Nodes[Root].
// It is a read-only diagnostic and carries no reference back to the graph.
type Trace struct {
	Nodes []TraceNode
	Root  int
}

func (t *Trace) push(n TraceNode) int {
	t.Nodes = append(t.Nodes, n)
	return len(t.Nodes) - 1
}

// children returns the indices a trace node refers to.
func (n *TraceNode) children() []int {
	var out []int
	if n.Predecessor != nil {
		switch n.Predecessor.Kind {
		case PredecessorMandatory:
			out = append(out, n.Predecessor.Mandatory)
		case PredecessorOneOf:
			out = append(out, n.Predecessor.OneOf...)
		}
	}
	return append(out, n.Unsatisfied...)
}

// Terminals returns the trace nodes reachable from the root that refer to no
// further step, in depth-first order without repeats.
func (t *Trace) Terminals() []TraceNode {
	var out []TraceNode
	seen := make(map[int]bool)
	var walk func(i int)
	walk = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		n := &t.Nodes[i]
		kids := n.children()
		if len(kids) == 0 {
			out = append(out, *n)
			return
		}
		for _, k := range kids {
			walk(k)
		}
	}
	walk(t.Root)
	return out
}

// HasContradiction reports whether any branch ends in a contradiction.
func (t *Trace) HasContradiction() bool {
	for _, n := range t.Terminals() {
		if n.Kind == TraceContradiction {
			return true
		}
	}
	return false
}

// Summary describes the root step on one line.
func (t *Trace) Summary() string {
	if len(t.Nodes) == 0 {
		return "empty trace"
	}
	return t.Nodes[t.Root].describe()
}

// Explain renders the trace as an indented tree. Steps shared by several
// parents are printed once and referenced by index afterwards.
func (t *Trace) Explain() string {
	if len(t.Nodes) == 0 {
		return "empty trace\n"
	}
	var b strings.Builder
	printed := make(map[int]bool)
	var walk func(i, depth int)
	walk = func(i, depth int) {
		indent := strings.Repeat("  ", depth)
		if printed[i] {
			fmt.Fprintf(&b, "%s(see #%d)\n", indent, i)
			return
		}
		printed[i] = true
		n := &t.Nodes[i]
		fmt.Fprintf(&b, "%s#%d %s\n", indent, i, n.describe())
		for _, k := range n.children() {
			walk(k, depth+1)
		}
	}
	walk(t.Root, 0)
	return b.String()
}

func (n *TraceNode) describe() string {
	switch n.Kind {
	case TraceValue:
		switch {
		case n.Predecessor != nil && n.Predecessor.Kind == PredecessorMandatory:
			return fmt.Sprintf("%s (%s): mandatory requirement not met", n.Value, n.Relation)
		case n.Predecessor != nil && n.Predecessor.Kind == PredecessorOneOf:
			return fmt.Sprintf("%s (%s): none of %d alternatives holds", n.Value, n.Relation, len(n.Predecessor.OneOf))
		case len(n.Found) == 0:
			return fmt.Sprintf("%s (%s): key not assigned", n.Value, n.Relation)
		default:
			return fmt.Sprintf("%s (%s): assigned %s", n.Value, n.Relation, joinValues(n.Found))
		}
	case TraceAll, TraceAny:
		label := n.Kind.String()
		if n.Info != "" {
			label += " " + n.Info
		}
		return fmt.Sprintf("%s (%s): %d unsatisfied", label, n.Relation, len(n.Unsatisfied))
	case TraceIn:
		return fmt.Sprintf("in %s (%s): expected %s, found %s",
			n.Info, n.Relation, joinValues(n.Expected), joinValues(n.Found))
	case TraceContradiction:
		r := n.Resolution
		return fmt.Sprintf("%s: contradiction, required %s and %s", r.Value, r.Resolved, r.Requested)
	default:
		return n.Kind.String()
	}
}

func joinValues(vs []domain.DirValue) string {
	if len(vs) == 0 {
		return "nothing"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
