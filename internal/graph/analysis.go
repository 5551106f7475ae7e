// internal/graph/analysis.go
package graph

import (
	"github.com/solatis/routekeeper/internal/domain"
)

/*
 * Constraint analysis.
 *
 * Checks a candidate assignment (the values one rule path asserts) against
 * the graph, depth-first from each target node.
 *
 * Node semantics:
 *   - Value node, positive: the key must be assigned a value that fits the
 *     node; then every applicable strong successor must hold and, when the
 *     node has non-strong successors, at least one of them must hold
 *   - Value node, negative: no assigned value may fit the node
 *   - Weak strength tolerates an unassigned key
 *   - All / Any: all / at least one operand edge holds (inverted when negative)
 *   - In: some assigned value of the key is among the expected values
 *     (inverted when negative)
 *
 * A node required positively and negatively within one check is a
 * contradiction, as is a strong negative requirement on a value the
 * assignment itself asserts. Resolutions are recorded for strong requirements
 * only, and rolled back when a one-of alternative fails.
 *
 * Results are memoised per (node, relation, strength) so shared requirements
 * are evaluated once and failures are shared by trace index. The graph is
 * never written; concurrent checks are safe.
 */

// Assignment maps each key to the values a candidate asserts for it.
type Assignment map[string][]domain.DirValue

// NewAssignment builds an assignment from values.
func NewAssignment(values ...domain.DirValue) Assignment {
	a := make(Assignment)
	for _, v := range values {
		a.Add(v)
	}
	return a
}

// Add assigns v to its key, ignoring duplicates.
func (a Assignment) Add(v domain.DirValue) {
	for _, existing := range a[v.Key] {
		if existing == v {
			return
		}
	}
	a[v.Key] = append(a[v.Key], v)
}

// Target is a node a check must satisfy with the given relation.
type Target struct {
	Node     NodeID
	Relation Relation
}

const satisfied = -1

type memoKey struct {
	node     NodeID
	relation Relation
	strength Strength
}

type checker struct {
	g        *Graph
	a        Assignment
	domains  map[DomainID]bool
	trace    *Trace
	memo     map[memoKey]int
	resolved map[NodeID]Relation
	undo     []NodeID
}

// CheckNode checks a single node. domains restricts which domain-tagged edges
// apply; nil applies all of them.
func (g *Graph) CheckNode(a Assignment, node NodeID, relation Relation, strength Strength, domains []string) error {
	if _, ok := g.Node(node); !ok {
		return &GraphError{Kind: ErrorNodeNotFound, Node: node}
	}
	c, err := g.newChecker(a, domains)
	if err != nil {
		return err
	}
	if r := c.check(node, relation, strength); r != satisfied {
		c.trace.Root = r
		return &GraphError{Kind: ErrorAnalysis, Node: node, Trace: c.trace}
	}
	return nil
}

// CheckAssignment checks every target as a strong requirement within one
// shared resolution scope.
func (g *Graph) CheckAssignment(a Assignment, targets []Target, domains []string) error {
	for _, t := range targets {
		if _, ok := g.Node(t.Node); !ok {
			return &GraphError{Kind: ErrorNodeNotFound, Node: t.Node}
		}
	}
	c, err := g.newChecker(a, domains)
	if err != nil {
		return err
	}

	var failed []int
	for _, t := range targets {
		if r := c.check(t.Node, t.Relation, Strong); r != satisfied {
			failed = append(failed, r)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		c.trace.Root = failed[0]
	default:
		c.trace.Root = c.trace.push(TraceNode{Kind: TraceAll, Node: -1, Info: "assignment", Unsatisfied: failed})
	}
	return &GraphError{Kind: ErrorAnalysis, Trace: c.trace}
}

func (g *Graph) newChecker(a Assignment, domains []string) (*checker, error) {
	set, err := g.domainSet(domains)
	if err != nil {
		return nil, err
	}
	return &checker{
		g:        g,
		a:        a,
		domains:  set,
		trace:    &Trace{},
		memo:     make(map[memoKey]int),
		resolved: make(map[NodeID]Relation),
	}, nil
}

func (c *checker) applies(e Edge) bool {
	return c.domains == nil || e.Domain == noDomain || c.domains[e.Domain]
}

func (c *checker) rollback(mark int) {
	for _, n := range c.undo[mark:] {
		delete(c.resolved, n)
	}
	c.undo = c.undo[:mark]
}

// check returns satisfied or the trace index of the failure.
func (c *checker) check(id NodeID, relation Relation, strength Strength) int {
	n := &c.g.nodes[id]

	if prev, ok := c.resolved[id]; ok && prev != relation {
		return c.contradiction(n, prev, relation)
	}

	// Recorded before the memo lookup: a rolled-back resolution must be
	// restored even when the result is cached.
	if strength == Strong {
		if _, ok := c.resolved[id]; !ok {
			c.resolved[id] = relation
			c.undo = append(c.undo, id)
		}
	}

	key := memoKey{id, relation, strength}
	if r, ok := c.memo[key]; ok {
		return r
	}

	var r int
	switch n.Kind {
	case KindValue:
		r = c.checkValue(n, relation, strength)
	case KindAll, KindAny:
		r = c.checkAggregate(n, relation)
	case KindIn:
		r = c.checkIn(n, relation, strength)
	}
	c.memo[key] = r
	return r
}

func (c *checker) contradiction(n *Node, resolved, requested Relation) int {
	return c.trace.push(TraceNode{
		Kind:     TraceContradiction,
		Node:     n.ID,
		Info:     n.Info,
		Relation: requested,
		Value:    n.Value,
		Resolution: &RelationResolution{
			Node:      n.ID,
			Value:     n.Value,
			Resolved:  resolved,
			Requested: requested,
		},
	})
}

func (c *checker) checkValue(n *Node, relation Relation, strength Strength) int {
	found := c.a[n.Value.KeyName()]
	fail := func(pred *ValueTracePredecessor) int {
		return c.trace.push(TraceNode{
			Kind:        TraceValue,
			Node:        n.ID,
			Info:        n.Info,
			Relation:    relation,
			Value:       n.Value,
			Found:       found,
			Predecessor: pred,
		})
	}

	if len(found) == 0 {
		if strength == Weak || relation == Negative {
			return satisfied
		}
		return fail(nil)
	}

	holds := n.Value.IsKey() || fitsAny(n.Value.Value, found)
	if relation == Negative {
		if !holds {
			return satisfied
		}
		if strength == Strong {
			// The assignment itself asserts what a mandatory edge forbids.
			return c.contradiction(n, Positive, Negative)
		}
		return fail(nil)
	}
	if !holds {
		return fail(nil)
	}

	for _, eid := range n.Succs {
		e := c.g.edges[eid]
		if e.Strength != Strong || !c.applies(e) {
			continue
		}
		if r := c.check(e.To, e.Relation, e.Strength); r != satisfied {
			return fail(&ValueTracePredecessor{Kind: PredecessorMandatory, Mandatory: r})
		}
	}

	var oneOf []int
	for _, eid := range n.Succs {
		e := c.g.edges[eid]
		if e.Strength == Strong || !c.applies(e) {
			continue
		}
		mark := len(c.undo)
		r := c.check(e.To, e.Relation, e.Strength)
		if r == satisfied {
			return satisfied
		}
		c.rollback(mark)
		oneOf = append(oneOf, r)
	}
	if len(oneOf) > 0 {
		return fail(&ValueTracePredecessor{Kind: PredecessorOneOf, OneOf: oneOf})
	}
	return satisfied
}

func (c *checker) checkAggregate(n *Node, relation Relation) int {
	var failed []int
	for _, eid := range n.Succs {
		e := c.g.edges[eid]
		mark := len(c.undo)
		if r := c.check(e.To, e.Relation, e.Strength); r != satisfied {
			c.rollback(mark)
			failed = append(failed, r)
		}
	}

	var holds bool
	if n.Kind == KindAll {
		holds = len(failed) == 0
	} else {
		holds = len(failed) < len(n.Succs)
	}
	if holds == (relation == Positive) {
		return satisfied
	}

	kind := TraceAll
	if n.Kind == KindAny {
		kind = TraceAny
	}
	return c.trace.push(TraceNode{Kind: kind, Node: n.ID, Info: n.Info, Relation: relation, Unsatisfied: failed})
}

func (c *checker) checkIn(n *Node, relation Relation, strength Strength) int {
	found := c.a[n.In[0].Key]
	if len(found) == 0 {
		if strength == Weak || relation == Negative {
			return satisfied
		}
	} else {
		member := false
		for _, f := range found {
			if anyFits(n.In, f) {
				member = true
				break
			}
		}
		if member == (relation == Positive) {
			return satisfied
		}
	}
	return c.trace.push(TraceNode{
		Kind:     TraceIn,
		Node:     n.ID,
		Info:     n.Info,
		Relation: relation,
		Expected: n.In,
		Found:    found,
	})
}

// fitsAny reports whether any observed value satisfies want.
func fitsAny(want domain.DirValue, observed []domain.DirValue) bool {
	for _, o := range observed {
		if want.Fits(o) {
			return true
		}
	}
	return false
}

// anyFits reports whether observed satisfies any of wants.
func anyFits(wants []domain.DirValue, observed domain.DirValue) bool {
	for _, w := range wants {
		if w.Fits(observed) {
			return true
		}
	}
	return false
}
