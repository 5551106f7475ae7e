// internal/graph/builder.go
package graph

import (
	"fmt"

	"github.com/solatis/routekeeper/internal/domain"
)

/*
 * Constraint graph construction.
 *
 * Every mutation validates eagerly so a graph that builds is structurally
 * sound; analysis never has to guard against malformed input.
 *
 * Construction checks:
 *   - AddValueNode is idempotent per NodeValue
 *   - AddEdge: both nodes exist, no self edge, known domain, no cycle, and no
 *     second edge between the same pair with a different strength or relation
 *     (re-adding an identical edge returns the existing id)
 *   - Aggregators: at least one operand; In-aggregators need at least one
 *     value, all of the same key
 *
 * Cycle detection walks successors from the edge target looking for the
 * source. Graphs are small (hundreds of nodes) and built once per activation,
 * so the DFS per edge is not a concern.
 */

// Operand is one child of an All or Any aggregator.
type Operand struct {
	Node     NodeID
	Relation Relation
	Strength Strength
}

type pair struct {
	from, to NodeID
}

// Builder accumulates nodes and edges.
type Builder struct {
	nodes     []Node
	edges     []Edge
	domains   []Domain
	domainIdx map[string]DomainID
	valueIdx  map[NodeValue]NodeID
	edgeIdx   map[pair]EdgeID
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		domainIdx: make(map[string]DomainID),
		valueIdx:  make(map[NodeValue]NodeID),
		edgeIdx:   make(map[pair]EdgeID),
	}
}

// AddDomain registers a named domain. Re-adding a name returns its id.
func (b *Builder) AddDomain(name, description string) DomainID {
	if id, ok := b.domainIdx[name]; ok {
		return id
	}
	id := DomainID(len(b.domains))
	b.domains = append(b.domains, Domain{ID: id, Name: name, Description: description})
	b.domainIdx[name] = id
	return id
}

// AddValueNode returns the node standing for v, creating it on first use.
func (b *Builder) AddValueNode(v NodeValue, info string) NodeID {
	if id, ok := b.valueIdx[v]; ok {
		return id
	}
	id := b.addNode(Node{Kind: KindValue, Value: v, Info: info})
	b.valueIdx[v] = id
	return id
}

// AddKeyNode returns the node standing for key.
func (b *Builder) AddKeyNode(key, info string) NodeID {
	return b.AddValueNode(KeyNode(key), info)
}

// ValueNode returns the node for v if it exists.
func (b *Builder) ValueNode(v NodeValue) (NodeID, bool) {
	id, ok := b.valueIdx[v]
	return id, ok
}

func (b *Builder) addNode(n Node) NodeID {
	n.ID = NodeID(len(b.nodes))
	b.nodes = append(b.nodes, n)
	return n.ID
}

func (b *Builder) hasNode(id NodeID) bool {
	return id >= 0 && int(id) < len(b.nodes)
}

// AddEdge records "from implies (relation) to". domainName may be empty.
func (b *Builder) AddEdge(from, to NodeID, strength Strength, relation Relation, domainName string) (EdgeID, error) {
	for _, id := range []NodeID{from, to} {
		if !b.hasNode(id) {
			return 0, &GraphError{Kind: ErrorNodeNotFound, Node: id}
		}
	}
	if from == to {
		return 0, malformed("self edge on %s", b.describe(from))
	}

	dom := noDomain
	if domainName != "" {
		id, ok := b.domainIdx[domainName]
		if !ok {
			return 0, &GraphError{Kind: ErrorDomainNotFound, Domain: domainName}
		}
		dom = id
	}

	if existing, ok := b.edgeIdx[pair{from, to}]; ok {
		e := b.edges[existing]
		if e.Strength == strength && e.Relation == relation {
			return existing, nil
		}
		return 0, &GraphError{
			Kind: ErrorConflictingEdge,
			Node: from,
			Reason: fmt.Sprintf("%s -> %s already %s/%s, got %s/%s",
				b.describe(from), b.describe(to), e.Strength, e.Relation, strength, relation),
		}
	}

	if b.reachable(to, from) {
		return 0, &GraphError{
			Kind:   ErrorCycleDetected,
			Node:   from,
			Reason: fmt.Sprintf("%s -> %s closes a cycle", b.describe(from), b.describe(to)),
		}
	}

	return b.addEdge(from, to, strength, relation, dom), nil
}

func (b *Builder) addEdge(from, to NodeID, strength Strength, relation Relation, dom DomainID) EdgeID {
	id := EdgeID(len(b.edges))
	b.edges = append(b.edges, Edge{ID: id, Strength: strength, Relation: relation, From: from, To: to, Domain: dom})
	b.nodes[from].Succs = append(b.nodes[from].Succs, id)
	b.nodes[to].Preds = append(b.nodes[to].Preds, id)
	b.edgeIdx[pair{from, to}] = id
	return id
}

// reachable reports whether target can be reached from start along successors.
func (b *Builder) reachable(start, target NodeID) bool {
	seen := make(map[NodeID]bool)
	stack := []NodeID{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == target {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		for _, e := range b.nodes[n].Succs {
			stack = append(stack, b.edges[e].To)
		}
	}
	return false
}

// AddAllAggregator adds a node that holds when every operand holds.
func (b *Builder) AddAllAggregator(operands []Operand, info string) (NodeID, error) {
	return b.addAggregator(KindAll, operands, info)
}

// AddAnyAggregator adds a node that holds when at least one operand holds.
func (b *Builder) AddAnyAggregator(operands []Operand, info string) (NodeID, error) {
	return b.addAggregator(KindAny, operands, info)
}

func (b *Builder) addAggregator(kind NodeKind, operands []Operand, info string) (NodeID, error) {
	if len(operands) == 0 {
		return 0, malformed("%s aggregator %q has no operands", kind, info)
	}
	seen := make(map[NodeID]bool, len(operands))
	for _, op := range operands {
		if !b.hasNode(op.Node) {
			return 0, &GraphError{Kind: ErrorNodeNotFound, Node: op.Node}
		}
		if seen[op.Node] {
			return 0, malformed("%s aggregator %q lists %s twice", kind, info, b.describe(op.Node))
		}
		seen[op.Node] = true
	}
	id := b.addNode(Node{Kind: kind, Info: info})
	for _, op := range operands {
		b.addEdge(id, op.Node, op.Strength, op.Relation, noDomain)
	}
	return id, nil
}

// AddInAggregator adds a node that holds when the assigned value of the key
// is one of values.
func (b *Builder) AddInAggregator(values []domain.DirValue, info string) (NodeID, error) {
	if len(values) == 0 {
		return 0, &GraphError{Kind: ErrorNoInAggregatorValues, Reason: info}
	}
	key := values[0].Key
	for _, v := range values[1:] {
		if v.Key != key {
			return 0, malformed("in aggregator %q mixes keys %s and %s", info, key, v.Key)
		}
	}
	return b.addNode(Node{Kind: KindIn, In: append([]domain.DirValue(nil), values...), Info: info}), nil
}

func (b *Builder) describe(id NodeID) string {
	n := b.nodes[id]
	if n.Kind == KindValue {
		return n.Value.String()
	}
	if n.Info != "" {
		return fmt.Sprintf("%s(%s)", n.Kind, n.Info)
	}
	return fmt.Sprintf("%s#%d", n.Kind, id)
}

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	c := &Builder{
		nodes:     cloneNodes(b.nodes),
		edges:     append([]Edge(nil), b.edges...),
		domains:   append([]Domain(nil), b.domains...),
		domainIdx: make(map[string]DomainID, len(b.domainIdx)),
		valueIdx:  make(map[NodeValue]NodeID, len(b.valueIdx)),
		edgeIdx:   make(map[pair]EdgeID, len(b.edgeIdx)),
	}
	for k, v := range b.domainIdx {
		c.domainIdx[k] = v
	}
	for k, v := range b.valueIdx {
		c.valueIdx[k] = v
	}
	for k, v := range b.edgeIdx {
		c.edgeIdx[k] = v
	}
	return c
}

// Build freezes the current state into a Graph. The builder stays usable.
func (b *Builder) Build() *Graph {
	c := b.Clone()
	return &Graph{
		nodes:     c.nodes,
		edges:     c.edges,
		domains:   c.domains,
		domainIdx: c.domainIdx,
		valueIdx:  c.valueIdx,
	}
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		n.In = append([]domain.DirValue(nil), n.In...)
		n.Preds = append([]EdgeID(nil), n.Preds...)
		n.Succs = append([]EdgeID(nil), n.Succs...)
		out[i] = n
	}
	return out
}
