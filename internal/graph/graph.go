// Package graph implements the constraint graph used to check that the
// attribute combinations a rule asserts are mutually consistent.
//
// Nodes are attribute values, attribute keys and aggregators. Edges read
// "source implies target": a strong edge is a mandatory requirement, while the
// normal and weak edges leaving one node form a one-of set of which at least
// one must hold. Negative edges require the target not to hold.
//
// A Builder enforces the construction invariants (no conflicting or cyclic
// edges, known domains, non-empty aggregators). Build freezes it into a Graph
// that is read-only and safe for concurrent analysis.
package graph

import (
	"fmt"

	"github.com/solatis/routekeeper/internal/domain"
)

// NodeID indexes a node inside its graph.
type NodeID int

// EdgeID indexes an edge inside its graph.
type EdgeID int

// DomainID indexes a constraint domain.
type DomainID int

// noDomain marks an edge that applies under every domain selection.
const noDomain DomainID = -1

// Strength of an edge.
type Strength int

const (
	Weak Strength = iota
	Normal
	Strong
)

func (s Strength) String() string {
	switch s {
	case Weak:
		return "weak"
	case Normal:
		return "normal"
	case Strong:
		return "strong"
	default:
		return fmt.Sprintf("strength(%d)", int(s))
	}
}

// Relation of an edge: the target must hold (Positive) or must not (Negative).
type Relation int

const (
	Positive Relation = iota
	Negative
)

func (r Relation) String() string {
	if r == Negative {
		return "negative"
	}
	return "positive"
}

// NodeKind distinguishes value nodes from aggregators.
type NodeKind int

const (
	KindValue NodeKind = iota
	KindAll
	KindAny
	KindIn
)

func (k NodeKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindAll:
		return "all"
	case KindAny:
		return "any"
	case KindIn:
		return "in"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NodeValue identifies what a value node stands for: either a whole key
// ("some value of key is present") or one concrete value.
type NodeValue struct {
	Key   string
	Value domain.DirValue
}

// KeyNode returns the NodeValue for a key.
func KeyNode(key string) NodeValue { return NodeValue{Key: key} }

// ValueNode returns the NodeValue for a concrete value.
func ValueNode(v domain.DirValue) NodeValue { return NodeValue{Value: v} }

// IsKey reports whether n stands for a key rather than a value.
func (n NodeValue) IsKey() bool { return n.Key != "" }

// KeyName returns the attribute key n refers to.
func (n NodeValue) KeyName() string {
	if n.IsKey() {
		return n.Key
	}
	return n.Value.Key
}

func (n NodeValue) String() string {
	if n.IsKey() {
		return n.Key
	}
	return n.Value.String()
}

// Node is a vertex of the graph.
type Node struct {
	ID    NodeID
	Kind  NodeKind
	Value NodeValue         // KindValue
	In    []domain.DirValue // KindIn: expected values, all of one key
	Info  string
	Preds []EdgeID
	Succs []EdgeID
}

// Edge is a directed implication.
type Edge struct {
	ID       EdgeID
	Strength Strength
	Relation Relation
	From     NodeID
	To       NodeID
	Domain   DomainID
}

// Domain groups edges so analysis can be restricted to a subset of knowledge.
type Domain struct {
	ID          DomainID
	Name        string
	Description string
}

// Stats summarises a graph for logging.
type Stats struct {
	Nodes   int
	Edges   int
	Domains int
}

// Graph is an immutable constraint graph.
type Graph struct {
	nodes     []Node
	edges     []Edge
	domains   []Domain
	domainIdx map[string]DomainID
	valueIdx  map[NodeValue]NodeID
}

// Node returns the node with id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return Node{}, false
	}
	return g.nodes[id], true
}

// Edge returns the edge with id.
func (g *Graph) Edge(id EdgeID) (Edge, bool) {
	if id < 0 || int(id) >= len(g.edges) {
		return Edge{}, false
	}
	return g.edges[id], true
}

// ValueNode returns the node standing for v.
func (g *Graph) ValueNode(v domain.DirValue) (NodeID, error) {
	return g.lookup(ValueNode(v))
}

// KeyNode returns the node standing for key.
func (g *Graph) KeyNode(key string) (NodeID, error) {
	return g.lookup(KeyNode(key))
}

func (g *Graph) lookup(v NodeValue) (NodeID, error) {
	id, ok := g.valueIdx[v]
	if !ok {
		return 0, &GraphError{Kind: ErrorValueNodeNotFound, Value: v}
	}
	return id, nil
}

// Stats reports the graph size.
func (g *Graph) Stats() Stats {
	return Stats{Nodes: len(g.nodes), Edges: len(g.edges), Domains: len(g.domains)}
}

// domainSet resolves domain names. A nil result means every domain applies.
func (g *Graph) domainSet(names []string) (map[DomainID]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	set := make(map[DomainID]bool, len(names))
	for _, name := range names {
		id, ok := g.domainIdx[name]
		if !ok {
			return nil, &GraphError{Kind: ErrorDomainNotFound, Domain: name}
		}
		set[id] = true
	}
	return set, nil
}
