// Package knowledge loads domain constraints about attribute combinations
// from YAML and compiles them into a constraint graph builder.
//
// A constraint reads "when this value (or key) is asserted, these other
// assertions must, must not, or may hold". The compiled builder is a template:
// program analysis clones it and adds the program's own values.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/graph"
	"github.com/solatis/routekeeper/internal/types"
)

//go:embed default.yaml
var defaultDocument []byte

// ErrEmptyConstraint indicates a constraint with no consequence.
var ErrEmptyConstraint = errors.New("constraint has no consequence")

// Document is the top level of a constraints file.
type Document struct {
	Domains     []DomainSpec `yaml:"domains"`
	Constraints []Constraint `yaml:"constraints"`
}

// DomainSpec declares a named group of constraints.
type DomainSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Ref names a key, or one value of a key when Value is set.
type Ref struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// SetRef names a set of values of one key.
type SetRef struct {
	Key    string   `yaml:"key"`
	Values []string `yaml:"values"`
}

// Constraint is one rule of domain knowledge.
type Constraint struct {
	Name     string  `yaml:"name"`
	When     Ref     `yaml:"when"`
	Require  []Ref   `yaml:"require"`
	Forbid   []Ref   `yaml:"forbid"`
	OneOf    []Ref   `yaml:"one_of"`
	In       *SetRef `yaml:"in"`
	NotIn    *SetRef `yaml:"not_in"`
	All      []Ref   `yaml:"all"`
	Any      []Ref   `yaml:"any"`
	Strength string  `yaml:"strength"`
	Domain   string  `yaml:"domain"`
}

func (c *Constraint) empty() bool {
	return len(c.Require) == 0 && len(c.Forbid) == 0 && len(c.OneOf) == 0 &&
		c.In == nil && c.NotIn == nil && len(c.All) == 0 && len(c.Any) == 0
}

// Parse decodes a constraints document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse constraints: %w", err)
	}
	return &doc, nil
}

// LoadFile reads and parses a constraints file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constraints %q: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Default returns the built-in payment constraints.
func Default() *Document {
	doc, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("built-in constraints: %v", err))
	}
	return doc
}

// Load returns the document at path, or the built-in one when path is empty.
func Load(path string) (*Document, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Compile turns the document into a graph builder. Values are typed through d,
// so unknown keys and undeclared variants are rejected.
func Compile(d *domain.Domain, doc *Document) (*graph.Builder, error) {
	b := graph.NewBuilder()
	for _, ds := range doc.Domains {
		if ds.Name == "" {
			return nil, fmt.Errorf("domain without name")
		}
		b.AddDomain(ds.Name, ds.Description)
	}
	for i := range doc.Constraints {
		c := &doc.Constraints[i]
		if err := compileConstraint(b, d, c); err != nil {
			return nil, fmt.Errorf("constraint %d (%s): %w", i, c.Name, err)
		}
	}
	return b, nil
}

func compileConstraint(b *graph.Builder, d *domain.Domain, c *Constraint) error {
	if c.empty() {
		return ErrEmptyConstraint
	}
	strength, err := parseStrength(c.Strength)
	if err != nil {
		return err
	}
	when, err := node(b, d, c.When)
	if err != nil {
		return fmt.Errorf("when: %w", err)
	}

	edge := func(to graph.NodeID, s graph.Strength, r graph.Relation) error {
		_, err := b.AddEdge(when, to, s, r, c.Domain)
		return err
	}

	for _, ref := range c.Require {
		to, err := node(b, d, ref)
		if err != nil {
			return fmt.Errorf("require: %w", err)
		}
		if err := edge(to, strength, graph.Positive); err != nil {
			return err
		}
	}
	for _, ref := range c.Forbid {
		to, err := node(b, d, ref)
		if err != nil {
			return fmt.Errorf("forbid: %w", err)
		}
		if err := edge(to, strength, graph.Negative); err != nil {
			return err
		}
	}

	oneOf := graph.Normal
	if strength == graph.Weak {
		oneOf = graph.Weak
	}
	for _, ref := range c.OneOf {
		to, err := node(b, d, ref)
		if err != nil {
			return fmt.Errorf("one_of: %w", err)
		}
		if err := edge(to, oneOf, graph.Positive); err != nil {
			return err
		}
	}

	for _, set := range []struct {
		ref      *SetRef
		relation graph.Relation
	}{{c.In, graph.Positive}, {c.NotIn, graph.Negative}} {
		if set.ref == nil {
			continue
		}
		in, err := inNode(b, d, c.Name, set.ref)
		if err != nil {
			return err
		}
		if err := edge(in, strength, set.relation); err != nil {
			return err
		}
	}

	for _, agg := range []struct {
		refs []Ref
		add  func([]graph.Operand, string) (graph.NodeID, error)
	}{{c.All, b.AddAllAggregator}, {c.Any, b.AddAnyAggregator}} {
		if len(agg.refs) == 0 {
			continue
		}
		operands := make([]graph.Operand, 0, len(agg.refs))
		for _, ref := range agg.refs {
			id, err := node(b, d, ref)
			if err != nil {
				return err
			}
			operands = append(operands, graph.Operand{Node: id, Relation: graph.Positive, Strength: graph.Strong})
		}
		id, err := agg.add(operands, c.Name)
		if err != nil {
			return err
		}
		if err := edge(id, strength, graph.Positive); err != nil {
			return err
		}
	}
	return nil
}

func parseStrength(s string) (graph.Strength, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strong":
		return graph.Strong, nil
	case "normal":
		return graph.Normal, nil
	case "weak":
		return graph.Weak, nil
	default:
		return 0, fmt.Errorf("unknown strength %q", s)
	}
}

// node returns the key node for a bare key or the value node for key=value.
func node(b *graph.Builder, d *domain.Domain, ref Ref) (graph.NodeID, error) {
	if _, ok := d.Key(ref.Key); !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownKey, ref.Key)
	}
	if ref.Value == "" {
		return b.AddKeyNode(ref.Key, ""), nil
	}
	v, err := dirValue(d, ref.Key, ref.Value)
	if err != nil {
		return 0, err
	}
	return b.AddValueNode(graph.ValueNode(v), ""), nil
}

func inNode(b *graph.Builder, d *domain.Domain, name string, set *SetRef) (graph.NodeID, error) {
	values := make([]domain.DirValue, 0, len(set.Values))
	for _, raw := range set.Values {
		v, err := dirValue(d, set.Key, raw)
		if err != nil {
			return 0, err
		}
		values = append(values, v)
	}
	return b.AddInAggregator(values, name)
}

// dirValue coerces raw into the key's type and converts it to a DirValue.
func dirValue(d *domain.Domain, key, raw string) (domain.DirValue, error) {
	vt, err := d.Coerce(key, raw)
	if err != nil {
		return domain.DirValue{}, err
	}
	vals, err := d.Values(types.Comparison{LHS: key, Comparison: types.Equal, Value: vt})
	if err != nil {
		return domain.DirValue{}, err
	}
	return vals[0], nil
}
