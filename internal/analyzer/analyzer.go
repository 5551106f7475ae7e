// internal/analyzer/analyzer.go
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/graph"
	"github.com/solatis/routekeeper/internal/types"
)

/*
 * Static program analysis.
 *
 * Runs once per program before activation, in three phases:
 *
 *   1. Type check: every comparison is resolved against the domain. Unknown
 *      keys, undeclared variants, kind mismatches and operators the kind does
 *      not support are TypeErrors and reject the program outright.
 *   2. Seed: the knowledge graph template is cloned and every asserted value
 *      becomes a node (arrays become In aggregators). Construction errors
 *      reject the program.
 *   3. Paths: each rule is flattened into its root-to-leaf conjunctions. A
 *      path is checked for conflicting assertions on one key, then its
 *      assignment is checked against the graph, once per choice of member
 *      for each positive set comparison. Paths are checked
 *      concurrently; the graph is read-only by then.
 *
 * Phase 3 findings are diagnostics collected in the Report. Whether they block
 * activation is the caller's decision (Report.Err).
 */

// DefaultConcurrency bounds concurrent path checks.
const DefaultConcurrency = 8

// Analyzer checks programs against a domain and a knowledge graph.
type Analyzer struct {
	domain    *domain.Domain
	knowledge *graph.Builder
	domains   []string
	workers   int
	logger    *slog.Logger
	observe   func(time.Duration)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithDomains restricts analysis to edges of the named knowledge domains.
func WithDomains(names ...string) Option {
	return func(a *Analyzer) {
		a.domains = names
	}
}

// WithConcurrency sets how many paths are checked at once.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLatencyObserver registers a callback receiving each analysis duration.
func WithLatencyObserver(fn func(time.Duration)) Option {
	return func(a *Analyzer) {
		a.observe = fn
	}
}

// New returns an analyzer. knowledge is used as a template and never
// modified; nil means no domain constraints.
func New(d *domain.Domain, knowledge *graph.Builder, opts ...Option) *Analyzer {
	if knowledge == nil {
		knowledge = graph.NewBuilder()
	}
	a := &Analyzer{
		domain:    d,
		knowledge: knowledge,
		workers:   DefaultConcurrency,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Domain returns the domain programs are checked against.
func (a *Analyzer) Domain() *domain.Domain { return a.domain }

// ruleView is the output-independent part of a rule.
type ruleView struct {
	index      int
	name       string
	statements []types.IfStatement
}

// Analyze checks program. A returned error means the program is rejected
// (type or graph construction errors); path findings are in the Report.
func Analyze[O any](ctx context.Context, a *Analyzer, program *types.Program[O]) (*Report, error) {
	if program == nil {
		return nil, fmt.Errorf("nil program")
	}
	rules := make([]ruleView, len(program.Rules))
	for i := range program.Rules {
		r := &program.Rules[i]
		rules[i] = ruleView{index: i, name: r.Name, statements: r.Statements}
	}
	return a.analyze(ctx, rules)
}

func (a *Analyzer) analyze(ctx context.Context, rules []ruleView) (*Report, error) {
	start := time.Now()
	defer func() {
		if a.observe != nil {
			a.observe(time.Since(start))
		}
	}()

	for _, r := range rules {
		if err := a.typeCheck(r); err != nil {
			a.logger.WarnContext(ctx, "program rejected by type check", "error", err)
			return nil, err
		}
	}

	g, ins, err := a.seed(rules)
	if err != nil {
		a.logger.WarnContext(ctx, "program rejected by graph construction", "error", err)
		return nil, err
	}

	report := &Report{Graph: g, Rules: make([]RuleReport, len(rules))}
	type job struct {
		rule int
		path int
		cond types.IfCondition
	}
	var jobs []job
	for i, r := range rules {
		report.Rules[i] = RuleReport{Index: r.index, Name: r.name}
		for _, stmt := range r.statements {
			for _, p := range stmt.Paths() {
				jobs = append(jobs, job{rule: i, path: report.Rules[i].Paths, cond: p})
				report.Rules[i].Paths++
			}
		}
	}

	results := make([]*AnalysisError, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.workers)
	for i, j := range jobs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			if err := a.checkPath(g, ins, j.cond); err != nil {
				r := rules[j.rule]
				results[i] = &AnalysisError{Rule: r.name, RuleIndex: r.index, Path: j.path, Err: err}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, res := range results {
		if res != nil {
			rr := &report.Rules[jobs[i].rule]
			rr.Failures = append(rr.Failures, res)
		}
	}

	failures := len(report.Failures())
	stats := g.Stats()
	a.logger.DebugContext(ctx, "program analyzed",
		"rules", len(rules),
		"paths", len(jobs),
		"failures", failures,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"duration", time.Since(start),
	)
	if failures > 0 {
		a.logger.InfoContext(ctx, "program has unreachable paths",
			"failures", failures,
			"unsatisfiable_rules", len(report.Unsatisfiable()),
		)
	}
	return report, nil
}

// typeCheck resolves every comparison of the rule against the domain.
func (a *Analyzer) typeCheck(r ruleView) error {
	var walk func(stmts []types.IfStatement) error
	walk = func(stmts []types.IfStatement) error {
		for _, stmt := range stmts {
			for _, cmp := range stmt.Condition {
				if err := a.checkComparison(cmp); err != nil {
					return &TypeError{Rule: r.name, RuleIndex: r.index, LHS: cmp.LHS, Err: err}
				}
			}
			if err := walk(stmt.Nested); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(r.statements)
}

func (a *Analyzer) checkComparison(cmp types.Comparison) error {
	if _, err := a.domain.Values(cmp); err != nil {
		return err
	}
	op := cmp.Comparison
	switch cmp.Value.Kind {
	case types.KindNumber:
		return nil
	case types.KindNumberComparisonArray:
		if op != types.Equal {
			return fmt.Errorf("%w: %s on %s", ErrInvalidOperator, op, cmp.Value.Kind)
		}
		return nil
	default:
		if op != types.Equal && op != types.NotEqual {
			return fmt.Errorf("%w: %s on %s", ErrInvalidOperator, op, cmp.Value.Kind)
		}
		return nil
	}
}

// seed clones the knowledge template and adds a node for every value the
// program asserts. It returns the graph and the In aggregators by value set.
func (a *Analyzer) seed(rules []ruleView) (*graph.Graph, map[string]graph.NodeID, error) {
	b := a.knowledge.Clone()
	ins := make(map[string]graph.NodeID)

	var walk func(r ruleView, stmts []types.IfStatement) error
	walk = func(r ruleView, stmts []types.IfStatement) error {
		for _, stmt := range stmts {
			for _, cmp := range stmt.Condition {
				vals, err := a.domain.Values(cmp)
				if err != nil {
					return err
				}
				if isSet(cmp.Value.Kind) {
					k := setKey(cmp.LHS, vals)
					if _, ok := ins[k]; ok {
						continue
					}
					id, err := b.AddInAggregator(vals, r.name)
					if err != nil {
						return fmt.Errorf("rule %d (%s): %s: %w", r.index, r.name, cmp.LHS, err)
					}
					ins[k] = id
					continue
				}
				for _, v := range vals {
					b.AddValueNode(graph.ValueNode(v), "")
				}
			}
			if err := walk(r, stmt.Nested); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range rules {
		if err := walk(r, r.statements); err != nil {
			return nil, nil, err
		}
	}
	return b.Build(), ins, nil
}

// maxSetChoices bounds how many member combinations of one path are checked.
const maxSetChoices = 1024

// checkPath checks one conjunction. A positive set comparison needs only one
// of its members to hold, so members are tried as alternatives.
func (a *Analyzer) checkPath(g *graph.Graph, ins map[string]graph.NodeID, cond types.IfCondition) error {
	if err := conflicts(cond); err != nil {
		return err
	}

	base := make(graph.Assignment)
	var targets []graph.Target
	var sets [][]domain.DirValue
	positiveKeys := make(map[string]bool)

	for _, cmp := range cond {
		vals, err := a.domain.Values(cmp)
		if err != nil {
			return err
		}

		if isSet(cmp.Value.Kind) {
			id, ok := ins[setKey(cmp.LHS, vals)]
			if !ok {
				return fmt.Errorf("%w: no set node for %s", graph.ErrMalformedGraph, cmp.LHS)
			}
			if cmp.Comparison == types.NotEqual {
				targets = append(targets, graph.Target{Node: id, Relation: graph.Negative})
				continue
			}
			sets = append(sets, vals)
			positiveKeys[cmp.LHS] = true
			targets = append(targets, graph.Target{Node: id, Relation: graph.Positive})
			continue
		}

		// Number operators, including !=, are refinements asserted positively.
		negative := cmp.Comparison == types.NotEqual && cmp.Value.Kind != types.KindNumber
		for _, v := range vals {
			id, err := g.ValueNode(v)
			if err != nil {
				return err
			}
			if negative {
				targets = append(targets, graph.Target{Node: id, Relation: graph.Negative})
				continue
			}
			base.Add(v)
			positiveKeys[v.Key] = true
			targets = append(targets, graph.Target{Node: id, Relation: graph.Positive})
		}
	}

	for _, key := range slices.Sorted(maps.Keys(positiveKeys)) {
		if id, err := g.KeyNode(key); err == nil {
			targets = append(targets, graph.Target{Node: id, Relation: graph.Positive})
		}
	}
	if len(sets) == 0 {
		return g.CheckAssignment(base, targets, a.domains)
	}
	return a.checkChoices(g, base, sets, targets)
}

// checkChoices checks the path once per combination of set members, one member
// per set. The path holds if any combination holds; otherwise the first
// failure is returned. Combinations past maxSetChoices are not checked and the
// path is accepted.
func (a *Analyzer) checkChoices(g *graph.Graph, base graph.Assignment, sets [][]domain.DirValue, targets []graph.Target) error {
	pick := make([]int, len(sets))
	var first error
	for n := 0; n < maxSetChoices; n++ {
		if chosen, ok := choose(base, sets, pick); ok {
			assignment := cloneAssignment(base)
			for _, v := range chosen {
				assignment.Add(v)
			}
			err := g.CheckAssignment(assignment, targets, a.domains)
			if err == nil {
				return nil
			}
			if first == nil {
				first = err
			}
		}
		if !advance(pick, sets) {
			if first == nil {
				return fmt.Errorf("%w: no set member satisfies every comparison on its key", ErrConflictingAssertions)
			}
			return first
		}
	}
	a.logger.Debug("set member combinations exceed limit, path accepted", "limit", maxSetChoices)
	return nil
}

// choose returns the members selected by pick. ok is false when a member
// contradicts another assertion on its key.
func choose(base graph.Assignment, sets [][]domain.DirValue, pick []int) ([]domain.DirValue, bool) {
	chosen := make([]domain.DirValue, len(sets))
	for i, vals := range sets {
		v := vals[pick[i]]
		for _, b := range base[v.Key] {
			if !b.Fits(v) {
				return nil, false
			}
		}
		for _, c := range chosen[:i] {
			if c.Key == v.Key && c != v {
				return nil, false
			}
		}
		chosen[i] = v
	}
	return chosen, true
}

// advance steps pick to the next combination, reporting false after the last.
func advance(pick []int, sets [][]domain.DirValue) bool {
	for i := len(pick) - 1; i >= 0; i-- {
		pick[i]++
		if pick[i] < len(sets[i]) {
			return true
		}
		pick[i] = 0
	}
	return false
}

func cloneAssignment(a graph.Assignment) graph.Assignment {
	out := make(graph.Assignment, len(a))
	for k, vs := range a {
		out[k] = slices.Clone(vs)
	}
	return out
}

// isSet reports whether the kind compares against a set of values.
func isSet(k types.ValueKind) bool {
	return k == types.KindEnumVariantArray || k == types.KindNumberArray
}

func setKey(lhs string, vals []domain.DirValue) string {
	parts := make([]string, 0, len(vals)+1)
	parts = append(parts, lhs)
	for _, v := range vals {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "\x00")
}
