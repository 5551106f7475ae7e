// Package registry holds the routing program currently serving evaluations.
//
// Activation validates, analyzes and compiles a program off the hot path and
// then swaps a single pointer. Evaluations load that pointer once, so an
// evaluation observes exactly one program even while an activation runs, and
// a failed activation leaves the previous program serving.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solatis/routekeeper/internal/analyzer"
	"github.com/solatis/routekeeper/internal/core/metrics"
	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/graph"
	"github.com/solatis/routekeeper/internal/interpreter"
	"github.com/solatis/routekeeper/internal/types"
)

// ErrNoActiveProgram is returned by Evaluate before the first activation.
var ErrNoActiveProgram = errors.New("no active program")

// Active is an immutable snapshot of the serving program.
type Active[O any] struct {
	ProgramID   types.ProgramID
	Program     *types.Program[O]
	Graph       *graph.Graph
	Report      *analyzer.Report
	Interpreter interpreter.Interpreter[O]
	ActivatedAt time.Time
}

// Result is the outcome of one evaluation.
type Result[O any] struct {
	ProgramID types.ProgramID
	interpreter.Output[O]
}

type settings struct {
	logger              *slog.Logger
	metrics             *metrics.Metrics
	strategy            interpreter.Strategy
	threshold           int
	rejectUnsatisfiable bool
	now                 func() time.Time
}

// Option configures a Registry.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithStrategy sets the interpreter strategy and the auto threshold.
func WithStrategy(strategy interpreter.Strategy, threshold int) Option {
	return func(s *settings) {
		s.strategy = strategy
		s.threshold = threshold
	}
}

// WithRejectUnsatisfiable makes activation fail when a rule can never match.
func WithRejectUnsatisfiable(reject bool) Option {
	return func(s *settings) {
		s.rejectUnsatisfiable = reject
	}
}

// WithClock overrides the activation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// Registry serves one active program at a time.
type Registry[O any] struct {
	analyzer *analyzer.Analyzer
	domain   *domain.Domain
	cfg      settings

	// activations are serialised; evaluations never take this lock.
	mu     sync.Mutex
	active atomic.Pointer[Active[O]]
}

// New returns an empty registry. Programs are checked with a.
func New[O any](a *analyzer.Analyzer, opts ...Option) *Registry[O] {
	cfg := settings{
		logger:    slog.Default(),
		strategy:  interpreter.StrategyAuto,
		threshold: interpreter.AutoValuedThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry[O]{analyzer: a, domain: a.Domain(), cfg: cfg}
}

// Domain returns the domain evaluations are projected into.
func (r *Registry[O]) Domain() *domain.Domain { return r.domain }

// Active returns the serving snapshot, or nil before the first activation.
func (r *Registry[O]) Active() *Active[O] {
	return r.active.Load()
}

// Prepare validates, analyzes and compiles program without activating it.
func (r *Registry[O]) Prepare(ctx context.Context, id types.ProgramID, program *types.Program[O]) (*Active[O], error) {
	if program == nil {
		return nil, fmt.Errorf("program %s: nil program", id)
	}
	if err := program.Validate(); err != nil {
		return nil, fmt.Errorf("program %s: %w", id, err)
	}

	start := time.Now()
	report, err := analyzer.Analyze(ctx, r.analyzer, program)
	r.cfg.metrics.ObserveAnalyzeLatency(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", id, err)
	}
	if failures := report.Failures(); len(failures) > 0 {
		r.cfg.logger.WarnContext(ctx, "program analysis found unreachable paths",
			"program_id", id,
			"failures", len(failures),
			"explain", report.Explain(),
		)
		if r.cfg.rejectUnsatisfiable {
			if err := report.Err(); err != nil {
				return nil, fmt.Errorf("program %s: %w", id, err)
			}
		}
	}

	interp, err := interpreter.Select(r.cfg.strategy, program, r.cfg.threshold)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", id, err)
	}

	return &Active[O]{
		ProgramID:   id,
		Program:     program,
		Graph:       report.Graph,
		Report:      report,
		Interpreter: interp,
	}, nil
}

// Activate prepares program and makes it the serving program. On error the
// previous program stays active.
func (r *Registry[O]) Activate(ctx context.Context, id types.ProgramID, program *types.Program[O]) (*Active[O], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.Prepare(ctx, id, program)
	if err != nil {
		r.cfg.metrics.IncrementActivation("rejected")
		r.cfg.logger.ErrorContext(ctx, "program activation rejected",
			"program_id", id,
			"error", err,
		)
		return nil, err
	}

	snap.ActivatedAt = r.cfg.now()
	prev := r.active.Swap(snap)

	r.cfg.metrics.IncrementActivation("activated")
	r.cfg.metrics.SetActiveSince(snap.ActivatedAt)
	attrs := []any{
		"program_id", id,
		"rules", len(program.Rules),
		"strategy", snap.Interpreter.Strategy(),
		"cost", interpreter.ProgramCost(program),
	}
	if prev != nil {
		attrs = append(attrs, "previous_program_id", prev.ProgramID)
	}
	r.cfg.logger.InfoContext(ctx, "program activated", attrs...)
	return snap, nil
}

// Evaluate projects input into the domain and evaluates it against the
// serving program.
func (r *Registry[O]) Evaluate(ctx context.Context, input domain.Input) (Result[O], error) {
	dctx, err := r.domain.Project(input)
	if err != nil {
		return Result[O]{}, fmt.Errorf("project input: %w", err)
	}
	return r.EvaluateContext(ctx, dctx)
}

// EvaluateContext evaluates an already projected context. On an interpreter
// error the program default is returned together with the error, so callers
// that must route can still do so while the error is surfaced.
func (r *Registry[O]) EvaluateContext(ctx context.Context, dctx domain.Context) (Result[O], error) {
	snap := r.active.Load()
	if snap == nil {
		return Result[O]{}, ErrNoActiveProgram
	}

	strategy := string(snap.Interpreter.Strategy())
	start := time.Now()
	out, err := snap.Interpreter.Evaluate(dctx)
	elapsed := time.Since(start)

	if err != nil {
		r.cfg.metrics.ObserveEvaluation(strategy, metrics.OutcomeError, elapsed)
		attrs := []any{"program_id", snap.ProgramID, "error", err}
		var ie *interpreter.InterpreterError
		if errors.As(err, &ie) {
			r.cfg.metrics.IncrementError(string(ie.Type))
			attrs = append(attrs, slog.Any("metadata", ie.Metadata))
		}
		r.cfg.logger.ErrorContext(ctx, "program evaluation failed", attrs...)
		return Result[O]{
			ProgramID: snap.ProgramID,
			Output:    interpreter.Output[O]{Selection: *snap.Program.Default},
		}, err
	}

	outcome := metrics.OutcomeRule
	if out.IsDefault() {
		outcome = metrics.OutcomeDefault
	}
	r.cfg.metrics.ObserveEvaluation(strategy, outcome, elapsed)
	return Result[O]{ProgramID: snap.ProgramID, Output: out}, nil
}
