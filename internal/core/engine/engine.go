// Package engine assembles the routing engine from configuration and keeps it
// in step with the program store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/solatis/routekeeper/internal/analyzer"
	"github.com/solatis/routekeeper/internal/core/config"
	"github.com/solatis/routekeeper/internal/core/db"
	"github.com/solatis/routekeeper/internal/core/metrics"
	"github.com/solatis/routekeeper/internal/core/registry"
	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/interpreter"
	"github.com/solatis/routekeeper/internal/knowledge"
	"github.com/solatis/routekeeper/internal/types"
)

// Selection is the output payload served by the engine.
type Selection = types.ConnectorSelection

// Store is the program store the engine reads from.
type Store interface {
	Get(ctx context.Context, id types.ProgramID) (db.Record[Selection], error)
	Active(ctx context.Context) (db.Record[Selection], error)
	MarkActive(ctx context.Context, id types.ProgramID) error
}

// Engine bundles the domain, analyzer and registry built from one Config.
type Engine struct {
	Domain   *domain.Domain
	Analyzer *analyzer.Analyzer
	Registry *registry.Registry[Selection]

	logger *slog.Logger

	// last stored program that failed activation, so polling does not
	// retry it every tick
	mu       sync.Mutex
	rejected types.ProgramID
}

type settings struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures New.
type Option func(*settings)

// WithLogger sets the logger passed to every component.
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

// New builds the engine: domain keys, knowledge constraints, analyzer and an
// empty registry.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	d, err := BuildDomain(cfg.Domain.Keys)
	if err != nil {
		return nil, err
	}

	doc, err := knowledge.Load(cfg.Engine.ConstraintsFile)
	if err != nil {
		return nil, fmt.Errorf("load constraints: %w", err)
	}
	kb, err := knowledge.Compile(d, doc)
	if err != nil {
		return nil, fmt.Errorf("compile constraints: %w", err)
	}
	for _, name := range cfg.Engine.Domains {
		if !slices.ContainsFunc(doc.Domains, func(ds knowledge.DomainSpec) bool { return ds.Name == name }) {
			return nil, fmt.Errorf("engine.domains: %q is not declared in the constraints", name)
		}
	}

	strategy, err := interpreter.ParseStrategy(cfg.Engine.Strategy)
	if err != nil {
		return nil, err
	}

	a := analyzer.New(d, kb,
		analyzer.WithLogger(s.logger),
		analyzer.WithDomains(cfg.Engine.Domains...),
		analyzer.WithConcurrency(cfg.Engine.AnalysisWorkers),
	)
	reg := registry.New[Selection](a,
		registry.WithLogger(s.logger),
		registry.WithMetrics(s.metrics),
		registry.WithStrategy(strategy, cfg.Engine.AutoThreshold),
		registry.WithRejectUnsatisfiable(cfg.Engine.RejectUnsatisfiable),
	)

	return &Engine{
		Domain:   d,
		Analyzer: a,
		Registry: reg,
		logger:   s.logger,
	}, nil
}

// BuildDomain returns the built-in payment domain extended with keys, frozen.
func BuildDomain(keys []config.KeySpec) (*domain.Domain, error) {
	d := domain.DefaultDomain()
	for _, k := range keys {
		if err := d.Register(domain.DirKey{
			Name:     k.Name,
			Type:     domain.DataType(k.Type),
			Variants: k.Variants,
		}); err != nil {
			return nil, fmt.Errorf("domain key %s: %w", k.Name, err)
		}
	}
	return d.Freeze(), nil
}

// Activate loads a stored program, activates it and then records it as the
// active program. A program the registry rejects is never marked active.
func (e *Engine) Activate(ctx context.Context, store Store, id types.ProgramID) (*registry.Active[Selection], error) {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := e.Registry.Activate(ctx, rec.ID, rec.Program)
	if err != nil {
		return nil, err
	}
	if err := store.MarkActive(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("record activation: %w", err)
	}
	return snap, nil
}

// Sync activates the store's active program if it differs from the serving
// one. It reports whether a new program was activated.
func (e *Engine) Sync(ctx context.Context, store Store) (bool, error) {
	rec, err := store.Active(ctx)
	if errors.Is(err, db.ErrProgramNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cur := e.Registry.Active(); cur != nil && cur.ProgramID == rec.ID {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rejected == rec.ID {
		return false, nil
	}
	if _, err := e.Registry.Activate(ctx, rec.ID, rec.Program); err != nil {
		e.rejected = rec.ID
		return false, err
	}
	e.rejected = ""
	return true, nil
}

// Watch calls Sync every interval until ctx is done. Errors are logged; the
// serving program is kept.
func (e *Engine) Watch(ctx context.Context, store Store, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := e.Sync(ctx, store)
			if err != nil {
				e.logger.ErrorContext(ctx, "program reload failed", "error", err)
				continue
			}
			if changed {
				e.logger.InfoContext(ctx, "program reloaded", "program_id", e.Registry.Active().ProgramID)
			}
		}
	}
}
