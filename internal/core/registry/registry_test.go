package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/solatis/routekeeper/internal/analyzer"
	"github.com/solatis/routekeeper/internal/core/metrics"
	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/interpreter"
	"github.com/solatis/routekeeper/internal/knowledge"
	"github.com/solatis/routekeeper/internal/types"
)

type program = types.Program[types.ConnectorSelection]

func eq(lhs string, v types.ValueType) types.Comparison {
	return types.Comparison{LHS: lhs, Comparison: types.Equal, Value: v}
}

func strp(s string) *string { return &s }
func i64p(n int64) *int64   { return &n }

// cardProgram routes cards of the given amount to connector.
func cardProgram(connector string, amount int64) *program {
	def := types.Priority("adyen", "checkout")
	return &program{
		Default: &def,
		Rules: []types.Rule[types.ConnectorSelection]{{
			Name:      connector + "_cards",
			Selection: types.Priority(connector),
			Statements: []types.IfStatement{{
				Condition: types.IfCondition{
					eq(domain.KeyPaymentMethod, types.EnumVariant("card")),
					eq(domain.KeyAmount, types.Number(amount)),
				},
			}},
		}},
	}
}

func newRegistry(t *testing.T, opts ...Option) (*Registry[types.ConnectorSelection], *metrics.Metrics) {
	t.Helper()
	d := domain.DefaultDomain()
	b, err := knowledge.Compile(d, knowledge.Default())
	if err != nil {
		t.Fatalf("knowledge.Compile() error = %v", err)
	}
	m := metrics.New(prometheus.NewRegistry())
	opts = append([]Option{WithMetrics(m)}, opts...)
	return New[types.ConnectorSelection](analyzer.New(d, b), opts...), m
}

func cardInput(amount int64) domain.Input {
	return domain.Input{
		Payment:       domain.PaymentInput{Amount: i64p(amount)},
		PaymentMethod: domain.PaymentMethodInput{PaymentMethod: strp("card")},
	}
}

func TestRegistry_EvaluateBeforeActivation(t *testing.T) {
	r, _ := newRegistry(t)
	if r.Active() != nil {
		t.Fatalf("Active() = %+v, want nil", r.Active())
	}
	if _, err := r.Evaluate(context.Background(), cardInput(40)); !errors.Is(err, ErrNoActiveProgram) {
		t.Errorf("Evaluate() error = %v, want ErrNoActiveProgram", err)
	}
}

func TestRegistry_ActivateAndEvaluate(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r, m := newRegistry(t, WithClock(func() time.Time { return at }))
	ctx := context.Background()
	id := types.NewProgramID()

	snap, err := r.Activate(ctx, id, cardProgram("stripe", 40))
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if snap.ProgramID != id || !snap.ActivatedAt.Equal(at) || snap.Graph == nil {
		t.Errorf("Activate() = %+v", snap)
	}
	if r.Active() != snap {
		t.Errorf("Active() is not the activated snapshot")
	}

	res, err := r.Evaluate(ctx, cardInput(40))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.RuleName != "stripe_cards" || res.ProgramID != id {
		t.Errorf("Evaluate() = %+v, want stripe_cards from %s", res, id)
	}

	res, err = r.Evaluate(ctx, cardInput(41))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !res.IsDefault() || res.Selection.Connectors()[0] != "adyen" {
		t.Errorf("Evaluate(41) = %+v, want default", res)
	}

	strategy := string(snap.Interpreter.Strategy())
	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues(strategy, metrics.OutcomeRule)); got != 1 {
		t.Errorf("rule evaluations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues(strategy, metrics.OutcomeDefault)); got != 1 {
		t.Errorf("default evaluations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Activations.WithLabelValues("activated")); got != 1 {
		t.Errorf("activations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveSince); got != float64(at.Unix()) {
		t.Errorf("ActiveSince = %v, want %v", got, at.Unix())
	}
}

func TestRegistry_RejectedActivationKeepsPrevious(t *testing.T) {
	unknownKey := cardProgram("stripe", 40)
	unknownKey.Rules[0].Statements[0].Condition = append(unknownKey.Rules[0].Statements[0].Condition,
		eq("legacy_flag", types.EnumVariant("on")))

	missingDefault := cardProgram("stripe", 40)
	missingDefault.Default = nil

	tests := []struct {
		name    string
		program *program
		wantErr error
	}{
		{name: "nil program"},
		{name: "missing default", program: missingDefault, wantErr: types.ErrMissingDefault},
		{name: "unknown key", program: unknownKey, wantErr: domain.ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRegistry(t)
			ctx := context.Background()
			first, err := r.Activate(ctx, types.NewProgramID(), cardProgram("aci", 40))
			if err != nil {
				t.Fatalf("Activate(first) error = %v", err)
			}

			_, err = r.Activate(ctx, types.NewProgramID(), tt.program)
			if err == nil {
				t.Fatalf("Activate() error = nil, want rejection")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Activate() error = %v, want %v", err, tt.wantErr)
			}
			if r.Active() != first {
				t.Errorf("Active() changed after rejected activation")
			}
			if got := testutil.ToFloat64(m.Activations.WithLabelValues("rejected")); got != 1 {
				t.Errorf("rejected activations = %v, want 1", got)
			}

			res, err := r.Evaluate(ctx, cardInput(40))
			if err != nil || res.RuleName != "aci_cards" {
				t.Errorf("Evaluate() = %+v, %v; want aci_cards", res, err)
			}
		})
	}
}

func unsatisfiable() *program {
	p := cardProgram("stripe", 40)
	p.Rules[0].Statements[0].Condition = append(p.Rules[0].Statements[0].Condition,
		eq(domain.KeyPaymentMethod, types.EnumVariant("wallet")))
	return p
}

func TestRegistry_UnsatisfiableRules(t *testing.T) {
	ctx := context.Background()

	advisory, _ := newRegistry(t)
	snap, err := advisory.Activate(ctx, types.NewProgramID(), unsatisfiable())
	if err != nil {
		t.Fatalf("Activate() error = %v, want advisory findings only", err)
	}
	if len(snap.Report.Failures()) != 1 {
		t.Errorf("Report.Failures() = %v, want 1", snap.Report.Failures())
	}

	strict, _ := newRegistry(t, WithRejectUnsatisfiable(true))
	if _, err := strict.Activate(ctx, types.NewProgramID(), unsatisfiable()); !errors.Is(err, analyzer.ErrUnsatisfiable) {
		t.Errorf("Activate() error = %v, want ErrUnsatisfiable", err)
	}
	if strict.Active() != nil {
		t.Errorf("Active() = %+v, want nil", strict.Active())
	}
}

func TestRegistry_Strategy(t *testing.T) {
	tests := []struct {
		strategy  interpreter.Strategy
		threshold int
		want      interpreter.Strategy
	}{
		{interpreter.StrategyPlain, 0, interpreter.StrategyPlain},
		{interpreter.StrategyValued, 0, interpreter.StrategyValued},
		{interpreter.StrategyAuto, 0, interpreter.StrategyValued},
		{interpreter.StrategyAuto, interpreter.AutoValuedThreshold, interpreter.StrategyPlain},
	}
	for _, tt := range tests {
		r, _ := newRegistry(t, WithStrategy(tt.strategy, tt.threshold))
		snap, err := r.Activate(context.Background(), types.NewProgramID(), cardProgram("stripe", 40))
		if err != nil {
			t.Fatalf("Activate() error = %v", err)
		}
		if got := snap.Interpreter.Strategy(); got != tt.want {
			t.Errorf("%s/%d: Strategy() = %s, want %s", tt.strategy, tt.threshold, got, tt.want)
		}
	}
}

func TestRegistry_InterpreterErrorFallsBackToDefault(t *testing.T) {
	r, m := newRegistry(t, WithStrategy(interpreter.StrategyPlain, 0))
	ctx := context.Background()
	if _, err := r.Activate(ctx, types.NewProgramID(), cardProgram("stripe", 40)); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	// A context from a narrower domain does not know the amount key.
	narrow := domain.New().MustRegister(domain.DirKey{
		Name: domain.KeyPaymentMethod, Type: domain.EnumValue, Variants: []string{"card"},
	})
	dctx := narrow.NewContext().MustSet(domain.KeyPaymentMethod, types.EnumVariant("card")).Build()

	res, err := r.EvaluateContext(ctx, dctx)
	if !errors.Is(err, interpreter.ErrInvalidKey) {
		t.Fatalf("EvaluateContext() error = %v, want ErrInvalidKey", err)
	}
	if !res.IsDefault() || res.Selection.Connectors()[0] != "adyen" {
		t.Errorf("EvaluateContext() = %+v, want default selection", res)
	}
	if got := testutil.ToFloat64(m.EvaluationErrors.WithLabelValues(string(interpreter.ErrorInvalidKey))); got != 1 {
		t.Errorf("evaluation errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("plain", metrics.OutcomeError)); got != 1 {
		t.Errorf("error evaluations = %v, want 1", got)
	}
}

func TestRegistry_ProjectError(t *testing.T) {
	r, _ := newRegistry(t)
	if _, err := r.Activate(context.Background(), types.NewProgramID(), cardProgram("stripe", 40)); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	in := cardInput(40)
	in.Metadata = types.Metadata{strings.Repeat("k", types.MaxMetadataKeyLength+1): "v"}
	if _, err := r.Evaluate(context.Background(), in); !errors.Is(err, types.ErrMetadataKeyTooLong) {
		t.Errorf("Evaluate() error = %v, want ErrMetadataKeyTooLong", err)
	}
}

func TestRegistry_ConcurrentActivation(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	programs := map[types.ProgramID]string{}
	ids := []types.ProgramID{types.NewProgramID(), types.NewProgramID()}
	for i, conn := range []string{"stripe", "aci"} {
		programs[ids[i]] = conn + "_cards"
	}
	if _, err := r.Activate(ctx, ids[0], cardProgram("stripe", 40)); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				res, err := r.Evaluate(ctx, cardInput(40))
				if err != nil {
					errs <- err
					return
				}
				if want := programs[res.ProgramID]; res.RuleName != want {
					errs <- errors.New("result " + res.RuleName + " does not belong to " + string(res.ProgramID))
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		conn := []string{"stripe", "aci"}[i%2]
		if _, err := r.Activate(ctx, ids[i%2], cardProgram(conn, 40)); err != nil {
			t.Fatalf("Activate() error = %v", err)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
