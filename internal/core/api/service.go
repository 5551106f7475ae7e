// Package api provides the gRPC Routing service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/routekeeper/internal/core/registry"
	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/graph"
	"github.com/solatis/routekeeper/internal/interpreter"
	"github.com/solatis/routekeeper/internal/types"
)

// DefaultRequestTimeout bounds a single Evaluate call.
const DefaultRequestTimeout = 5 * time.Second

// Router is the part of the registry the service depends on.
type Router interface {
	Evaluate(ctx context.Context, input domain.Input) (registry.Result[types.ConnectorSelection], error)
	Active() *registry.Active[types.ConnectorSelection]
}

// Service implements RoutingServer.
// Thin layer translating between structpb messages and the registry.
type Service struct {
	router  Router
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the per-request evaluation deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the Routing service over router.
func NewService(router Router, opts ...Option) (*Service, error) {
	if router == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}
	s := &Service{
		router:  router,
		timeout: DefaultRequestTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluate decodes the request into an Input and routes it. An interpreter
// error is not a transport failure: the response carries the default
// selection and the error text.
func (s *Service) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input, err := DecodeInput(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	res, err := s.router.Evaluate(ctx, input)
	var ie *interpreter.InterpreterError
	if err != nil && !errors.As(err, &ie) {
		return nil, toStatus(err)
	}

	out, encErr := EncodeResult(res, err)
	if encErr != nil {
		s.logger.ErrorContext(ctx, "failed to encode evaluation result", "error", encErr)
		return nil, status.Error(codes.Internal, encErr.Error())
	}
	return out, nil
}

// Status reports the serving program, or active=false before activation.
func (s *Service) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.router.Active()
	if snap == nil {
		return structpb.NewStruct(map[string]any{"active": false})
	}

	fields := map[string]any{
		"active":       true,
		"program_id":   string(snap.ProgramID),
		"activated_at": snap.ActivatedAt.UTC().Format(time.RFC3339Nano),
		"rules":        len(snap.Program.Rules),
		"strategy":     string(snap.Interpreter.Strategy()),
		"cost":         interpreter.ProgramCost(snap.Program),
	}
	if snap.Report != nil {
		fields["unsatisfiable_rules"] = len(snap.Report.Unsatisfiable())
		fields["path_failures"] = len(snap.Report.Failures())
	}
	if snap.Graph != nil {
		st := snap.Graph.Stats()
		fields["graph"] = graphFields(st)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func graphFields(st graph.Stats) map[string]any {
	return map[string]any{
		"nodes":   st.Nodes,
		"edges":   st.Edges,
		"domains": st.Domains,
	}
}

// DecodeInput converts a request struct into an Input. Unknown attributes are
// ignored.
func DecodeInput(req *structpb.Struct) (domain.Input, error) {
	var input domain.Input
	if req == nil {
		return input, nil
	}
	raw, err := protojson.Marshal(req)
	if err != nil {
		return input, fmt.Errorf("encode request: %w", err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, fmt.Errorf("decode request: %w", err)
	}
	return input, nil
}

// EncodeResult builds the Evaluate response. evalErr, when set, is reported
// alongside the fallback selection.
func EncodeResult(res registry.Result[types.ConnectorSelection], evalErr error) (*structpb.Struct, error) {
	raw, err := json.Marshal(res.Selection)
	if err != nil {
		return nil, fmt.Errorf("encode selection: %w", err)
	}
	var selection map[string]any
	if err := json.Unmarshal(raw, &selection); err != nil {
		return nil, fmt.Errorf("encode selection: %w", err)
	}

	fields := map[string]any{
		"program_id": string(res.ProgramID),
		"default":    res.IsDefault(),
		"selection":  selection,
	}
	if res.RuleName != "" {
		fields["rule_name"] = res.RuleName
	}
	if evalErr != nil {
		fields["error"] = evalErr.Error()
	}
	return structpb.NewStruct(fields)
}

// DecodeResult is EncodeResult's inverse, for clients.
func DecodeResult(resp *structpb.Struct) (ruleName string, selection types.ConnectorSelection, evalErr string, err error) {
	fields := resp.GetFields()
	ruleName = fields["rule_name"].GetStringValue()
	evalErr = fields["error"].GetStringValue()

	sel := fields["selection"].GetStructValue()
	if sel == nil {
		return "", selection, "", fmt.Errorf("response has no selection")
	}
	raw, err := protojson.Marshal(sel)
	if err != nil {
		return "", selection, "", err
	}
	if err := json.Unmarshal(raw, &selection); err != nil {
		return "", selection, "", fmt.Errorf("decode selection: %w", err)
	}
	return ruleName, selection, evalErr, nil
}
