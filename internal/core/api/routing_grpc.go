package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names of the routing API. Messages are well-known
// protobuf types so clients need no generated stubs.
const (
	RoutingServiceName    = "routekeeper.v1.Routing"
	RoutingEvaluateMethod = "/routekeeper.v1.Routing/Evaluate"
	RoutingStatusMethod   = "/routekeeper.v1.Routing/Status"
)

// RoutingServer is the server API for the Routing service.
type RoutingServer interface {
	// Evaluate routes one payment. The request is the Input object, the
	// response carries the matched rule and connector selection.
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Status describes the serving program.
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterRoutingServer registers srv with s.
func RegisterRoutingServer(s grpc.ServiceRegistrar, srv RoutingServer) {
	s.RegisterService(&RoutingServiceDesc, srv)
}

// RoutingServiceDesc is the grpc.ServiceDesc for the Routing service.
var RoutingServiceDesc = grpc.ServiceDesc{
	ServiceName: RoutingServiceName,
	HandlerType: (*RoutingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "routekeeper/v1/routing.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoutingServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RoutingEvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoutingServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoutingServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RoutingStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoutingServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// RoutingClient is the client API for the Routing service.
type RoutingClient struct {
	cc grpc.ClientConnInterface
}

// NewRoutingClient returns a client over cc.
func NewRoutingClient(cc grpc.ClientConnInterface) *RoutingClient {
	return &RoutingClient{cc: cc}
}

// Evaluate calls Routing/Evaluate.
func (c *RoutingClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RoutingEvaluateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Status calls Routing/Status.
func (c *RoutingClient) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RoutingStatusMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
