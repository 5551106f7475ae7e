// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/solatis/routekeeper/internal/core/api"
	"github.com/solatis/routekeeper/internal/core/config"
)

// shutdownTimeout caps graceful stop when the caller's context has no deadline.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages the gRPC listener and the Prometheus metrics listener.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	metrics  *http.Server
	config   config.ServerConfig
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures a GRPCServer.
type Option func(*GRPCServer)

// WithLogger sets the logger used by the request interceptor.
func WithLogger(logger *slog.Logger) Option {
	return func(s *GRPCServer) {
		s.logger = logger
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *GRPCServer) {
		s.gatherer = g
	}
}

// NewGRPCServer creates a gRPC server with the Routing and health services.
func NewGRPCServer(cfg config.ServerConfig, service api.RoutingServer, opts ...Option) (*GRPCServer, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	s := &GRPCServer{
		config:   cfg,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(s.logger),
			loggingInterceptor(s.logger),
		),
	)
	api.RegisterRoutingServer(s.server, service)

	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(api.RoutingServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if cfg.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.MetricsHandler())
		s.metrics = &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.MetricsPort)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// MetricsHandler serves the Prometheus exposition format.
func (s *GRPCServer) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// Start binds both listeners and serves until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	if s.metrics != nil {
		go func() {
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.ErrorContext(ctx, "metrics listener failed", "addr", s.metrics.Addr, "error", err)
			}
		}()
	}

	s.logger.InfoContext(ctx, "grpc server listening", "addr", listener.Addr().String())
	return s.Serve(listener)
}

// Serve serves gRPC on an existing listener.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Shutdown marks the server not serving and stops gracefully, forcing a stop
// when ctx ends or shutdownTimeout elapses.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.WarnContext(ctx, "metrics listener shutdown", "error", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		level := slog.LevelDebug
		if code != codes.OK {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc request",
			"method", info.FullMethod,
			"code", code.String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}

// recoveryInterceptor turns a handler panic into codes.Internal.
func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "grpc handler panic", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
