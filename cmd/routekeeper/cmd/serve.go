package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/solatis/routekeeper/internal/core/api"
	"github.com/solatis/routekeeper/internal/core/engine"
	"github.com/solatis/routekeeper/internal/core/metrics"
	"github.com/solatis/routekeeper/internal/core/server"
	"github.com/solatis/routekeeper/internal/types"
)

var serveProgram string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC routing service",
	Long: `Start the gRPC routing service. The serving program is the store's active
program (polled every server.reload_interval) or, with --program, a program file.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 9090, "Prometheus metrics port (0 disables)")
	serveCmd.Flags().String("strategy", "auto", "interpreter strategy (plain, valued, auto)")
	serveCmd.Flags().Bool("strict", false, "reject programs with rules that can never match")
	serveCmd.Flags().StringVar(&serveProgram, "program", "", "serve this program file instead of the store")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(engine.WithMetrics(metrics.New(prometheus.DefaultRegisterer)))
	if err != nil {
		return err
	}

	switch {
	case serveProgram != "":
		p, err := readProgram(cmd, serveProgram)
		if err != nil {
			return err
		}
		if _, err := eng.Registry.Activate(ctx, types.NewProgramID(), p); err != nil {
			return fmt.Errorf("activate %s: %w", serveProgram, err)
		}
	case cfg.Database.URL != "":
		database, store, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		if _, err := eng.Sync(ctx, store); err != nil {
			return fmt.Errorf("activate stored program: %w", err)
		}
		if eng.Registry.Active() == nil {
			logger.WarnContext(ctx, "no active program in store; evaluations fail until one is activated")
		}
		go eng.Watch(ctx, store, cfg.Server.ReloadInterval)
	default:
		return fmt.Errorf("nothing to serve: set --db-url or --program")
	}

	svc, err := api.NewService(eng.Registry,
		api.WithTimeout(cfg.Server.RequestTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(cfg.Server, svc, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.InfoContext(ctx, "starting routekeeper",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"metrics_port", cfg.Server.MetricsPort,
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(context.Background())
	}
}
