package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solatis/routekeeper/internal/core/config"
	"github.com/solatis/routekeeper/internal/core/db"
	"github.com/solatis/routekeeper/internal/core/engine"
	"github.com/solatis/routekeeper/internal/core/logging"
	"github.com/solatis/routekeeper/internal/types"
)

// Version is reported by serve at startup.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	// set by PersistentPreRunE
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "routekeeper",
	Short: "Routekeeper payment routing policy engine",
	Long: `Routekeeper evaluates declarative payment routing programs and verifies,
before activation, that every rule is consistent with the payment domain.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and installs the process logger. Flags bound
// here take precedence over environment and file values.
func setup(cmd *cobra.Command, _ []string) error {
	l, err := logging.New(os.Stderr, logLevel, logFormat)
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(l)

	v := viper.New()
	bindings := map[string]string{
		"database.url":                "db-url",
		"server.host":                 "host",
		"server.port":                 "port",
		"server.metrics_port":         "metrics-port",
		"engine.strategy":             "strategy",
		"engine.reject_unsatisfiable": "strict",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	c, err := config.LoadWith(v, configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = c
	return nil
}

func newEngine(opts ...engine.Option) (*engine.Engine, error) {
	return engine.New(cfg, append([]engine.Option{engine.WithLogger(logger)}, opts...)...)
}

// openStore opens the configured database. The caller closes the returned DB.
func openStore(ctx context.Context) (*sqlx.DB, *db.Store[engine.Selection], error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL required (--db-url or RK_DATABASE_URL)")
	}
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	store, err := db.NewStore[engine.Selection](database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, store, nil
}

// readProgram decodes a program from path, or stdin when path is "-".
func readProgram(cmd *cobra.Command, path string) (*types.Program[engine.Selection], error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var p types.Program[engine.Selection]
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode program %s: %w", path, err)
	}
	return &p, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func contextWithTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
}
