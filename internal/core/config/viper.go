package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/interpreter"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	return load(viper.New(), configPath)
}

// LoadWith is LoadConfig on a caller supplied viper instance, so CLI flags
// bound with BindPFlag take precedence.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	return load(v, configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	def := DefaultConfig()

	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.metrics_port", def.Server.MetricsPort)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("server.reload_interval", def.Server.ReloadInterval.String())
	v.SetDefault("engine.strategy", def.Engine.Strategy)
	v.SetDefault("engine.auto_threshold", def.Engine.AutoThreshold)
	v.SetDefault("engine.constraints_file", "")
	v.SetDefault("engine.reject_unsatisfiable", false)
	v.SetDefault("engine.domains", []string{})
	v.SetDefault("engine.analysis_workers", def.Engine.AnalysisWorkers)
	v.SetDefault("database.url", "")

	// Bind environment variables with RK_ prefix
	v.SetEnvPrefix("RK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Credentials are environment-only (12-factor)
	if err := validateNoSecretsInConfig(configPath); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MetricsPort:    v.GetInt("server.metrics_port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			ReloadInterval: v.GetDuration("server.reload_interval"),
		},
		Engine: EngineConfig{
			Strategy:            v.GetString("engine.strategy"),
			AutoThreshold:       v.GetInt("engine.auto_threshold"),
			ConstraintsFile:     v.GetString("engine.constraints_file"),
			RejectUnsatisfiable: v.GetBool("engine.reject_unsatisfiable"),
			Domains:             v.GetStringSlice("engine.domains"),
			AnalysisWorkers:     v.GetInt("engine.analysis_workers"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
	}
	if err := v.UnmarshalKey("domain.keys", &cfg.Domain.Keys); err != nil {
		return nil, fmt.Errorf("domain.keys: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig checks port ranges, positive timeouts and the engine settings.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0 and 65535, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.MetricsPort != 0 && cfg.Server.MetricsPort == cfg.Server.Port {
		return fmt.Errorf("metrics_port must differ from port %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.ReloadInterval < 0 {
		return fmt.Errorf("reload_interval must not be negative, got %v", cfg.Server.ReloadInterval)
	}
	if _, err := interpreter.ParseStrategy(cfg.Engine.Strategy); err != nil {
		return err
	}
	if cfg.Engine.AutoThreshold < 0 {
		return fmt.Errorf("auto_threshold must not be negative, got %d", cfg.Engine.AutoThreshold)
	}
	if cfg.Engine.AnalysisWorkers <= 0 {
		return fmt.Errorf("analysis_workers must be positive, got %d", cfg.Engine.AnalysisWorkers)
	}
	for i, k := range cfg.Domain.Keys {
		if k.Name == "" {
			return fmt.Errorf("domain key %d: name is required", i)
		}
		if !domain.DataType(k.Type).Valid() {
			return fmt.Errorf("domain key %s: unknown type %q", k.Name, k.Type)
		}
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only database credentials.
// The file is read on its own so an environment URL is not mistaken for it.
func validateNoSecretsInConfig(configPath string) error {
	if configPath == "" {
		return nil
	}
	fv := viper.New()
	fv.SetConfigFile(configPath)
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	u, err := url.Parse(fv.GetString("database.url"))
	if err != nil {
		return nil
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database credentials not allowed in config files (use RK_DATABASE_URL environment variable)")
	}
	return nil
}
