// Package config provides configuration management for routekeeper services.
package config

import (
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Domain   DomainConfig
	Database DatabaseConfig
}

// ServerConfig holds configuration for the gRPC routing service.
type ServerConfig struct {
	Host           string
	Port           int
	MetricsPort    int
	RequestTimeout time.Duration

	// How often serve polls the store for a newly activated program; 0 disables
	ReloadInterval time.Duration
}

// EngineConfig controls program activation and evaluation.
type EngineConfig struct {
	// Interpreter strategy: plain, valued or auto
	Strategy string

	// Program cost above which auto picks the valued interpreter
	AutoThreshold int

	// Constraints YAML file; empty uses the built-in knowledge
	ConstraintsFile string

	// Reject activation when a rule can never match
	RejectUnsatisfiable bool

	// Knowledge domains applied during analysis; empty applies all
	Domains []string

	// Concurrent path checks during analysis
	AnalysisWorkers int
}

// DomainConfig extends the built-in payment vocabulary.
type DomainConfig struct {
	Keys []KeySpec
}

// KeySpec declares an additional domain key.
type KeySpec struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"`
	Variants []string `mapstructure:"variants"`
}

// DatabaseConfig locates the program store.
type DatabaseConfig struct {
	URL string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MetricsPort:    9090,
			RequestTimeout: 5 * time.Second,
			ReloadInterval: 30 * time.Second,
		},
		Engine: EngineConfig{
			Strategy:        "auto",
			AutoThreshold:   4096,
			AnalysisWorkers: 8,
		},
	}
}
