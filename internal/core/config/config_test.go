package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routekeeper.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if diff := cmp.Diff(DefaultConfig(), cfg, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("LoadConfig(\"\") mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("RK_SERVER_PORT", "9999")
		t.Setenv("RK_SERVER_HOST", "127.0.0.1")
		t.Setenv("RK_ENGINE_STRATEGY", "valued")
		t.Setenv("RK_ENGINE_REJECT_UNSATISFIABLE", "true")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Server.Port != 9999 {
			t.Errorf("expected port 9999, got %d", cfg.Server.Port)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
		}
		if cfg.Engine.Strategy != "valued" || !cfg.Engine.RejectUnsatisfiable {
			t.Errorf("unexpected engine config %+v", cfg.Engine)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 6000
  metrics_port: 0
  request_timeout: 250ms
  reload_interval: 0s
engine:
  strategy: plain
  auto_threshold: 100
  constraints_file: /etc/routekeeper/constraints.yaml
  domains: [cards]
domain:
  keys:
    - name: merchant_tier
      type: enum_value
      variants: [gold, silver]
    - name: risk_score
      type: number
database:
  url: sqlite:///var/lib/routekeeper/programs.db
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		want := DefaultConfig()
		want.Server.Port = 6000
		want.Server.MetricsPort = 0
		want.Server.RequestTimeout = 250 * time.Millisecond
		want.Server.ReloadInterval = 0
		want.Engine.Strategy = "plain"
		want.Engine.AutoThreshold = 100
		want.Engine.ConstraintsFile = "/etc/routekeeper/constraints.yaml"
		want.Engine.Domains = []string{"cards"}
		want.Domain.Keys = []KeySpec{
			{Name: "merchant_tier", Type: "enum_value", Variants: []string{"gold", "silver"}},
			{Name: "risk_score", Type: "number"},
		}
		want.Database.URL = "sqlite:///var/lib/routekeeper/programs.db"
		if diff := cmp.Diff(want, cfg, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("LoadConfig mismatch (-want +got):\n%s", diff)
		}
	})

	invalid := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "port range", env: map[string]string{"RK_SERVER_PORT": "70000"}},
		{name: "metrics port clash", env: map[string]string{"RK_SERVER_PORT": "9090"}},
		{name: "negative timeout", env: map[string]string{"RK_SERVER_REQUEST_TIMEOUT": "-1s"}},
		{name: "negative reload interval", env: map[string]string{"RK_SERVER_RELOAD_INTERVAL": "-5s"}},
		{name: "unknown strategy", env: map[string]string{"RK_ENGINE_STRATEGY": "jit"}},
		{name: "negative threshold", env: map[string]string{"RK_ENGINE_AUTO_THRESHOLD": "-1"}},
		{name: "zero workers", env: map[string]string{"RK_ENGINE_ANALYSIS_WORKERS": "0"}},
		{name: "unnamed key", file: "domain:\n  keys:\n    - type: number\n"},
		{name: "unknown key type", file: "domain:\n  keys:\n    - name: tier\n      type: float\n"},
	}
	for _, tt := range invalid {
		t.Run("invalid "+tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}
