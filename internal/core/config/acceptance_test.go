package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// TestPrecedence verifies flags > environment > config file > defaults.
func TestPrecedence(t *testing.T) {
	t.Run("database credentials in config file rejected", func(t *testing.T) {
		path := writeConfig(t, "database:\n  url: postgres://rk:hunter2@db:5432/routekeeper\n")

		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("expected error for credentials in config file")
		}
		if err.Error() != "database credentials not allowed in config files (use RK_DATABASE_URL environment variable)" {
			t.Fatalf("wrong error message: %v", err)
		}
	})

	t.Run("database credentials from environment accepted", func(t *testing.T) {
		t.Setenv("RK_DATABASE_URL", "postgres://rk:hunter2@db:5432/routekeeper")
		path := writeConfig(t, "database:\n  url: postgres://rk@db:5432/routekeeper\n")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
		if cfg.Database.URL != "postgres://rk:hunter2@db:5432/routekeeper" {
			t.Errorf("expected environment URL, got %s", cfg.Database.URL)
		}
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		t.Setenv("RK_SERVER_PORT", "8080")
		path := writeConfig(t, "server:\n  port: 7070\n")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Fatalf("environment should override config file: expected 8080, got %d", cfg.Server.Port)
		}
	})

	t.Run("flag overrides environment", func(t *testing.T) {
		t.Setenv("RK_SERVER_PORT", "8080")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Int("port", 50051, "")
		if err := flags.Parse([]string{"--port=7000"}); err != nil {
			t.Fatal(err)
		}
		v := viper.New()
		if err := v.BindPFlag("server.port", flags.Lookup("port")); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadWith(v, "")
		if err != nil {
			t.Fatalf("LoadWith error: %v", err)
		}
		if cfg.Server.Port != 7000 {
			t.Fatalf("flag should override environment: expected 7000, got %d", cfg.Server.Port)
		}
	})
}
