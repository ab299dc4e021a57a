package config

import (
	"path/filepath"
	"testing"
)

func TestConfigLoad_LocalDefaults(t *testing.T) {
	t.Setenv("PROMPTGUILD_BUILD_TARGET", "local")
	t.Setenv("PROMPTGUILD_DB_DRIVER", "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected sqlite driver for local target, got %s", cfg.DBDriver)
	}
	if cfg.SQLitePath != filepath.Join("data", "promptguild.db") {
		t.Fatalf("unexpected default sqlite path: %s", cfg.SQLitePath)
	}
	if cfg.AuthMode != "dev" || cfg.AIModel != "gpt-4o-mini" || cfg.TxMaxAttempts != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigLoad_CloudUsesPostgres(t *testing.T) {
	t.Setenv("PROMPTGUILD_BUILD_TARGET", "cloud-dev")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("expected postgres driver for cloud-dev, got %s", cfg.DBDriver)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("PROMPTGUILD_AI_MODEL", "test-model")
	t.Setenv("PROMPTGUILD_HTTP_PORT", "9999")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.AIModel != "test-model" || cfg.HTTPPort != 9999 {
		t.Fatalf("env override failed: model=%s port=%d", cfg.AIModel, cfg.HTTPPort)
	}
	if cfg.GetHTTPAddr() != ":9999" {
		t.Fatalf("unexpected http addr %s", cfg.GetHTTPAddr())
	}
}

func TestResolveDefaults_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown target": func(c *Config) { c.BuildTarget = "mars" },
		"unknown driver": func(c *Config) { c.DBDriver = "mysql" },
		"jwt no secret":  func(c *Config) { c.AuthMode = "jwt" },
		"oidc no issuer": func(c *Config) { c.AuthMode = "oidc" },
		"dev in prod":    func(c *Config) { c.Environment = EnvProduction },
		"unknown auth":   func(c *Config) { c.AuthMode = "ldap" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewForTesting()
			mutate(cfg)
			if err := cfg.ResolveDefaults(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("testing config should resolve: %v", err)
	}
	if !cfg.IsTesting() || cfg.IsProduction() || cfg.AIConfigured() {
		t.Fatalf("unexpected testing flags: %+v", cfg)
	}
}
