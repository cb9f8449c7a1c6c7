package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Runner.StageTimeout != 10*time.Minute {
		t.Errorf("expected stage timeout 10m, got %v", cfg.Runner.StageTimeout)
	}
	if cfg.Runner.Branch != "feature/commandforge" {
		t.Errorf("unexpected default branch %s", cfg.Runner.Branch)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
runner:
  max_concurrent: 8
  stage_timeout: 30s
  tool: "mytool"
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Runner.MaxConcurrent != 8 {
		t.Errorf("expected max_concurrent 8, got %d", cfg.Runner.MaxConcurrent)
	}
	if cfg.Runner.StageTimeout != 30*time.Second {
		t.Errorf("expected stage timeout 30s, got %v", cfg.Runner.StageTimeout)
	}
	if cfg.Runner.Tool != "mytool" {
		t.Errorf("expected tool mytool, got %s", cfg.Runner.Tool)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COMMANDFORGE_PORT", "7070")
	t.Setenv("COMMANDFORGE_STAGE_TIMEOUT", "1m")
	t.Setenv("COMMANDFORGE_AUTH_ENABLED", "true")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Runner.StageTimeout != time.Minute {
		t.Errorf("expected stage timeout 1m, got %v", cfg.Runner.StageTimeout)
	}
	if !cfg.Auth.Enabled {
		t.Error("expected auth enabled")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}

	cfg.Runner.MaxConcurrent = 0
	if err := validate(&cfg); err == nil {
		t.Error("expected error for zero max_concurrent")
	}

	cfg = Defaults()
	cfg.Runner.Tool = ""
	if err := validate(&cfg); err == nil {
		t.Error("expected error for empty tool")
	}
}
