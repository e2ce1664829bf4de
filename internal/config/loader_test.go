package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoader_Defaults(t *testing.T) {
	isolate(t)

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "auto" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "auto")
	}
	if cfg.Paths.Logs != "" {
		t.Errorf("Paths.Logs = %q, want empty (fallback chain)", cfg.Paths.Logs)
	}
	if want := filepath.Join(".lifeline", "artifacts.db"); cfg.Diagnostics.Index != want {
		t.Errorf("Diagnostics.Index = %q, want %q", cfg.Diagnostics.Index, want)
	}
	if cfg.Diagnostics.MaxFiles != 50 {
		t.Errorf("Diagnostics.MaxFiles = %d, want 50", cfg.Diagnostics.MaxFiles)
	}
	if !cfg.Diagnostics.IncludeEnv {
		t.Error("Diagnostics.IncludeEnv = false, want true")
	}
	if cfg.Supervise.GracefulTimeout != time.Second {
		t.Errorf("Supervise.GracefulTimeout = %v, want 1s", cfg.Supervise.GracefulTimeout)
	}
	if cfg.Supervise.PollInterval != 10*time.Millisecond {
		t.Errorf("Supervise.PollInterval = %v, want 10ms", cfg.Supervise.PollInterval)
	}
	if cfg.Supervise.HardTimeout != time.Second {
		t.Errorf("Supervise.HardTimeout = %v, want 1s", cfg.Supervise.HardTimeout)
	}
	if cfg.Supervise.DefaultRetryBudget != 0 {
		t.Errorf("Supervise.DefaultRetryBudget = %d, want 0", cfg.Supervise.DefaultRetryBudget)
	}
	if cfg.Server.Addr != "127.0.0.1:8640" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:8640")
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("LIFELINE_LOG_LEVEL", "debug")
	t.Setenv("LIFELINE_SUPERVISE_GRACEFUL_TIMEOUT", "250ms")
	t.Setenv("LIFELINE_DIAGNOSTICS_MAX_FILES", "7")

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Supervise.GracefulTimeout != 250*time.Millisecond {
		t.Errorf("Supervise.GracefulTimeout = %v, want 250ms", cfg.Supervise.GracefulTimeout)
	}
	if cfg.Diagnostics.MaxFiles != 7 {
		t.Errorf("Diagnostics.MaxFiles = %d, want 7", cfg.Diagnostics.MaxFiles)
	}
}

func TestLoader_ProjectConfigFile(t *testing.T) {
	isolate(t)

	configContent := `
log:
  level: warn
  format: json
paths:
  logs: outputs/logs
supervise:
  graceful_timeout: 3s
  default_retry_budget: 2
server:
  addr: "0.0.0.0:9000"
`
	if err := os.WriteFile(".lifeline.yaml", []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing project config: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Paths.Logs != "outputs/logs" {
		t.Errorf("Paths.Logs = %q, want %q", cfg.Paths.Logs, "outputs/logs")
	}
	if cfg.Supervise.GracefulTimeout != 3*time.Second {
		t.Errorf("Supervise.GracefulTimeout = %v, want 3s", cfg.Supervise.GracefulTimeout)
	}
	if cfg.Supervise.DefaultRetryBudget != 2 {
		t.Errorf("Supervise.DefaultRetryBudget = %d, want 2", cfg.Supervise.DefaultRetryBudget)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "0.0.0.0:9000")
	}
	// Defaults still fill the gaps.
	if cfg.Supervise.PollInterval != 10*time.Millisecond {
		t.Errorf("Supervise.PollInterval = %v, want default 10ms", cfg.Supervise.PollInterval)
	}

	if loader.ConfigFile() == "" {
		t.Error("ConfigFile() is empty after reading a project config")
	}
}

func TestLoader_ExplicitConfigFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "error")
	}
}

func TestLoader_MalformedConfigFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log: [unclosed"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Fatal("Load() accepted malformed YAML")
	}
}

func TestLoader_EnvPrefixOverride(t *testing.T) {
	isolate(t)
	t.Setenv("RESCUE_LOG_LEVEL", "fatal")

	cfg, err := NewLoader().WithEnvPrefix("RESCUE").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "fatal" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "fatal")
	}
}
