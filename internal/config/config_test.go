package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netplane-oss/gwlbtun/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Geneve.Port != 6081 {
		t.Errorf("Geneve.Port = %d, want 6081", cfg.Geneve.Port)
	}

	if cfg.Health.Port != 8080 {
		t.Errorf("Health.Port = %d, want 8080", cfg.Health.Port)
	}

	if cfg.Flow.Timeout != 350*time.Second {
		t.Errorf("Flow.Timeout = %v, want %v", cfg.Flow.Timeout, 350*time.Second)
	}

	if cfg.Flow.TCPNonSynBlock {
		t.Error("Flow.TCPNonSynBlock = true, want false")
	}

	if cfg.Flow.TCPImmediateClean {
		t.Error("Flow.TCPImmediateClean = true, want false")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Mode != config.ModeRaw {
		t.Errorf("Mode = %q, want %q", cfg.Mode, config.ModeRaw)
	}

	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9090")
	}

	if cfg.Checksum.Offload {
		t.Error("Checksum.Offload = true, want false")
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
geneve:
  port: 16081
health:
  port: 8090
flow:
  timeout: "1m"
  tcp_nonsyn_block: true
  tcp_immediate_clean: true
log:
  level: "debug"
mode: "udp"
checksum:
  offload: true
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Geneve.Port != 16081 {
		t.Errorf("Geneve.Port = %d, want 16081", cfg.Geneve.Port)
	}
	if cfg.Health.Port != 8090 {
		t.Errorf("Health.Port = %d, want 8090", cfg.Health.Port)
	}
	if cfg.Flow.Timeout != time.Minute {
		t.Errorf("Flow.Timeout = %v, want %v", cfg.Flow.Timeout, time.Minute)
	}
	if !cfg.Flow.TCPNonSynBlock {
		t.Error("Flow.TCPNonSynBlock = false, want true")
	}
	if !cfg.Flow.TCPImmediateClean {
		t.Error("Flow.TCPImmediateClean = false, want true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Mode != config.ModeUDP {
		t.Errorf("Mode = %q, want %q", cfg.Mode, config.ModeUDP)
	}
	if !cfg.Checksum.Offload {
		t.Error("Checksum.Offload = false, want true")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override geneve.port and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
geneve:
  port: 7000
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Geneve.Port != 7000 {
		t.Errorf("Geneve.Port = %d, want 7000", cfg.Geneve.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	if cfg.Health.Port != 8080 {
		t.Errorf("Health.Port = %d, want default 8080", cfg.Health.Port)
	}
	if cfg.Mode != config.ModeRaw {
		t.Errorf("Mode = %q, want default %q", cfg.Mode, config.ModeRaw)
	}
	if cfg.Flow.Timeout != 350*time.Second {
		t.Errorf("Flow.Timeout = %v, want default %v", cfg.Flow.Timeout, 350*time.Second)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Geneve.Port != 6081 {
		t.Errorf("Geneve.Port = %d, want default 6081", cfg.Geneve.Port)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "zero geneve port",
			modify: func(cfg *config.Config) {
				cfg.Geneve.Port = 0
			},
			wantErr: config.ErrInvalidGenevePort,
		},
		{
			name: "zero health port",
			modify: func(cfg *config.Config) {
				cfg.Health.Port = 0
			},
			wantErr: config.ErrInvalidHealthPort,
		},
		{
			name: "zero flow timeout",
			modify: func(cfg *config.Config) {
				cfg.Flow.Timeout = 0
			},
			wantErr: config.ErrInvalidFlowTimeout,
		},
		{
			name: "negative flow timeout",
			modify: func(cfg *config.Config) {
				cfg.Flow.Timeout = -1 * time.Second
			},
			wantErr: config.ErrInvalidFlowTimeout,
		},
		{
			name: "invalid mode",
			modify: func(cfg *config.Config) {
				cfg.Mode = "bogus"
			},
			wantErr: config.ErrInvalidMode,
		},
		{
			name: "empty metrics addr",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Addr = ""
			},
			wantErr: config.ErrEmptyMetricsAddr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
geneve:
  port: 6081
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("GWLB_GENEVE_PORT", "16081")
	t.Setenv("GWLB_LOG_LEVEL", "debug")
	t.Setenv("GWLB_MODE", "udp")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Geneve.Port != 16081 {
		t.Errorf("Geneve.Port = %d, want 16081 (from env)", cfg.Geneve.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
	if cfg.Mode != config.ModeUDP {
		t.Errorf("Mode = %q, want %q (from env)", cfg.Mode, config.ModeUDP)
	}
}

func TestLoadEnvOverridesFlow(t *testing.T) {
	yamlContent := `
geneve:
  port: 6081
`
	path := writeTemp(t, yamlContent)

	t.Setenv("GWLB_FLOW_TCP_NONSYN_BLOCK", "true")
	t.Setenv("GWLB_FLOW_TCP_IMMEDIATE_CLEAN", "true")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if !cfg.Flow.TCPNonSynBlock {
		t.Error("Flow.TCPNonSynBlock = false, want true (from env)")
	}
	if !cfg.Flow.TCPImmediateClean {
		t.Error("Flow.TCPImmediateClean = false, want true (from env)")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "gwlbtund.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
