// Package config manages gwlbtund daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and CLI flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete gwlbtund configuration.
type Config struct {
	Geneve   GeneveConfig   `koanf:"geneve"`
	Health   HealthConfig   `koanf:"health"`
	Flow     FlowConfig     `koanf:"flow"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Mode     string         `koanf:"mode"`
	Checksum ChecksumConfig `koanf:"checksum"`
}

// GeneveConfig holds the Geneve data socket configuration.
type GeneveConfig struct {
	// Port is the UDP port the data socket listens/binds on.
	Port uint16 `koanf:"port"`
}

// HealthConfig holds the TCP health-probe listener configuration.
type HealthConfig struct {
	// Port is the TCP port the health responder listens on.
	Port uint16 `koanf:"port"`
}

// FlowConfig holds flow-tracker policy toggles.
type FlowConfig struct {
	// Timeout is both the idle-expiry threshold and the sweeper period.
	Timeout time.Duration `koanf:"timeout"`

	// TCPNonSynBlock discards a new TCP flow whose first packet is not
	// a clean SYN.
	TCPNonSynBlock bool `koanf:"tcp_nonsyn_block"`

	// TCPImmediateClean deletes a TCP flow as soon as it enters CLOSED,
	// rather than waiting for it to idle out.
	TCPImmediateClean bool `koanf:"tcp_immediate_clean"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// File is a path to log to; empty means stderr.
	File string `koanf:"file"`
}

// MetricsConfig holds the Prometheus/debug HTTP endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for /metrics, /flows, /healthz.
	Addr string `koanf:"addr"`
}

// ChecksumConfig controls outer IPv4 checksum handling on responses.
type ChecksumConfig struct {
	// Offload suppresses checksum recomputation on raw-socket-mode
	// responses, for environments that rely on NIC checksum offload.
	Offload bool `koanf:"offload"`
}

// -------------------------------------------------------------------------
// Modes
// -------------------------------------------------------------------------

const (
	ModeRaw = "raw"
	ModeUDP = "udp"
)

// ValidModes lists the recognized Mode strings.
var ValidModes = map[string]bool{
	ModeRaw: true,
	ModeUDP: true,
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultGenevePort is the well-known Geneve UDP port (RFC 8926).
const DefaultGenevePort = 6081

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Geneve: GeneveConfig{
			Port: DefaultGenevePort,
		},
		Health: HealthConfig{
			Port: 8080,
		},
		Flow: FlowConfig{
			Timeout:           350 * time.Second,
			TCPNonSynBlock:    false,
			TCPImmediateClean: false,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Mode: ModeRaw,
		Checksum: ChecksumConfig{
			Offload: false,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gwlbtund configuration.
// Variables are named GWLB_<section>_<key>, e.g., GWLB_GENEVE_PORT.
const envPrefix = "GWLB_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GWLB_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults. An empty path skips the file layer
// entirely, so a daemon can run from defaults + environment alone.
//
// Environment variable mapping:
//
//	GWLB_GENEVE_PORT              -> geneve.port
//	GWLB_HEALTH_PORT              -> health.port
//	GWLB_FLOW_TIMEOUT             -> flow.timeout
//	GWLB_FLOW_TCP_NONSYN_BLOCK    -> flow.tcp_nonsyn_block
//	GWLB_FLOW_TCP_IMMEDIATE_CLEAN -> flow.tcp_immediate_clean
//	GWLB_LOG_LEVEL                -> log.level
//	GWLB_LOG_FILE                 -> log.file
//	GWLB_METRICS_ADDR             -> metrics.addr
//	GWLB_MODE                     -> mode
//	GWLB_CHECKSUM_OFFLOAD         -> checksum.offload
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms GWLB_GENEVE_PORT -> geneve.port.
// Strips the GWLB_ prefix, lowercases, and replaces the first _ within
// each recognized section with a "." separator.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "geneve_"):
		return "geneve." + strings.TrimPrefix(s, "geneve_")
	case strings.HasPrefix(s, "health_"):
		return "health." + strings.TrimPrefix(s, "health_")
	case strings.HasPrefix(s, "flow_"):
		return "flow." + strings.TrimPrefix(s, "flow_")
	case strings.HasPrefix(s, "log_"):
		return "log." + strings.TrimPrefix(s, "log_")
	case strings.HasPrefix(s, "metrics_"):
		return "metrics." + strings.TrimPrefix(s, "metrics_")
	case strings.HasPrefix(s, "checksum_"):
		return "checksum." + strings.TrimPrefix(s, "checksum_")
	default:
		return s
	}
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"geneve.port":                   defaults.Geneve.Port,
		"health.port":                   defaults.Health.Port,
		"flow.timeout":                  defaults.Flow.Timeout.String(),
		"flow.tcp_nonsyn_block":         defaults.Flow.TCPNonSynBlock,
		"flow.tcp_immediate_clean":      defaults.Flow.TCPImmediateClean,
		"log.level":                     defaults.Log.Level,
		"log.file":                      defaults.Log.File,
		"metrics.addr":                  defaults.Metrics.Addr,
		"mode":                          defaults.Mode,
		"checksum.offload":              defaults.Checksum.Offload,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidGenevePort indicates geneve.port is zero.
	ErrInvalidGenevePort = errors.New("geneve.port must be > 0")

	// ErrInvalidHealthPort indicates health.port is zero.
	ErrInvalidHealthPort = errors.New("health.port must be > 0")

	// ErrInvalidFlowTimeout indicates flow.timeout is not positive.
	ErrInvalidFlowTimeout = errors.New("flow.timeout must be > 0")

	// ErrInvalidMode indicates mode is neither "raw" nor "udp".
	ErrInvalidMode = errors.New("mode must be \"raw\" or \"udp\"")

	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")
)

// Validate checks the configuration for logical errors. Returns the
// first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Geneve.Port == 0 {
		return ErrInvalidGenevePort
	}

	if cfg.Health.Port == 0 {
		return ErrInvalidHealthPort
	}

	if cfg.Flow.Timeout <= 0 {
		return ErrInvalidFlowTimeout
	}

	if !ValidModes[cfg.Mode] {
		return fmt.Errorf("mode %q: %w", cfg.Mode, ErrInvalidMode)
	}

	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
