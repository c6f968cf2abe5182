// Package config loads and validates the squeeze configuration.
//
// DESIGN: The server reads all configuration from a YAML file, with
// ${VAR} and ${VAR:-default} expansion so secrets stay in the environment.
// The CLI compact path has no config file and uses Default().
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - monitoring.go: Logging, telemetry and alert settings
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/compresr/squeeze/external"
	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/pipes"
	"github.com/compresr/squeeze/internal/store"
	"github.com/compresr/squeeze/internal/tokens"
	"github.com/compresr/squeeze/internal/usage"
)

// Environment variables that override file settings.
const (
	EnvTelemetryLog = "SQUEEZE_TELEMETRY_LOG"
	EnvUsageDB      = "SQUEEZE_USAGE_DB"
)

// Config is the root configuration for squeeze.
type Config struct {
	Server     ServerConfig     `yaml:"server"`     // HTTP server settings
	Pipes      pipes.Config     `yaml:"pipes"`      // Compaction pipelines
	Store      StoreConfig      `yaml:"store"`      // Original/result store
	Usage      usage.Config     `yaml:"usage"`      // SQLite usage statistics
	Tokens     tokens.Config    `yaml:"tokens"`     // Token counting
	Forwarder  external.Config  `yaml:"forwarder"`  // Model forwarding for /v1/diagnose
	Monitoring MonitoringConfig `yaml:"monitoring"` // Logging and telemetry
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`           // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // Max time to read request
	WriteTimeout time.Duration `yaml:"write_timeout"`  // Max time to write response
	RateLimit    int           `yaml:"rate_limit"`     // Requests per second per IP (0 = default 100)
	MaxBodyBytes int64         `yaml:"max_body_bytes"` // Request body cap (0 = default 50MB)
}

// StoreConfig contains original/result store settings.
type StoreConfig struct {
	Type         string        `yaml:"type"`          // "memory"
	OriginalTTL  time.Duration `yaml:"original_ttl"`  // Raw inputs, for /v1/original
	CompactedTTL time.Duration `yaml:"compacted_ttl"` // Cached compaction results
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Pipes: pipes.Config{
			LogOutput: pipes.LogOutputConfig{
				Enabled:      true,
				Strategy:     pipes.StrategyHeuristic,
				Compactor:    compactor.DefaultOptions(),
				CacheResults: true,
			},
			Prompt: pipes.PromptConfig{
				Enabled:  true,
				Strategy: pipes.StrategySimple,
				MaxWords: 50,
			},
		},
		Store: StoreConfig{
			Type:         "memory",
			OriginalTTL:  store.DefaultOriginalTTL,
			CompactedTTL: store.DefaultCompactedTTL,
		},
		Tokens: tokens.Config{Enabled: true, Encoding: tokens.EncodingCL100kBase},
		Monitoring: MonitoringConfig{
			LogLevel:  "info",
			LogFormat: "console",
			LogOutput: "stderr",
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands ${VAR} and ${VAR:-default}.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployments redirect output files without editing
// the config.
func (c *Config) applyEnvOverrides() {
	if envPath := os.Getenv(EnvTelemetryLog); envPath != "" {
		c.Monitoring.TelemetryPath = envPath
		c.Monitoring.TelemetryEnabled = true
	}
	if envPath := os.Getenv(EnvUsageDB); envPath != "" {
		c.Usage.Path = envPath
		c.Usage.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be >= 0")
	}

	if c.Store.Type == "" {
		return fmt.Errorf("store.type is required")
	}
	if c.Store.Type != "memory" {
		return fmt.Errorf("unsupported store.type %q (only 'memory')", c.Store.Type)
	}

	if err := c.Pipes.Validate(); err != nil {
		return err
	}
	if err := c.Usage.Validate(); err != nil {
		return err
	}
	if err := c.Forwarder.Validate(); err != nil {
		return err
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}

	return nil
}
