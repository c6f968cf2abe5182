package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/pipes"
)

const validYAML = `
server:
  port: ${SQUEEZE_TEST_PORT:-18080}
  read_timeout: 10s
  write_timeout: 30s
  rate_limit: 20
pipes:
  log_output:
    enabled: true
    strategy: heuristic
    min_chars: 200
    max_input_bytes: 1048576
    cache_results: true
    compactor:
      tail_lines: 25
      strip_mode: all
  prompt:
    enabled: true
    strategy: stopwords
store:
  type: memory
  original_ttl: 1m
  compacted_ttl: 1h
usage:
  enabled: false
tokens:
  enabled: true
forwarder:
  enabled: true
  provider: anthropic
  endpoint: https://api.anthropic.com/v1/messages
  api_key: ${SQUEEZE_TEST_KEY:-}
  model: claude-sonnet-4
monitoring:
  log_level: debug
  log_format: json
`

func TestLoadFromBytes(t *testing.T) {
	t.Setenv("SQUEEZE_TEST_KEY", "sk-test")

	cfg, err := LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, 18080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 20, cfg.Server.RateLimit)
	assert.Equal(t, pipes.StrategyHeuristic, cfg.Pipes.LogOutput.Strategy)
	assert.Equal(t, 25, cfg.Pipes.LogOutput.Compactor.TailLines)
	assert.Equal(t, compactor.StripAll, cfg.Pipes.LogOutput.Compactor.StripMode)
	assert.Equal(t, 200, cfg.Pipes.LogOutput.MinChars)
	assert.Equal(t, pipes.StrategyStopwords, cfg.Pipes.Prompt.Strategy)
	assert.Equal(t, time.Hour, cfg.Store.CompactedTTL)
	assert.Equal(t, "sk-test", cfg.Forwarder.APIKey)
	assert.Equal(t, "debug", cfg.Monitoring.LogLevel)
}

func TestLoadFromBytes_MissingSecretFailsValidation(t *testing.T) {
	t.Setenv("SQUEEZE_TEST_KEY", "")

	_, err := LoadFromBytes([]byte(validYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadFromBytes_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SQUEEZE_TEST_KEY", "k")
	t.Setenv(EnvTelemetryLog, filepath.Join(dir, "telemetry.jsonl"))
	t.Setenv(EnvUsageDB, filepath.Join(dir, "usage.db"))

	cfg, err := LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)
	assert.True(t, cfg.Monitoring.TelemetryEnabled)
	assert.Equal(t, filepath.Join(dir, "telemetry.jsonl"), cfg.Monitoring.TelemetryPath)
	assert.True(t, cfg.Usage.Enabled)
	assert.Equal(t, filepath.Join(dir, "usage.db"), cfg.Usage.Path)
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("server: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse")
}

func TestLoad(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read")

	t.Setenv("SQUEEZE_TEST_KEY", "k")
	path := filepath.Join(t.TempDir(), "squeeze.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 18080, cfg.Server.Port)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, compactor.DefaultTailLines, cfg.Pipes.LogOutput.Compactor.TailLines)
	assert.False(t, cfg.Forwarder.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing port", func(c *Config) { c.Server.Port = 0 }, "server.port is required"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid server.port"},
		{"missing read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read_timeout"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
		{"unknown store", func(c *Config) { c.Store.Type = "redis" }, "unsupported store.type"},
		{"unknown log strategy", func(c *Config) { c.Pipes.LogOutput.Strategy = "llm" }, "unknown strategy"},
		{"bad strip mode", func(c *Config) { c.Pipes.LogOutput.Compactor.StripMode = "some" }, "log_output"},
		{"usage without path", func(c *Config) { c.Usage.Enabled = true }, "usage.path"},
		{"bad log format", func(c *Config) { c.Monitoring.LogFormat = "xml" }, "log_format"},
		{"telemetry without sink", func(c *Config) { c.Monitoring.TelemetryEnabled = true }, "telemetry_enabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("SQ_SET", "value")
	t.Setenv("SQ_EMPTY", "")

	assert.Equal(t, "value", expandEnvWithDefaults("${SQ_SET}"))
	assert.Equal(t, "value", expandEnvWithDefaults("${SQ_SET:-fallback}"))
	assert.Equal(t, "fallback", expandEnvWithDefaults("${SQ_EMPTY:-fallback}"))
	assert.Equal(t, "", expandEnvWithDefaults("${SQ_UNSET_VARIABLE}"))
	assert.Equal(t, "a-value-b", expandEnvWithDefaults("a-${SQ_SET}-b"))
}

func TestMonitoringConversions(t *testing.T) {
	m := MonitoringConfig{LogLevel: "warn", LogFormat: "json", LogOutput: "stderr", TelemetryEnabled: true, TelemetryPath: "/tmp/t.jsonl", CompactionLogPath: "/tmp/c.jsonl", HighLatencyThreshold: time.Second}
	assert.Equal(t, "warn", m.LoggerConfig().Level)
	assert.Equal(t, "/tmp/c.jsonl", m.TelemetryConfig().ComparisonLogPath)
	assert.Equal(t, time.Second, m.AlertConfig().HighLatencyThreshold)
}
