// Monitoring configuration - telemetry and logging settings.
//
// DESIGN: Separates logging (zerolog) from telemetry (JSONL files).
// Logging is for operators, telemetry is for analytics/debugging.
package config

import (
	"fmt"
	"time"

	"github.com/compresr/squeeze/internal/monitoring"
)

// MonitoringConfig contains all monitoring settings.
type MonitoringConfig struct {
	// Logging settings
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console
	LogOutput string `yaml:"log_output"` // stdout, stderr, or file path

	// Telemetry settings
	TelemetryEnabled bool   `yaml:"telemetry_enabled"` // Enable telemetry tracking
	TelemetryPath    string `yaml:"telemetry_path"`    // Path to telemetry JSONL file
	LogToStdout      bool   `yaml:"log_to_stdout"`     // Also log telemetry to stdout

	// CompactionLogPath records original vs compacted text (debugging only).
	CompactionLogPath string `yaml:"compaction_log_path"`

	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"` // default 5s
}

// Validate checks monitoring settings.
func (m *MonitoringConfig) Validate() error {
	switch m.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("monitoring.log_format must be 'json' or 'console', got %q", m.LogFormat)
	}
	if m.TelemetryEnabled && m.TelemetryPath == "" && m.CompactionLogPath == "" && !m.LogToStdout {
		return fmt.Errorf("monitoring.telemetry_enabled requires telemetry_path, compaction_log_path or log_to_stdout")
	}
	return nil
}

// LoggerConfig converts to the monitoring logger config.
func (m MonitoringConfig) LoggerConfig() monitoring.LoggerConfig {
	return monitoring.LoggerConfig{Level: m.LogLevel, Format: m.LogFormat, Output: m.LogOutput}
}

// TelemetryConfig converts to the monitoring telemetry config.
func (m MonitoringConfig) TelemetryConfig() monitoring.TelemetryConfig {
	return monitoring.TelemetryConfig{
		Enabled:           m.TelemetryEnabled,
		LogPath:           m.TelemetryPath,
		LogToStdout:       m.LogToStdout,
		ComparisonLogPath: m.CompactionLogPath,
	}
}

// AlertConfig converts to the monitoring alert config.
func (m MonitoringConfig) AlertConfig() monitoring.AlertConfig {
	return monitoring.AlertConfig{HighLatencyThreshold: m.HighLatencyThreshold}
}
