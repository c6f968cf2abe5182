// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by gateway/, cmd and monitoring/.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - Source:            Where a compaction request came from
//   - CompactionEvent:   Telemetry data for each compaction
//   - Config types:      TelemetryConfig, LoggerConfig, AlertConfig
package monitoring

import "time"

// =============================================================================
// SOURCES
// =============================================================================

// Source identifies the entry point that triggered a compaction.
type Source string

const (
	SourceHTTP      Source = "http"
	SourceWebsocket Source = "websocket"
	SourceCLI       Source = "cli"
)

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// CompactionEvent captures one compaction.
type CompactionEvent struct {
	RequestID       string    `json:"request_id"`
	Timestamp       time.Time `json:"timestamp"`
	Source          Source    `json:"source"`
	Path            string    `json:"path,omitempty"`
	Strategy        string    `json:"strategy"`
	Status          string    `json:"status"`
	ContentID       string    `json:"content_id,omitempty"`
	Model           string    `json:"model,omitempty"`
	OriginalSize    int       `json:"original_size"`
	CompactedSize   int       `json:"compacted_size"`
	OriginalTokens  int       `json:"original_tokens"`
	CompactedTokens int       `json:"compacted_tokens"`
	Ratio           float64   `json:"ratio"`
	KeptLines       int       `json:"kept_lines,omitempty"`
	Fallback        bool      `json:"fallback"`
	LatencyMs       int64     `json:"latency_ms"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
}

// CompactionComparison captures original vs compacted content.
type CompactionComparison struct {
	RequestID        string  `json:"request_id"`
	Timestamp        string  `json:"timestamp,omitempty"`
	ContentID        string  `json:"content_id,omitempty"`
	Strategy         string  `json:"strategy"`
	OriginalSize     int     `json:"original_size"`
	CompactedSize    int     `json:"compacted_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	OriginalContent  string  `json:"original_content,omitempty"`
	CompactedContent string  `json:"compacted_content,omitempty"`
	Status           string  `json:"status"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled           bool   `yaml:"enabled"`
	LogPath           string `yaml:"log_path"`
	LogToStdout       bool   `yaml:"log_to_stdout"`
	ComparisonLogPath string `yaml:"comparison_log_path"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"`
	// Inputs at least this large (chars) that keep more than LowReductionRatio
	// of their size are flagged. 0 = 10000.
	LowReductionMinChars int     `yaml:"low_reduction_min_chars"`
	LowReductionRatio    float64 `yaml:"low_reduction_ratio"` // 0 = 0.9
}
