// Package monitoring - request_logger.go logs HTTP request lifecycle.
//
// DESIGN: Structured logging for request tracing at DEBUG level:
//   - LogIncoming:   Request received from client
//   - LogResponse:   Response sent to client
//   - LogCompaction: Compaction details
//   - LogForward:    Compacted text forwarded to a model
package monitoring

import (
	"net/http"
	"time"
)

// RequestLogger logs HTTP request lifecycle events.
type RequestLogger struct {
	logger *Logger
}

// NewRequestLogger creates a new request logger.
func NewRequestLogger(logger *Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// RequestInfo contains incoming request information.
type RequestInfo struct {
	RequestID  string
	Method     string
	Path       string
	RemoteAddr string
	BodySize   int
	StartTime  time.Time
}

// NewRequestInfo creates RequestInfo from an HTTP request.
func NewRequestInfo(r *http.Request, requestID string, bodySize int) *RequestInfo {
	return &RequestInfo{
		RequestID:  requestID,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		BodySize:   bodySize,
		StartTime:  time.Now(),
	}
}

// LogIncoming logs an incoming request.
func (rl *RequestLogger) LogIncoming(info *RequestInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("method", info.Method).
		Str("path", info.Path).
		Int("body_size", info.BodySize).
		Msg("incoming")
}

// ResponseInfo contains response information.
type ResponseInfo struct {
	RequestID  string
	StatusCode int
	Latency    time.Duration
}

// LogResponse logs a response.
func (rl *RequestLogger) LogResponse(info *ResponseInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Int("status", info.StatusCode).
		Dur("latency", info.Latency).
		Msg("response")
}

// CompactionInfo contains compaction operation information.
type CompactionInfo struct {
	RequestID     string
	Strategy      string
	Status        string
	OriginalSize  int
	CompactedSize int
	Ratio         float64
	KeptLines     int
	Fallback      bool
	Duration      time.Duration
}

// LogCompaction logs a compaction.
func (rl *RequestLogger) LogCompaction(info *CompactionInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("strategy", info.Strategy).
		Str("status", info.Status).
		Int("original", info.OriginalSize).
		Int("compacted", info.CompactedSize).
		Float64("ratio", info.Ratio).
		Int("kept_lines", info.KeptLines).
		Bool("fallback", info.Fallback).
		Dur("duration", info.Duration).
		Msg("compaction")
}

// ForwardInfo describes a forwarded model call.
type ForwardInfo struct {
	RequestID    string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// LogForward logs a completed forward to a model.
func (rl *RequestLogger) LogForward(info *ForwardInfo) {
	rl.logger.Info().
		Str("request_id", info.RequestID).
		Str("provider", info.Provider).
		Str("model", info.Model).
		Int("input_tokens", info.InputTokens).
		Int("output_tokens", info.OutputTokens).
		Dur("latency", info.Latency).
		Msg("forward")
}
