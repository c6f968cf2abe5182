// Package gateway types - request/response shapes and limits.
//
// DESIGN: Types used by the gateway for:
//   - Endpoint request/response bodies
//   - Error envelopes
//   - Server limits
//
// Types are defined here to keep handlers short and provide clear contracts.
package gateway

import (
	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/tokens"
	"github.com/compresr/squeeze/internal/usage"
)

// =============================================================================
// LIMITS AND HEADERS
// =============================================================================

const (
	// HeaderRequestID carries the request ID in both directions.
	HeaderRequestID = "X-Request-ID"

	// DefaultRateLimit is requests per second per client IP.
	DefaultRateLimit = 100

	// MaxRateLimitBuckets caps the number of tracked client IPs.
	MaxRateLimitBuckets = 10000

	// DefaultMaxBodyBytes caps request bodies (50MB).
	DefaultMaxBodyBytes = 50 * 1024 * 1024

	// DefaultPoolSize is the number of pipe workers per strategy.
	DefaultPoolSize = 10

	// DefaultTransformRate is the keep ratio when /transform omits rate.
	DefaultTransformRate = 0.5

	serviceName = "squeeze"
)

// =============================================================================
// ERRORS
// =============================================================================

// Error types returned in the error envelope.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeNotFound       = "not_found_error"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeUnavailable    = "unavailable_error"
	ErrTypeUpstream       = "upstream_error"
	ErrTypeInternal       = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// =============================================================================
// /v1/compact
// =============================================================================

// CompactRequest is the body of POST /v1/compact.
type CompactRequest struct {
	Text      string              `json:"text"`
	Model     string              `json:"model,omitempty"`      // for token counting
	TailLines int                 `json:"tail_lines,omitempty"` // per-request fallback window
	StripMode compactor.StripMode `json:"strip_mode,omitempty"` // per-request escape stripping
}

// CompactResponse is the body returned by POST /v1/compact.
type CompactResponse struct {
	ID string `json:"id"`
	compactor.Result
	Status    string       `json:"status"`
	Fallback  bool         `json:"fallback"`
	KeptLines int          `json:"keptLines"`
	Tokens    tokens.Stats `json:"tokens"`
}

// =============================================================================
// /compress
// =============================================================================

// CompressRequest is the body of POST /compress.
type CompressRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// CompressResponse is the body returned by POST /compress.
type CompressResponse struct {
	CompressedText string `json:"compressedText"`
	InputTokens    int    `json:"inputTokens"`
	OutputTokens   int    `json:"outputTokens"`
}

// =============================================================================
// /transform
// =============================================================================

// TransformRequest is the body of POST /transform.
type TransformRequest struct {
	Text        string   `json:"text"`
	Schema      string   `json:"schema"`
	Rate        float64  `json:"rate"`
	ForceTokens []string `json:"force_tokens"`
}

// TransformResponse is the body returned by POST /transform.
type TransformResponse struct {
	Compressed   string   `json:"compressed"`
	Schema       string   `json:"schema"`
	Rate         float64  `json:"rate"`
	ForceTokens  []string `json:"force_tokens"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
}

// =============================================================================
// /v1/original, /v1/diagnose, /stats
// =============================================================================

// OriginalResponse is the body returned by GET /v1/original/{id}.
type OriginalResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DiagnoseRequest is the body of POST /v1/diagnose.
type DiagnoseRequest struct {
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	Question string `json:"question,omitempty"`
}

// DiagnoseResponse is the body returned by POST /v1/diagnose.
type DiagnoseResponse struct {
	ID           string           `json:"id"`
	Answer       string           `json:"answer"`
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Compaction   compactor.Result `json:"compaction"`
	InputTokens  int              `json:"input_tokens"`
	OutputTokens int              `json:"output_tokens"`
}

// StatsResponse is the body returned by GET /stats.
type StatsResponse struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Metrics       map[string]int64 `json:"metrics"`
	Store         StoreStats       `json:"store"`
	Usage         *usage.Summary   `json:"usage,omitempty"`
}

// StoreStats reports live store entries.
type StoreStats struct {
	Originals int `json:"originals"`
	Compacted int `json:"compacted"`
}
