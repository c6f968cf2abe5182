// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagHighLatency:    Warn when request exceeds threshold
//   - FlagLowReduction:   Info when a large input barely shrank
//   - FlagInvalidRequest: Debug on rejected client input
//   - FlagForwardFailure: Error when the model call fails
//   - FlagPanic:          Error on recovered panics
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger               *Logger
	highLatencyThreshold time.Duration
	lowReductionMinChars int
	lowReductionRatio    float64
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	am := &AlertManager{
		logger:               logger,
		highLatencyThreshold: cfg.HighLatencyThreshold,
		lowReductionMinChars: cfg.LowReductionMinChars,
		lowReductionRatio:    cfg.LowReductionRatio,
	}
	if am.highLatencyThreshold == 0 {
		am.highLatencyThreshold = 5 * time.Second
	}
	if am.lowReductionMinChars == 0 {
		am.lowReductionMinChars = 10000
	}
	if am.lowReductionRatio == 0 {
		am.lowReductionRatio = 0.9
	}
	return am
}

// FlagHighLatency logs when request latency exceeds threshold.
func (am *AlertManager) FlagHighLatency(requestID string, latency time.Duration, path string) {
	if latency < am.highLatencyThreshold {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Dur("latency", latency).
		Str("path", path).
		Msg("high_latency")
}

// FlagLowReduction logs large inputs the heuristic could not shrink, which
// usually means the output has no error lines and fell back to the tail.
func (am *AlertManager) FlagLowReduction(requestID string, originalSize, compactedSize int, fallback bool) {
	if originalSize < am.lowReductionMinChars {
		return
	}
	if float64(compactedSize) <= float64(originalSize)*am.lowReductionRatio {
		return
	}
	am.logger.Info().
		Str("request_id", requestID).
		Int("original", originalSize).
		Int("compacted", compactedSize).
		Bool("fallback", fallback).
		Msg("low_reduction")
}

// FlagInvalidRequest logs invalid request.
func (am *AlertManager) FlagInvalidRequest(requestID, reason string) {
	am.logger.Debug().
		Str("request_id", requestID).
		Str("reason", reason).
		Msg("invalid_request")
}

// FlagForwardFailure logs a failed model call.
func (am *AlertManager) FlagForwardFailure(requestID, provider string, err error) {
	am.logger.Error().
		Str("request_id", requestID).
		Str("provider", provider).
		Err(err).
		Msg("forward_failed")
}

// FlagPanic logs recovered panic.
func (am *AlertManager) FlagPanic(requestID string, panicValue any, stack string) {
	am.logger.Error().
		Str("request_id", requestID).
		Interface("panic", panicValue).
		Str("stack", stack).
		Msg("panic_recovered")
}
