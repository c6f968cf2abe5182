// Package monitoring - telemetry.go records events to JSONL files.
//
// DESIGN: Tracker writes structured events as JSONL (one JSON object per line):
//   - CompactionEvent:      Every compaction, from any source
//   - CompactionComparison: Original vs compacted content (debug mode)
//
// Events are appended immediately so the files can be tailed live.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker handles telemetry event recording to file and stdout.
type Tracker struct {
	config            TelemetryConfig
	eventLogPath      string
	comparisonLogPath string
	eventCount        int
	comparisonCount   int
	mu                sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{config: cfg}

	if !cfg.Enabled {
		return t, nil
	}

	if cfg.LogPath != "" {
		if err := ensureFile(cfg.LogPath); err != nil {
			return nil, err
		}
		t.eventLogPath = cfg.LogPath
	}
	if cfg.ComparisonLogPath != "" {
		if err := ensureFile(cfg.ComparisonLogPath); err != nil {
			return nil, err
		}
		t.comparisonLogPath = cfg.ComparisonLogPath
	}

	return t, nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		f.Close()
	}
	return nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// RecordCompaction records a compaction event.
func (t *Tracker) RecordCompaction(event *CompactionEvent) {
	if t == nil || !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		reqID := event.RequestID
		if len(reqID) > 8 {
			reqID = reqID[:8]
		}
		log.Info().
			Str("request_id", reqID).
			Str("source", string(event.Source)).
			Str("strategy", event.Strategy).
			Int("original", event.OriginalSize).
			Int("compacted", event.CompactedSize).
			Bool("fallback", event.Fallback).
			Msg("telemetry")
	}

	if t.eventLogPath != "" {
		if err := appendJSONL(t.eventLogPath, event); err != nil {
			log.Error().Err(err).Str("path", t.eventLogPath).Msg("telemetry: failed to write compaction event")
		} else {
			t.eventCount++
		}
	}
}

// ComparisonLogEnabled returns true if comparison logging is enabled.
func (t *Tracker) ComparisonLogEnabled() bool {
	return t != nil && t.config.Enabled && t.comparisonLogPath != ""
}

// LogComparison logs original vs compacted content for debugging.
func (t *Tracker) LogComparison(comparison CompactionComparison) {
	if !t.ComparisonLogEnabled() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := appendJSONL(t.comparisonLogPath, comparison); err != nil {
		log.Error().Err(err).Str("path", t.comparisonLogPath).Msg("telemetry: failed to write comparison")
	} else {
		t.comparisonCount++
	}
}

// Counts returns how many events and comparisons were written.
func (t *Tracker) Counts() (events, comparisons int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eventCount, t.comparisonCount
}

// Close logs a session summary.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.eventLogPath != "" && t.eventCount > 0 {
		log.Info().
			Str("path", t.eventLogPath).
			Int("events", t.eventCount).
			Msg("telemetry: session complete")
	}
	return nil
}
