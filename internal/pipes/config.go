// Pipes configuration - reduction pipeline settings.
//
// DESIGN: Two independent pipes:
//   - LogOutput: Heuristic compaction of terminal/log dumps
//   - Prompt:    Word-level prompt reduction
//
// Each pipe has a STRATEGY. Unknown strategies fail validation.
//
// NOTE: This file defines pipe-specific configuration types.
// The main Config struct in config/ imports and uses these types.
package pipes

import (
	"fmt"

	"github.com/compresr/squeeze/internal/compactor"
)

// =============================================================================
// STRATEGY CONSTANTS
// =============================================================================

// Strategy constants for pipe execution.
const (
	StrategyPassthrough = "passthrough" // Do nothing, pass through unchanged
	StrategyHeuristic   = "heuristic"   // Line classification compactor (logs)
	StrategySimple      = "simple"      // First N words
	StrategyAlternate   = "alternate"   // Drop every other short word
	StrategyStopwords   = "stopwords"   // Remove English stop words
)

// PromptStrategies lists the strategies handled by the prompt pipe.
var PromptStrategies = []string{StrategySimple, StrategyAlternate, StrategyStopwords}

// IsPromptStrategy reports whether s is a prompt strategy.
func IsPromptStrategy(s string) bool {
	for _, p := range PromptStrategies {
		if p == s {
			return true
		}
	}
	return false
}

// IsKnownStrategy reports whether s names any strategy.
func IsKnownStrategy(s string) bool {
	return s == StrategyPassthrough || s == StrategyHeuristic || IsPromptStrategy(s)
}

// =============================================================================
// PIPES CONFIG - Root configuration for all pipes
// =============================================================================

// Config contains configuration for all pipes.
type Config struct {
	LogOutput LogOutputConfig `yaml:"log_output"` // Terminal/log compaction
	Prompt    PromptConfig    `yaml:"prompt"`     // Prompt reduction
}

// Validate validates pipe configurations.
func (p *Config) Validate() error {
	if err := p.LogOutput.Validate(); err != nil {
		return err
	}
	if err := p.Prompt.Validate(); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// LOG OUTPUT PIPE CONFIG
// =============================================================================

// LogOutputConfig configures terminal/log compaction.
type LogOutputConfig struct {
	Enabled  bool   `yaml:"enabled"`  // Enable this pipe
	Strategy string `yaml:"strategy"` // passthrough | heuristic

	Compactor compactor.Options `yaml:"compactor"` // tail_lines, strip_mode

	MinChars      int  `yaml:"min_chars"`       // Below this size, pass through (0 = always compact)
	MaxInputBytes int  `yaml:"max_input_bytes"` // Keep only the last N bytes of larger input (0 = no cap)
	CacheResults  bool `yaml:"cache_results"`   // Reuse results for identical input
}

// Validate validates log output pipe config.
func (l *LogOutputConfig) Validate() error {
	if !l.Enabled {
		return nil
	}
	switch l.Strategy {
	case "", StrategyPassthrough, StrategyHeuristic:
	default:
		return fmt.Errorf("log_output: unknown strategy %q, must be 'passthrough' or 'heuristic'", l.Strategy)
	}
	if l.MinChars < 0 {
		return fmt.Errorf("log_output: min_chars must be >= 0")
	}
	if l.MaxInputBytes < 0 {
		return fmt.Errorf("log_output: max_input_bytes must be >= 0")
	}
	if err := l.Compactor.Validate(); err != nil {
		return fmt.Errorf("log_output: %w", err)
	}
	return nil
}

// =============================================================================
// PROMPT PIPE CONFIG
// =============================================================================

// PromptConfig configures prompt reduction.
type PromptConfig struct {
	Enabled  bool    `yaml:"enabled"`   // Enable this pipe
	Strategy string  `yaml:"strategy"`  // passthrough | simple | alternate | stopwords
	MaxWords int     `yaml:"max_words"` // simple: words kept when no rate is given (default: 50)
	Rate     float64 `yaml:"rate"`      // default keep ratio in (0, 1]
}

// Validate validates prompt pipe config.
func (p *PromptConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Strategy != "" && p.Strategy != StrategyPassthrough && !IsPromptStrategy(p.Strategy) {
		return fmt.Errorf("prompt: unknown strategy %q, must be 'passthrough', 'simple', 'alternate', or 'stopwords'", p.Strategy)
	}
	if p.MaxWords < 0 {
		return fmt.Errorf("prompt: max_words must be >= 0")
	}
	if p.Rate < 0 || p.Rate > 1 {
		return fmt.Errorf("prompt: rate must be in (0, 1], got %v", p.Rate)
	}
	return nil
}
