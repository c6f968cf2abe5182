// Package prompt reduces natural-language prompts with word-level rules.
//
// Strategies:
//   - simple:    keep the first N words, append "..."
//   - alternate: drop every other word unless it is longer than 3 characters
//   - stopwords: remove English function words, collapse whitespace
//
// These are cheap stand-ins for a learned compressor. They are NOT used for
// terminal/log output; that goes through log_output.
package prompt

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/pipes"
)

const (
	// DefaultMaxWords is the simple strategy's word budget without a rate.
	DefaultMaxWords = 50

	minSimpleWords  = 5
	alternateMinLen = 4
)

var (
	stopwordPattern = regexp.MustCompile(`(?i)\b(the|a|an|is|are|was|were|be|been|being|have|has|had|do|does|did|will|would|could|should|may|might|must|shall|can|need|dare|ought|used|to)\b`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// Options tunes a single Apply call.
type Options struct {
	MaxWords    int      // simple: words kept when Rate is 0
	Rate        float64  // simple: keep ratio in (0, 1]
	ForceTokens []string // words that are never dropped
}

// Apply runs strategy on text.
func Apply(strategy, text string, opts Options) (string, error) {
	switch strategy {
	case pipes.StrategyPassthrough, "":
		return text, nil
	case pipes.StrategySimple:
		return Simple(text, simpleBudget(text, opts)), nil
	case pipes.StrategyAlternate:
		return Alternate(text, opts.ForceTokens), nil
	case pipes.StrategyStopwords:
		return Stopwords(text, opts.ForceTokens), nil
	default:
		return "", fmt.Errorf("unknown prompt strategy %q", strategy)
	}
}

func simpleBudget(text string, opts Options) int {
	if opts.Rate > 0 && opts.Rate < 1 {
		n := int(math.Ceil(opts.Rate * float64(len(strings.Fields(text)))))
		if n < minSimpleWords {
			n = minSimpleWords
		}
		return n
	}
	if opts.Rate >= 1 {
		return len(strings.Fields(text))
	}
	if opts.MaxWords > 0 {
		return opts.MaxWords
	}
	return DefaultMaxWords
}

// Simple keeps only the first maxWords words.
func Simple(text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// Alternate keeps words at even positions and any word longer than three
// characters.
func Alternate(text string, force []string) string {
	forced := forceSet(force)
	words := strings.Fields(text)
	kept := make([]string, 0, len(words))
	for i, w := range words {
		if i%2 == 0 || utf8.RuneCountInString(w) >= alternateMinLen || forced[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Stopwords removes common English function words.
func Stopwords(text string, force []string) string {
	forced := forceSet(force)
	out := stopwordPattern.ReplaceAllStringFunc(text, func(w string) string {
		if forced[strings.ToLower(w)] {
			return w
		}
		return ""
	})
	return strings.TrimSpace(spaceRun.ReplaceAllString(out, " "))
}

func forceSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

// Pipe is the prompt reduction pipe with a fixed strategy.
type Pipe struct {
	enabled  bool
	strategy string
	maxWords int
	rate     float64
}

// New creates a prompt pipe from config.
func New(cfg pipes.PromptConfig) *Pipe {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = pipes.StrategySimple
	}
	return NewWithStrategy(cfg, strategy)
}

// NewWithStrategy creates a prompt pipe that uses strategy instead of the
// configured one.
func NewWithStrategy(cfg pipes.PromptConfig, strategy string) *Pipe {
	return &Pipe{enabled: cfg.Enabled, strategy: strategy, maxWords: cfg.MaxWords, rate: cfg.Rate}
}

// Name returns the pipe identifier.
func (p *Pipe) Name() string { return "prompt" }

// Strategy returns the strategy.
func (p *Pipe) Strategy() string { return p.strategy }

// Enabled returns whether the pipe is active.
func (p *Pipe) Enabled() bool { return p.enabled }

// Process reduces ctx.Input. ctx.Rate overrides the configured rate.
func (p *Pipe) Process(ctx *pipes.PipeContext) (string, error) {
	strategy := p.strategy
	if !p.enabled {
		strategy = pipes.StrategyPassthrough
	}

	rate := p.rate
	if ctx.Rate > 0 {
		rate = ctx.Rate
	}

	out, err := Apply(strategy, ctx.Input, Options{MaxWords: p.maxWords, Rate: rate, ForceTokens: ctx.ForceTokens})
	if err != nil {
		return ctx.Input, err
	}

	ctx.Result = compactor.Result{
		Compacted:     out,
		OriginalSize:  utf8.RuneCountInString(ctx.Input),
		CompactedSize: utf8.RuneCountInString(out),
	}
	if strategy == pipes.StrategyPassthrough {
		ctx.Status = pipes.StatusPassthrough
	} else {
		ctx.Status = pipes.StatusCompacted
	}
	return out, nil
}

var _ pipes.Pipe = (*Pipe)(nil)
