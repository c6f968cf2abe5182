// Package tokens counts model tokens for compaction statistics.
//
// DESIGN: tiktoken encodings are loaded lazily per encoding name and cached.
// When an encoding cannot be loaded (offline, unknown name) the counter
// degrades to the chars/4 estimate instead of failing the request.
package tokens

import (
	"strings"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

const (
	EncodingCL100kBase = "cl100k_base"
	EncodingO200kBase  = "o200k_base"
)

// Config controls token counting.
type Config struct {
	Enabled  bool   `yaml:"enabled"`  // false = always estimate
	Encoding string `yaml:"encoding"` // override; empty = resolve from model
}

// Counter counts tokens. Safe for concurrent use.
type Counter struct {
	cfg       Config
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	failed    map[string]bool
}

// NewCounter creates a token counter.
func NewCounter(cfg Config) *Counter {
	return &Counter{
		cfg:       cfg,
		encodings: make(map[string]*tiktoken.Tiktoken),
		failed:    make(map[string]bool),
	}
}

// Estimate approximates tokens as ceil(chars/4).
func Estimate(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// EncodingForModel maps a model name to a tiktoken encoding. Non-OpenAI
// models use cl100k_base as an approximation.
func EncodingForModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"),
		strings.HasPrefix(m, "gpt-4.1"),
		strings.HasPrefix(m, "gpt-5"),
		strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"):
		return EncodingO200kBase
	default:
		return EncodingCL100kBase
	}
}

// Count returns the token count of text for model.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	if c == nil || !c.cfg.Enabled {
		return Estimate(text)
	}

	name := c.cfg.Encoding
	if name == "" {
		name = EncodingForModel(model)
	}

	enc := c.encoding(name)
	if enc == nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *Counter) encoding(name string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[name]; ok {
		return enc
	}
	if c.failed[name] {
		return nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		log.Warn().Err(err).Str("encoding", name).Msg("tokens: encoding unavailable, using estimate")
		c.failed[name] = true
		return nil
	}
	c.encodings[name] = enc
	return enc
}

// Stats compares token counts before and after compaction.
type Stats struct {
	OriginalTokens   int     `json:"original_tokens"`
	CompactedTokens  int     `json:"compacted_tokens"`
	TokensSaved      int     `json:"tokens_saved"`
	CompressionRatio float64 `json:"compression_ratio"`
	PercentageSaved  float64 `json:"percentage_saved"`
}

// Compare computes Stats for an original/compacted pair.
func (c *Counter) Compare(model, original, compacted string) Stats {
	orig := c.Count(model, original)
	comp := c.Count(model, compacted)

	s := Stats{
		OriginalTokens:   orig,
		CompactedTokens:  comp,
		TokensSaved:      orig - comp,
		CompressionRatio: 1.0,
	}
	if orig > 0 {
		s.CompressionRatio = float64(comp) / float64(orig)
		s.PercentageSaved = (1 - s.CompressionRatio) * 100
	}
	return s
}
