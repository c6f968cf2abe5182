// Package logoutput compacts terminal and log output before it is sent to a
// model.
//
// FLOW:
//  1. Passthrough when disabled or below min_chars
//  2. Serve identical input from the store cache (refreshing the original)
//  3. Bound oversized input to its last max_input_bytes (whole lines)
//  4. Run the heuristic compactor
//  5. Keep the original in the store so clients can fetch it by content ID
package logoutput

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/pipes"
	"github.com/compresr/squeeze/internal/store"
)

// Pipe is the log output compaction pipe.
type Pipe struct {
	enabled       bool
	strategy      string
	compactor     *compactor.Compactor
	minChars      int
	maxInputBytes int
	cacheResults  bool
	store         store.Store
}

// New creates a log output pipe. st may be nil (no caching, no originals).
func New(cfg pipes.LogOutputConfig, st store.Store) *Pipe {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = pipes.StrategyHeuristic
	}
	return &Pipe{
		enabled:       cfg.Enabled,
		strategy:      strategy,
		compactor:     compactor.New(cfg.Compactor),
		minChars:      cfg.MinChars,
		maxInputBytes: cfg.MaxInputBytes,
		cacheResults:  cfg.CacheResults,
		store:         st,
	}
}

// Name returns the pipe identifier.
func (p *Pipe) Name() string { return "log_output" }

// Strategy returns the configured strategy.
func (p *Pipe) Strategy() string { return p.strategy }

// Enabled returns whether the pipe is active.
func (p *Pipe) Enabled() bool { return p.enabled }

// Compactor exposes the underlying compactor.
func (p *Pipe) Compactor() *compactor.Compactor { return p.compactor }

// Process compacts ctx.Input. It never returns an error; the signature
// satisfies pipes.Pipe.
func (p *Pipe) Process(ctx *pipes.PipeContext) (string, error) {
	input := ctx.Input
	ctx.ContentID = store.ContentID(input)
	size := utf8.RuneCountInString(input)

	if !p.enabled || p.strategy == pipes.StrategyPassthrough {
		return p.passthrough(ctx, pipes.StatusPassthrough, size), nil
	}
	if p.minChars > 0 && size < p.minChars {
		return p.passthrough(ctx, pipes.StatusPassthroughSmall, size), nil
	}

	if p.cacheResults && p.store != nil {
		if cached, ok := p.store.GetCompacted(ctx.ContentID); ok {
			ctx.Result = cached.Result
			ctx.Fallback = cached.Fallback
			ctx.KeptLines = cached.KeptLines
			ctx.Status = pipes.StatusCacheHit
			// Originals expire long before results; keep the ID resolvable.
			p.storeOriginal(ctx.ContentID, input)
			return cached.Compacted, nil
		}
	}

	work := input
	ctx.Status = pipes.StatusCompacted
	if p.maxInputBytes > 0 && len(input) > p.maxInputBytes {
		work = TailBytes(input, p.maxInputBytes)
		ctx.Status = pipes.StatusTruncated
		log.Debug().
			Str("request_id", ctx.RequestID).
			Int("input_bytes", len(input)).
			Int("kept_bytes", len(work)).
			Msg("log_output: input truncated before compaction")
	}

	result, report := p.compactor.Run(work)
	result.OriginalSize = size
	ctx.Result = result
	ctx.Fallback = report.Fallback
	ctx.KeptLines = report.Kept

	if p.store != nil {
		p.storeOriginal(ctx.ContentID, input)
		if p.cacheResults {
			cached := store.Compaction{Result: result, Fallback: report.Fallback, KeptLines: report.Kept}
			if err := p.store.SetCompacted(ctx.ContentID, cached); err != nil {
				log.Warn().Err(err).Str("content_id", ctx.ContentID).Msg("log_output: failed to cache result")
			}
		}
	}

	return result.Compacted, nil
}

func (p *Pipe) storeOriginal(id, input string) {
	if err := p.store.Set(id, input); err != nil {
		log.Warn().Err(err).Str("content_id", id).Msg("log_output: failed to store original")
	}
}

func (p *Pipe) passthrough(ctx *pipes.PipeContext, status string, size int) string {
	ctx.Status = status
	ctx.Result = compactor.Result{Compacted: ctx.Input, OriginalSize: size, CompactedSize: size}
	return ctx.Input
}

// TailBytes keeps roughly the last n bytes of s. The cut moves forward to the
// next line start, or to the next rune start when the kept part has no line
// break.
func TailBytes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	start := len(s) - n
	if idx := strings.IndexByte(s[start:], '\n'); idx >= 0 && start+idx+1 < len(s) {
		return s[start+idx+1:]
	}
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

var _ pipes.Pipe = (*Pipe)(nil)
