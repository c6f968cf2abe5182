// Package pipes defines the common Pipe interface for text reduction.
//
// DESIGN: Two independent pipe packages, each implementing this interface:
//   - log_output/: Heuristic compaction of terminal/log output
//   - prompt/:     Word-level reduction of prompts (simple, alternate, stopwords)
//
// FLOW:
//  1. Caller fills a PipeContext with the raw input
//  2. Pipe reduces the input according to its strategy
//  3. Pipe records sizes and status back on the PipeContext
//
// The Router in gateway/ picks the pipe by strategy name.
//
// NOTE: Pipe configuration types are defined in config.go in this package.
package pipes

import (
	"context"

	"github.com/compresr/squeeze/internal/compactor"
)

// Status values recorded on PipeContext.Status.
const (
	StatusCompacted        = "compacted"
	StatusCacheHit         = "cache_hit"
	StatusPassthroughSmall = "passthrough_small"
	StatusPassthrough      = "passthrough"
	StatusTruncated        = "truncated"
)

// PipeContext carries data through pipe processing.
type PipeContext struct {
	Ctx       context.Context
	RequestID string

	// Input
	Input       string
	Model       string
	Rate        float64  // keep ratio for prompt strategies, 0 = strategy default
	ForceTokens []string // words prompt strategies must never drop

	// Results
	ContentID string           // store key for the original input
	Result    compactor.Result // sizes are filled for every strategy
	Fallback  bool             // heuristic: tail window was used
	KeptLines int              // heuristic: lines in the output
	Status    string
}

// NewPipeContext creates a new pipe context.
func NewPipeContext(ctx context.Context, input string) *PipeContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &PipeContext{Ctx: ctx, Input: input}
}

// Pipe defines the interface for a processing pipe.
type Pipe interface {
	// Name returns the pipe identifier.
	Name() string

	// Strategy returns the processing strategy (see Strategy* constants).
	Strategy() string

	// Enabled returns whether this pipe is active.
	Enabled() bool

	// Process reduces ctx.Input and returns the reduced text.
	Process(ctx *PipeContext) (string, error)
}
