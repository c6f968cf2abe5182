// Router routes compaction requests to pipes by strategy.
//
// DESIGN: Strategy-based routing:
//  1. "" / heuristic / passthrough → LogOutputPipe
//  2. simple / alternate / stopwords → PromptPipe for that strategy
//
// Uses worker pools for concurrent pipe execution.
// Threshold logic (min chars, input caps) is handled INSIDE each pipe.
package gateway

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/compresr/squeeze/internal/config"
	"github.com/compresr/squeeze/internal/pipes"
	logoutput "github.com/compresr/squeeze/internal/pipes/log_output"
	"github.com/compresr/squeeze/internal/pipes/prompt"
	"github.com/compresr/squeeze/internal/store"
)

// Router routes requests to the appropriate pipe by strategy.
type Router struct {
	config        *config.Config
	logOutputPool *Pool
	promptPools   map[string]*Pool
}

// Pool manages workers for a pipe type.
type Pool struct {
	workers chan pipes.Pipe
	size    int
}

func newPool(size int, factory func() pipes.Pipe) *Pool {
	p := &Pool{workers: make(chan pipes.Pipe, size), size: size}
	for i := 0; i < size; i++ {
		p.workers <- factory()
	}
	return p
}

func (p *Pool) acquire() pipes.Pipe     { return <-p.workers }
func (p *Pool) release(pipe pipes.Pipe) { p.workers <- pipe }

// NewRouter creates a new router with worker pools.
func NewRouter(cfg *config.Config, st store.Store) *Router {
	r := &Router{
		config: cfg,
		logOutputPool: newPool(DefaultPoolSize, func() pipes.Pipe {
			return logoutput.New(cfg.Pipes.LogOutput, st)
		}),
		promptPools: make(map[string]*Pool, len(pipes.PromptStrategies)),
	}
	for _, strategy := range pipes.PromptStrategies {
		strategy := strategy
		r.promptPools[strategy] = newPool(DefaultPoolSize, func() pipes.Pipe {
			return prompt.NewWithStrategy(cfg.Pipes.Prompt, strategy)
		})
	}
	return r
}

// Route returns the pool serving strategy.
func (r *Router) Route(strategy string) (*Pool, error) {
	switch {
	case strategy == "" || strategy == pipes.StrategyHeuristic || strategy == pipes.StrategyPassthrough:
		return r.logOutputPool, nil
	case pipes.IsPromptStrategy(strategy):
		return r.promptPools[strategy], nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// Process routes ctx to the pipe for strategy and returns the reduced text.
// On pipe failure the original input is returned with the error.
func (r *Router) Process(ctx *pipes.PipeContext, strategy string) (string, error) {
	pool, err := r.Route(strategy)
	if err != nil {
		return ctx.Input, err
	}

	worker := pool.acquire()
	defer pool.release(worker)

	out, err := worker.Process(ctx)
	if err != nil {
		log.Error().Err(err).Str("pipe", worker.Name()).Str("strategy", strategy).Msg("pipe failed")
		return ctx.Input, err
	}
	return out, nil
}
