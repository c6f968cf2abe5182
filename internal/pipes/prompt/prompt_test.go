package prompt_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/squeeze/internal/pipes"
	"github.com/compresr/squeeze/internal/pipes/prompt"
)

func TestSimple(t *testing.T) {
	assert.Equal(t, "one two three", prompt.Simple("one two three", 5))
	assert.Equal(t, "one two...", prompt.Simple("one two three four", 2))
	assert.Equal(t, "", prompt.Simple("", 3))
}

func TestAlternate(t *testing.T) {
	// "is" and "be" are short words at odd positions.
	got := prompt.Alternate("this is a sentence to be compressed", nil)
	assert.Equal(t, "this a sentence to compressed", got)

	got = prompt.Alternate("this is a sentence", []string{"IS"})
	assert.Equal(t, "this is a sentence", got)
}

func TestStopwords(t *testing.T) {
	got := prompt.Stopwords("The server was unable to bind the port", nil)
	assert.Equal(t, "server unable bind port", got)

	got = prompt.Stopwords("Do not touch the config", []string{"do"})
	assert.Equal(t, "Do not touch config", got)
}

func TestApply(t *testing.T) {
	text := strings.Repeat("word ", 20)

	out, err := prompt.Apply(pipes.StrategySimple, text, prompt.Options{Rate: 0.5})
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("word ", 10))+"...", out)

	out, err = prompt.Apply(pipes.StrategySimple, text, prompt.Options{MaxWords: 3})
	require.NoError(t, err)
	assert.Equal(t, "word word word...", out)

	out, err = prompt.Apply(pipes.StrategyPassthrough, text, prompt.Options{})
	require.NoError(t, err)
	assert.Equal(t, text, out)

	_, err = prompt.Apply("lingua", text, prompt.Options{})
	assert.Error(t, err)
}

func TestPipe_Process(t *testing.T) {
	p := prompt.New(pipes.PromptConfig{Enabled: true, Strategy: pipes.StrategyStopwords})
	ctx := pipes.NewPipeContext(context.Background(), "What is the cause of the error")

	out, err := p.Process(ctx)
	require.NoError(t, err)

	assert.Equal(t, "What cause of error", out)
	assert.Equal(t, pipes.StatusCompacted, ctx.Status)
	assert.Equal(t, len("What is the cause of the error"), ctx.Result.OriginalSize)
	assert.Equal(t, len(out), ctx.Result.CompactedSize)
}

func TestPipe_DisabledPassesThrough(t *testing.T) {
	p := prompt.New(pipes.PromptConfig{Enabled: false})
	assert.Equal(t, pipes.StrategySimple, p.Strategy())

	ctx := pipes.NewPipeContext(context.Background(), "a b c")
	out, err := p.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a b c", out)
	assert.Equal(t, pipes.StatusPassthrough, ctx.Status)
}

func TestPipe_UnknownStrategy(t *testing.T) {
	p := prompt.NewWithStrategy(pipes.PromptConfig{Enabled: true}, "bogus")
	ctx := pipes.NewPipeContext(context.Background(), "keep me")

	out, err := p.Process(ctx)
	assert.Error(t, err)
	assert.Equal(t, "keep me", out)
}
