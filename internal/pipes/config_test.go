package pipes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/pipes"
)

func TestLogOutputConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     pipes.LogOutputConfig
		wantErr bool
	}{
		{"disabled_anything_goes", pipes.LogOutputConfig{Enabled: false, Strategy: "nope"}, false},
		{"heuristic", pipes.LogOutputConfig{Enabled: true, Strategy: pipes.StrategyHeuristic}, false},
		{"empty_strategy", pipes.LogOutputConfig{Enabled: true}, false},
		{"prompt_strategy_rejected", pipes.LogOutputConfig{Enabled: true, Strategy: pipes.StrategySimple}, true},
		{"negative_min", pipes.LogOutputConfig{Enabled: true, MinChars: -1}, true},
		{"negative_max", pipes.LogOutputConfig{Enabled: true, MaxInputBytes: -1}, true},
		{"bad_compactor", pipes.LogOutputConfig{Enabled: true, Compactor: compactor.Options{StripMode: "x"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPromptConfig_Validate(t *testing.T) {
	assert.NoError(t, (&pipes.PromptConfig{Enabled: true, Strategy: pipes.StrategyStopwords}).Validate())
	assert.NoError(t, (&pipes.PromptConfig{Enabled: true, Rate: 1}).Validate())
	assert.Error(t, (&pipes.PromptConfig{Enabled: true, Strategy: pipes.StrategyHeuristic}).Validate())
	assert.Error(t, (&pipes.PromptConfig{Enabled: true, Rate: 1.5}).Validate())
	assert.Error(t, (&pipes.PromptConfig{Enabled: true, MaxWords: -2}).Validate())
}

func TestStrategyHelpers(t *testing.T) {
	assert.True(t, pipes.IsPromptStrategy(pipes.StrategyAlternate))
	assert.False(t, pipes.IsPromptStrategy(pipes.StrategyHeuristic))
	assert.True(t, pipes.IsKnownStrategy(pipes.StrategyHeuristic))
	assert.True(t, pipes.IsKnownStrategy(pipes.StrategyPassthrough))
	assert.False(t, pipes.IsKnownStrategy("lingua"))
}
