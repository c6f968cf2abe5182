package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/squeeze/internal/usage"
)

const buildLog = "2024-05-01 12:00:00 compiling module a\n" +
	"\x1b[32mok\x1b[0m module b\n" +
	"2024-05-01 12:00:02 \x1b[31mError: cannot find symbol\x1b[0m\n" +
	"    at Builder.run (builder.js:42:7)\n" +
	"done in 3s\n"

func stubClipboard(t *testing.T, content string) *string {
	t.Helper()
	written := new(string)
	origRead, origWrite := readClipboard, writeClipboard
	readClipboard = func() (string, error) { return content, nil }
	writeClipboard = func(s string) error { *written = s; return nil }
	t.Cleanup(func() { readClipboard, writeClipboard = origRead, origWrite })
	return written
}

func TestRunCompact_Stdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := runCompact([]string{"--estimate"}, strings.NewReader(buildLog), &stdout, &stderr, false)
	require.NoError(t, err)

	assert.Equal(t, "Error: cannot find symbol\n    at Builder.run (builder.js:42:7)\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRunCompact_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte(buildLog), 0o600))

	var stdout, stderr bytes.Buffer
	// Flags after the file argument are still parsed.
	err := runCompact([]string{path, "--stats", "--estimate"}, strings.NewReader(""), &stdout, &stderr, true)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Error: cannot find symbol")
	assert.Contains(t, stderr.String(), "Reduced ")
	assert.Contains(t, stderr.String(), "kept 2 of 6 lines")
}

func TestRunCompact_FallbackTail(t *testing.T) {
	input := "one\ntwo\nthree\nfour"

	var stdout, stderr bytes.Buffer
	err := runCompact([]string{"--tail", "2", "--stats", "--estimate"}, strings.NewReader(input), &stdout, &stderr, false)
	require.NoError(t, err)

	assert.Equal(t, "three\nfour\n", stdout.String())
	assert.Contains(t, stderr.String(), "showing tail")
}

func TestRunCompact_JSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := runCompact([]string{"--json", "--estimate"}, strings.NewReader(buildLog), &stdout, &stderr, false)
	require.NoError(t, err)

	var out compactOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "Error: cannot find symbol\n    at Builder.run (builder.js:42:7)", out.Compacted)
	assert.Equal(t, len([]rune(buildLog)), out.OriginalSize)
	assert.Equal(t, out.OriginalSize-out.CompactedSize, out.Saved)
	assert.Equal(t, 2, out.KeptLines)
	assert.False(t, out.Fallback)
	assert.Greater(t, out.Tokens.OriginalTokens, out.Tokens.CompactedTokens)
}

func TestRunCompact_Clipboard(t *testing.T) {
	written := stubClipboard(t, "fetching\nTypeError: x is undefined\n")

	var stdout, stderr bytes.Buffer
	err := runCompact([]string{"--clipboard", "--copy"}, strings.NewReader(""), &stdout, &stderr, true)
	require.NoError(t, err)

	assert.Equal(t, "TypeError: x is undefined\n", stdout.String())
	assert.Equal(t, "TypeError: x is undefined", *written)
}

func TestRunCompact_ClipboardReadError(t *testing.T) {
	stubClipboard(t, "")
	readClipboard = func() (string, error) { return "", errors.New("no clipboard utility") }

	err := runCompact([]string{"--clipboard"}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read clipboard")
}

func TestRunCompact_TTYWithoutInput(t *testing.T) {
	err := runCompact(nil, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUsage)
}

func TestRunCompact_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown strip mode", []string{"--strip", "osc"}},
		{"negative tail", []string{"--tail", "-1"}},
		{"two files", []string{"a.log", "b.log"}},
		{"clipboard and file", []string{"--clipboard", "a.log"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runCompact(tt.args, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, false)
			require.Error(t, err)
			assert.ErrorIs(t, err, errUsage)
		})
	}
}

func TestRunCompact_MissingFile(t *testing.T) {
	err := runCompact([]string{filepath.Join(t.TempDir(), "nope.log")}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errUsage)
}

func TestRunCompact_StripAll(t *testing.T) {
	input := "\x1b[2K\x1b[1Gprogress 100%\n\x1b]0;title\x07Error: disk full\n"

	var stdout bytes.Buffer
	err := runCompact([]string{"--strip", "all"}, strings.NewReader(input), &stdout, &bytes.Buffer{}, false)
	require.NoError(t, err)
	assert.Equal(t, "Error: disk full\n", stdout.String())
}

func TestRunCompact_RecordsUsage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")

	for i := 0; i < 2; i++ {
		err := runCompact([]string{"--estimate", "--usage-db", dbPath}, strings.NewReader(buildLog), &bytes.Buffer{}, &bytes.Buffer{}, false)
		require.NoError(t, err)
	}

	st, err := usage.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	sum, err := st.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Compactions)
	assert.Positive(t, sum.TokensSaved)

	events, err := st.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "cli", events[0].Source)
	assert.Equal(t, "heuristic", events[0].Strategy)
	assert.NotEmpty(t, events[0].RequestID)
}

func TestRunUsage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	err := runCompact([]string{"--estimate", "--usage-db", dbPath}, strings.NewReader(buildLog), &bytes.Buffer{}, &bytes.Buffer{}, false)
	require.NoError(t, err)

	var stdout bytes.Buffer
	require.NoError(t, runUsage([]string{"--db", dbPath}, &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), "Compactions: 1")
	assert.Contains(t, stdout.String(), "cli")

	stdout.Reset()
	require.NoError(t, runUsage([]string{"--db", dbPath, "--json"}, &stdout, &bytes.Buffer{}))
	var doc struct {
		Summary usage.Summary `json:"summary"`
		Recent  []usage.Event `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	assert.Equal(t, int64(1), doc.Summary.Compactions)
	assert.Len(t, doc.Recent, 1)
}

func TestRunUsage_RequiresDB(t *testing.T) {
	t.Setenv("SQUEEZE_USAGE_DB", "")
	err := runUsage(nil, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}
