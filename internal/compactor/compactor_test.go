package compactor_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/squeeze/internal/compactor"
)

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestCompact_ServerLogWithStackTrace(t *testing.T) {
	input := "\x1b[32m2024-01-15 10:00:00 Server started\x1b[0m\n" +
		"2024-01-15 10:00:05 Processing request\n" +
		"2024-01-15 10:00:10 Error: Connection refused\n" +
		"    at connect (net.js:42:10)\n" +
		"    at Socket.connect (net.js:100:5)\n" +
		"2024-01-15 10:00:15 Retrying..."

	want := "Error: Connection refused\n" +
		"    at connect (net.js:42:10)\n" +
		"    at Socket.connect (net.js:100:5)"

	res := compactor.Compact(input)

	assert.Equal(t, want, res.Compacted)
	assert.Equal(t, utf8.RuneCountInString(input), res.OriginalSize)
	assert.Equal(t, len(want), res.CompactedSize)
	assert.Less(t, res.CompactedSize, res.OriginalSize)
}

func TestCompact_CleanLogFallsBackToTail(t *testing.T) {
	var lines, want []string
	for i := 0; i < 60; i++ {
		lines = append(lines, fmt.Sprintf("2024-01-15 10:00:%02d request %d handled", i, i))
		if i >= 10 {
			want = append(want, fmt.Sprintf("request %d handled", i))
		}
	}

	res, report := compactor.New(compactor.DefaultOptions()).Run(strings.Join(lines, "\n"))

	assert.Equal(t, strings.Join(want, "\n"), res.Compacted)
	assert.True(t, report.Fallback)
	assert.Equal(t, 60, report.Lines)
	assert.Equal(t, 50, report.Kept)
}

func TestCompact_FewerLinesThanWindow(t *testing.T) {
	res := compactor.Compact("one\ntwo\nthree")
	assert.Equal(t, "one\ntwo\nthree", res.Compacted)
}

func TestCompact_EmptyInput(t *testing.T) {
	res := compactor.Compact("")
	assert.Equal(t, compactor.Result{Compacted: "", OriginalSize: 0, CompactedSize: 0}, res)
}

func TestCompact_PythonTraceback(t *testing.T) {
	input := strings.Join([]string{
		"Starting worker",
		"Traceback (most recent call last):",
		`  File "/app/main.py", line 12, in <module>`,
		"    main()",
		`  File "/app/main.py", line 8, in main`,
		"    1 / 0",
		"ZeroDivisionError: division by zero",
	}, "\n")

	res := compactor.Compact(input)

	assert.Equal(t, strings.Join([]string{
		`  File "/app/main.py", line 12, in <module>`,
		`  File "/app/main.py", line 8, in main`,
		"ZeroDivisionError: division by zero",
	}, "\n"), res.Compacted)
}

func TestCompact_CRLFLineEndings(t *testing.T) {
	res := compactor.Compact("ok\r\nError: boom\r\n    at main (a.js:1:1)\r\nok")
	assert.Equal(t, "Error: boom\n    at main (a.js:1:1)", res.Compacted)
}

func TestCompact_TailWindowOption(t *testing.T) {
	c := compactor.New(compactor.Options{TailLines: 2})
	res := c.Compact("a\nb\nc\nd")
	assert.Equal(t, "c\nd", res.Compacted)
}

func TestCompact_StripAllRemovesCursorSequences(t *testing.T) {
	input := "\x1b[2K\x1b[1Gbuilding...\nError: \x1b[1;31mfailed\x1b[0m"

	sgrOnly := compactor.Compact(input)
	assert.Equal(t, "Error: failed", sgrOnly.Compacted)

	all := compactor.New(compactor.Options{StripMode: compactor.StripAll})
	res := all.Compact("\x1b[2K\x1b[1Gbuilding...")
	assert.Equal(t, "building...", res.Compacted)
}

func TestCompact_InvalidUTF8IsTotal(t *testing.T) {
	input := "\xff\xfe garbage\nfatal ERROR \xc3\x28 here\n\x00\x01"
	var res compactor.Result
	require.NotPanics(t, func() { res = compactor.Compact(input) })
	assert.Equal(t, "fatal ERROR \xc3\x28 here", res.Compacted)
	assert.Equal(t, utf8.RuneCountInString(input), res.OriginalSize)
	assert.Equal(t, utf8.RuneCountInString(res.Compacted), res.CompactedSize)
}

func TestCompact_InvalidUTF8IsTotalStripAll(t *testing.T) {
	c := compactor.New(compactor.Options{StripMode: compactor.StripAll})
	inputs := []string{
		"\xff\xfe garbage\nfatal ERROR \xc3\x28 here\n\x00\x01",
		"\x1b[31m\xff ERROR\x1b[0m\n\x1b]8;;\xfe\x07link\x1b]8;;\x07",
		"\x1b[\xc3\x1b[1mm\x1b[2K\xe2\x82 Traceback",
		"\x1b",
		"\xc3",
	}
	for _, in := range inputs {
		var res compactor.Result
		require.NotPanics(t, func() { res, _ = c.Run(in) }, "input %q", in)
		assert.Equal(t, utf8.RuneCountInString(in), res.OriginalSize, "input %q", in)
		assert.Equal(t, utf8.RuneCountInString(res.Compacted), res.CompactedSize, "input %q", in)
		assert.LessOrEqual(t, res.CompactedSize, res.OriginalSize, "input %q", in)
	}

	res, _ := c.Run(inputs[0])
	assert.Contains(t, res.Compacted, "fatal ERROR")
}

func TestCompact_Deterministic(t *testing.T) {
	input := "2024-01-15 x\nException in thread main\n\tat Foo.bar(Foo.java:3)"
	first := compactor.Compact(input)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, first, compactor.Compact(input))
		}()
	}
	wg.Wait()
}

func TestRun_ReportCountsRules(t *testing.T) {
	input := "Error one\n    at f (x.js:1:1)\n  File \"a.py\", line 3\nnoise"
	_, report := compactor.New(compactor.Options{}).Run(input)

	assert.False(t, report.Fallback)
	assert.Equal(t, 3, report.Kept)
	assert.Equal(t, 1, report.ByRule[compactor.KeepErrorMarker])
	assert.Equal(t, 1, report.ByRule[compactor.KeepStackFrame])
	assert.Equal(t, 1, report.ByRule[compactor.KeepSourceLocation])
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestCompact_SizeAccounting(t *testing.T) {
	inputs := []string{
		"",
		"\n",
		"héllo wörld\nError: ünïcode",
		"\x1b[31mred\x1b[0m",
		strings.Repeat("line\n", 200),
	}
	for _, in := range inputs {
		res := compactor.Compact(in)
		assert.Equal(t, utf8.RuneCountInString(in), res.OriginalSize, "input %q", in)
		assert.Equal(t, utf8.RuneCountInString(res.Compacted), res.CompactedSize, "input %q", in)
		assert.GreaterOrEqual(t, res.CompactedSize, 0)
	}
}

func TestCompact_FallbackNonEmpty(t *testing.T) {
	inputs := []string{"\n", "\n\n\n", "just text", "a\nb\n"}
	for _, in := range inputs {
		res := compactor.Compact(in)
		assert.NotEmpty(t, res.Compacted, "input %q", in)
	}
}

func TestResult_RatioAndSaved(t *testing.T) {
	res := compactor.Result{OriginalSize: 200, CompactedSize: 50}
	assert.Equal(t, 150, res.Saved())
	assert.InDelta(t, 0.25, res.Ratio(), 1e-9)
	assert.Equal(t, 1.0, compactor.Result{}.Ratio())
}

func TestTail(t *testing.T) {
	lines := []string{"a", "b", "c"}
	assert.Equal(t, []string{"b", "c"}, compactor.Tail(lines, 2))
	assert.Equal(t, lines, compactor.Tail(lines, 5))
	assert.Equal(t, lines, compactor.Tail(lines, 0))
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    compactor.Options
		wantErr bool
	}{
		{"zero", compactor.Options{}, false},
		{"defaults", compactor.DefaultOptions(), false},
		{"strip_all", compactor.Options{StripMode: compactor.StripAll}, false},
		{"negative_tail", compactor.Options{TailLines: -1}, true},
		{"unknown_mode", compactor.Options{StripMode: "everything"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_NormalisesOptions(t *testing.T) {
	c := compactor.New(compactor.Options{TailLines: -3, StripMode: "bogus"})
	assert.Equal(t, compactor.DefaultOptions(), c.Options())
}
