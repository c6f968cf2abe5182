package compactor_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/compresr/squeeze/internal/compactor"
)

func TestStripEscapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "no color here", "no color here"},
		{"reset", "\x1b[0mtext", "text"},
		{"bare_sgr", "\x1b[mtext", "text"},
		{"truecolor", "\x1b[38;2;23;128;68mgreen\x1b[0m", "green"},
		{"multiple", "\x1b[1m\x1b[31mbold red\x1b[0m done", "bold red done"},
		{"cursor_untouched", "\x1b[2Kline", "\x1b[2Kline"},
		{"spliced", "\x1b[\x1b[31mm", ""},
		{"multiline", "\x1b[32mok\x1b[0m\n\x1b[31mfail\x1b[0m", "ok\nfail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compactor.StripEscapes(tt.input))
		})
	}
}

func TestStripEscapes_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"\x1b[31mred\x1b[0m",
		"\x1b[\x1b[31mm",
		"\x1b[\x1b[\x1b[1mmm tail",
		"\x1b[31",
		"\x1b\x1b[0m[0m",
	}
	for _, in := range inputs {
		once := compactor.StripEscapes(in)
		assert.Equal(t, once, compactor.StripEscapes(once), "input %q", in)
	}
}

func TestStripEscapes_DeepNestingIsLinear(t *testing.T) {
	const depth = 16000 // 48KB of input
	input := strings.Repeat("\x1b[", depth) + strings.Repeat("m", depth)

	start := time.Now()
	got := compactor.StripEscapes(input)
	elapsed := time.Since(start)

	assert.Empty(t, got)
	assert.Less(t, elapsed, time.Second)
}

// repeatedReplace strips SGR sequences by rescanning until nothing matches.
func repeatedReplace(s string) string {
	sgr := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	for {
		next := sgr.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

func TestStripEscapes_MatchesRepeatedReplace(t *testing.T) {
	alphabet := []string{"\x1b", "[", "m", "1", ";", "x"}

	// Every string of up to 6 symbols, enumerated as base-6 numbers.
	var inputs []string
	for n := 1; n <= 6; n++ {
		total := 1
		for i := 0; i < n; i++ {
			total *= len(alphabet)
		}
		for code := 0; code < total; code++ {
			var b strings.Builder
			for i, v := 0, code; i < n; i, v = i+1, v/len(alphabet) {
				b.WriteString(alphabet[v%len(alphabet)])
			}
			inputs = append(inputs, b.String())
		}
	}
	inputs = append(inputs,
		"\x1b[\x1b[\x1b[1mm;mx",
		"\x1b[1;\x1b[0mx\x1b[m2m",
		"a\x1b\x1b\x1b[m[m[1mb",
		"\x1b[3\x1b[\x1b[mm1m\x1b[x",
	)

	for _, in := range inputs {
		if got, want := compactor.StripEscapes(in), repeatedReplace(in); got != want {
			t.Fatalf("StripEscapes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripAllEscapes(t *testing.T) {
	assert.Equal(t, "progress 50%", compactor.StripAllEscapes("\x1b[2K\x1b[1Gprogress 50%"))
	assert.Equal(t, "red", compactor.StripAllEscapes("\x1b[31mred\x1b[0m"))
}

func TestStripLeadingTimestamp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"iso_t", "2024-01-15T10:30:00 Connection established", "Connection established"},
		{"space_time", "2024-01-15 10:00:05 Processing request", "Processing request"},
		{"millis_zone", "2024-01-15T10:30:00.123Z worker up", "worker up"},
		{"offset", "2024-01-15T10:30:00+02:00 worker up", "worker up"},
		{"comma_millis", "2024-01-15 10:30:00,456 INFO boot", "INFO boot"},
		{"date_only", "2024-01-15 Deploy finished", "Deploy finished"},
		{"glued_token", "2024-01-15|svc|  message", "message"},
		{"tab_separator", "2024-01-15T10:30:00\tmessage", "message"},
		{"form_feed_separator", "2024-01-15T10:30:00\fmessage", "message"},
		{"mixed_blank_run", "2024-01-15 10:30:00 \t\r message", "message"},
		{"newline_not_separator", "2024-01-15T10:30:00\nmessage", "2024-01-15T10:30:00\nmessage"},
		{"mid_line", "Error at 2024-01-15 in processing", "Error at 2024-01-15 in processing"},
		{"no_trailing_space", "2024-01-15", "2024-01-15"},
		{"indented", "  2024-01-15 10:00:00 indented", "  2024-01-15 10:00:00 indented"},
		{"not_a_date", "20240115 message", "20240115 message"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compactor.StripLeadingTimestamp(tt.line))
		})
	}
}
