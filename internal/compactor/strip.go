package compactor

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// StripMode selects how much terminal control markup is removed.
type StripMode string

const (
	StripSGR StripMode = "sgr" // color/style sequences only: ESC [ params m
	StripAll StripMode = "all" // every ANSI control sequence (cursor moves, OSC, ...)
)

const esc = 0x1b

// Date at line start, then the rest of the timestamp token, then the
// whitespace run (never a newline) that separates it from the message.
var leadingTimestampPattern = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:[.,]\d+)?)?(?:Z|[+-]\d{2}(?::?\d{2})?)?|\S*)[^\S\n]+`,
)

// sgrFrame is an ESC [ in the output that may still close into an SGR
// sequence. bad is the first output index after it that is not a digit or
// ';', or -1 while every byte so far is a parameter.
type sgrFrame struct {
	start int
	bad   int
}

// StripEscapes removes SGR color sequences (ESC [ params m). A removal can
// splice a new sequence together, e.g. "ESC[ESC[31mm"; those are removed too,
// so StripEscapes(StripEscapes(s)) == StripEscapes(s). Runs in one pass over
// text.
func StripEscapes(text string) string {
	if strings.IndexByte(text, esc) < 0 {
		return text
	}

	out := make([]byte, 0, len(text))
	var open []sgrFrame
	for i := 0; i < len(text); i++ {
		c := text[i]
		top := len(open) - 1
		if top >= 0 && open[top].bad >= len(out) {
			// The byte that broke this frame was removed with a nested sequence.
			open[top].bad = -1
		}

		switch {
		case c == 'm' && top >= 0 && open[top].bad < 0:
			out = out[:open[top].start]
			open = open[:top]
			continue
		case c == '[' && len(out) > 0 && out[len(out)-1] == esc:
			open = append(open, sgrFrame{start: len(out) - 1, bad: -1})
			out = append(out, c)
			continue
		}

		if top >= 0 && open[top].bad < 0 && !isSGRParam(c) {
			open[top].bad = len(out)
		}
		out = append(out, c)
	}
	return string(out)
}

func isSGRParam(c byte) bool {
	return c == ';' || (c >= '0' && c <= '9')
}

// StripAllEscapes removes every ANSI control sequence, then falls through to
// StripEscapes for any SGR fragments the parser left behind.
func StripAllEscapes(text string) string {
	return StripEscapes(ansi.Strip(text))
}

// StripLeadingTimestamp removes a YYYY-MM-DD timestamp prefix and the
// whitespace after it. Only the start of the line is considered.
func StripLeadingTimestamp(line string) string {
	loc := leadingTimestampPattern.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return line[loc[1]:]
}

func (m StripMode) valid() bool {
	return m == StripSGR || m == StripAll
}
