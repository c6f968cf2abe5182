// Package compactor reduces terminal and log output to the lines a model
// needs to diagnose a failure.
//
// PIPELINE (single pass, no state between calls):
//  1. Strip escape sequences (color codes by default)
//  2. Strip leading YYYY-MM-DD timestamps, per line
//  3. Keep lines that mention errors/exceptions or look like stack frames
//  4. Nothing kept → fall back to the last TailLines lines of step 2
//  5. Join with "\n" and report sizes in characters (runes)
//
// Compact never fails. Callers that expect very large input should bound it
// before calling.
package compactor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultTailLines is the fallback window used when no line is kept.
const DefaultTailLines = 50

// Result is the output of one compaction.
type Result struct {
	Compacted     string `json:"compacted"`
	OriginalSize  int    `json:"originalSize"`
	CompactedSize int    `json:"compactedSize"`
}

// Saved returns how many characters were removed (negative if the output grew).
func (r Result) Saved() int { return r.OriginalSize - r.CompactedSize }

// Ratio returns CompactedSize/OriginalSize, or 1 for empty input.
func (r Result) Ratio() float64 {
	if r.OriginalSize == 0 {
		return 1.0
	}
	return float64(r.CompactedSize) / float64(r.OriginalSize)
}

// Report describes how a Result was produced.
type Report struct {
	Lines    int                    // lines after stripping
	Kept     int                    // lines in the output
	Fallback bool                   // true when the tail window was used
	ByRule   map[Classification]int // kept lines per matching rule
}

// Options tunes the pipeline. The zero value means defaults.
type Options struct {
	TailLines int       `yaml:"tail_lines"` // fallback window (default: 50)
	StripMode StripMode `yaml:"strip_mode"` // sgr | all (default: sgr)
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{TailLines: DefaultTailLines, StripMode: StripSGR}
}

// Validate rejects values that cannot be normalised silently.
func (o Options) Validate() error {
	if o.TailLines < 0 {
		return fmt.Errorf("tail_lines must be >= 0, got %d", o.TailLines)
	}
	if o.StripMode != "" && !o.StripMode.valid() {
		return fmt.Errorf("unknown strip_mode %q, must be 'sgr' or 'all'", o.StripMode)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.TailLines <= 0 {
		o.TailLines = DefaultTailLines
	}
	if !o.StripMode.valid() {
		o.StripMode = StripSGR
	}
	return o
}

// Compactor runs the pipeline with fixed options. It holds no mutable state
// and is safe for concurrent use.
type Compactor struct {
	opts Options
}

// New creates a Compactor. Invalid options fall back to defaults; call
// Options.Validate first to surface them as errors.
func New(opts Options) *Compactor {
	return &Compactor{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (c *Compactor) Options() Options { return c.opts }

var defaultCompactor = New(DefaultOptions())

// Compact runs the pipeline with default options.
func Compact(text string) Result {
	return defaultCompactor.Compact(text)
}

// Compact runs the pipeline on text.
func (c *Compactor) Compact(text string) Result {
	res, _ := c.Run(text)
	return res
}

// Run runs the pipeline and also returns a Report.
func (c *Compactor) Run(text string) (Result, Report) {
	lines := c.Clean(text)

	report := Report{Lines: len(lines), ByRule: make(map[Classification]int)}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		cls := Classify(line)
		if !cls.Keep() {
			continue
		}
		report.ByRule[cls]++
		kept = append(kept, line)
	}

	if len(kept) == 0 {
		kept = Tail(lines, c.opts.TailLines)
		report.Fallback = true
	}
	report.Kept = len(kept)

	compacted := strings.Join(kept, "\n")
	return Result{
		Compacted:     compacted,
		OriginalSize:  utf8.RuneCountInString(text),
		CompactedSize: utf8.RuneCountInString(compacted),
	}, report
}

// Clean applies the stripping stages and returns the resulting lines.
// "\r\n" is treated as a line break; a lone "\r" is content.
func (c *Compactor) Clean(text string) []string {
	var processed string
	if c.opts.StripMode == StripAll {
		processed = StripAllEscapes(text)
	} else {
		processed = StripEscapes(text)
	}
	processed = strings.ReplaceAll(processed, "\r\n", "\n")

	lines := strings.Split(processed, "\n")
	for i, line := range lines {
		lines[i] = StripLeadingTimestamp(line)
	}
	return lines
}

// Tail returns the last n lines (all of them if there are fewer).
func Tail(lines []string, n int) []string {
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
