package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/config"
	"github.com/compresr/squeeze/internal/monitoring"
	"github.com/compresr/squeeze/internal/pipes"
	"github.com/compresr/squeeze/internal/tokens"
	"github.com/compresr/squeeze/internal/usage"
)

// Clipboard access is swapped out in tests.
var (
	readClipboard  = clipboard.ReadAll
	writeClipboard = clipboard.WriteAll
)

type compactFlags struct {
	file          string
	tail          int
	strip         string
	fromClipboard bool
	copyResult    bool
	asJSON        bool
	stats         bool
	estimate      bool
	model         string
	usageDB       string
	debug         bool
}

// compactOutput is the --json document.
type compactOutput struct {
	compactor.Result
	Saved     int          `json:"saved"`
	Ratio     float64      `json:"ratio"`
	Lines     int          `json:"lines"`
	KeptLines int          `json:"keptLines"`
	Fallback  bool         `json:"fallback"`
	Tokens    tokens.Stats `json:"tokens"`
}

func parseCompactFlags(args []string, stderr io.Writer) (*compactFlags, error) {
	f := &compactFlags{}
	fs := flag.NewFlagSet("compact", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&f.tail, "tail", compactor.DefaultTailLines, "fallback window when no error line is found")
	fs.StringVar(&f.strip, "strip", string(compactor.StripSGR), "escape stripping: sgr or all")
	fs.BoolVar(&f.fromClipboard, "clipboard", false, "read input from the system clipboard")
	fs.BoolVar(&f.copyResult, "copy", false, "copy the compacted text to the clipboard")
	fs.BoolVar(&f.asJSON, "json", false, "print a JSON document instead of plain text")
	fs.BoolVar(&f.stats, "stats", false, "print size and token savings to stderr")
	fs.BoolVar(&f.estimate, "estimate", false, "estimate tokens as chars/4 instead of loading a tokenizer")
	fs.StringVar(&f.model, "model", "", "model name used to pick the tokenizer")
	fs.StringVar(&f.usageDB, "usage-db", os.Getenv(config.EnvUsageDB), "record usage in this SQLite file")
	fs.BoolVar(&f.debug, "debug", false, "log which rules kept which lines")

	// Flags may follow the file argument: `squeeze compact build.log --stats`
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		if f.file != "" {
			return nil, fmt.Errorf("%w: more than one input file given", errUsage)
		}
		f.file = fs.Arg(0)
		args = fs.Args()[1:]
	}

	if f.fromClipboard && f.file != "" {
		return nil, fmt.Errorf("%w: --clipboard and a file are mutually exclusive", errUsage)
	}
	opts := compactor.Options{TailLines: f.tail, StripMode: compactor.StripMode(f.strip)}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return f, nil
}

// readInput picks the input source: clipboard, file, or piped stdin.
func readInput(f *compactFlags, stdin io.Reader, isTTY bool) (string, error) {
	switch {
	case f.fromClipboard:
		text, err := readClipboard()
		if err != nil {
			return "", fmt.Errorf("failed to read clipboard: %w", err)
		}
		return text, nil
	case f.file != "" && f.file != "-":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(data), nil
	case isTTY:
		return "", fmt.Errorf("%w: no input; pass a file, pipe output in, or use --clipboard", errUsage)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// runCompact compacts one input and writes the result to stdout.
// Statistics and logs go to stderr.
func runCompact(args []string, stdin io.Reader, stdout, stderr io.Writer, isTTY bool) error {
	f, err := parseCompactFlags(args, stderr)
	if err != nil {
		return err
	}

	setupLogging(f.debug, stderr)
	if !f.debug {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	text, err := readInput(f, stdin, isTTY)
	if err != nil {
		return err
	}

	start := time.Now()
	c := compactor.New(compactor.Options{TailLines: f.tail, StripMode: compactor.StripMode(f.strip)})
	res, rep := c.Run(text)

	log.Debug().
		Int("lines", rep.Lines).
		Int("kept", rep.Kept).
		Bool("fallback", rep.Fallback).
		Interface("by_rule", rep.ByRule).
		Dur("took", time.Since(start)).
		Msg("compacted")

	needTokens := f.asJSON || f.stats || f.usageDB != ""
	var tok tokens.Stats
	if needTokens {
		counter := tokens.NewCounter(tokens.Config{Enabled: !f.estimate})
		tok = counter.Compare(f.model, text, res.Compacted)
	}

	if f.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(compactOutput{
			Result:    res,
			Saved:     res.Saved(),
			Ratio:     res.Ratio(),
			Lines:     rep.Lines,
			KeptLines: rep.Kept,
			Fallback:  rep.Fallback,
			Tokens:    tok,
		})
	} else {
		err = writeText(stdout, res.Compacted)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if f.copyResult {
		if err := writeClipboard(res.Compacted); err != nil {
			return fmt.Errorf("failed to write clipboard: %w", err)
		}
	}

	if f.stats {
		printStats(stderr, text, res, rep, tok)
	}

	if f.usageDB != "" {
		if err := recordUsage(f, res, rep, tok); err != nil {
			// Usage is best-effort; the compacted output is already written.
			log.Warn().Err(err).Str("path", f.usageDB).Msg("failed to record usage")
		}
	}
	return nil
}

func writeText(w io.Writer, text string) error {
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

// printStats writes the human summary, e.g.
// "Reduced 12 kB to 1.1 kB (10,904 chars saved, 91%)".
func printStats(w io.Writer, original string, res compactor.Result, rep compactor.Report, tok tokens.Stats) {
	pct := 0.0
	if res.OriginalSize > 0 {
		pct = float64(res.Saved()) / float64(res.OriginalSize) * 100
	}
	fmt.Fprintf(w, "Reduced %s to %s (%s chars saved, %.0f%%)\n",
		humanize.Bytes(uint64(len(original))),
		humanize.Bytes(uint64(len(res.Compacted))),
		humanize.Comma(int64(res.Saved())),
		pct,
	)
	fmt.Fprintf(w, "Tokens: %s -> %s, kept %s of %s lines",
		humanize.Comma(int64(tok.OriginalTokens)),
		humanize.Comma(int64(tok.CompactedTokens)),
		humanize.Comma(int64(rep.Kept)),
		humanize.Comma(int64(rep.Lines)),
	)
	if rep.Fallback {
		fmt.Fprint(w, " (no error lines, showing tail)")
	}
	fmt.Fprintln(w)
}

func recordUsage(f *compactFlags, res compactor.Result, rep compactor.Report, tok tokens.Stats) error {
	st, err := usage.Open(f.usageDB)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return st.Record(ctx, usage.Event{
		RequestID:       uuid.New().String(),
		Source:          string(monitoring.SourceCLI),
		Strategy:        pipes.StrategyHeuristic,
		Model:           f.model,
		OriginalSize:    res.OriginalSize,
		CompactedSize:   res.CompactedSize,
		OriginalTokens:  tok.OriginalTokens,
		CompactedTokens: tok.CompactedTokens,
		Fallback:        rep.Fallback,
	})
}

// runUsage prints the usage summary and the most recent events.
func runUsage(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", os.Getenv(config.EnvUsageDB), "usage SQLite file")
	recent := fs.Int("recent", 10, "number of recent events to list")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("%w: --db or %s is required", errUsage, config.EnvUsageDB)
	}

	st, err := usage.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	sum, err := st.Summary(ctx)
	if err != nil {
		return err
	}
	events, err := st.Recent(ctx, *recent)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Summary usage.Summary `json:"summary"`
			Recent  []usage.Event `json:"recent"`
		}{sum, events})
	}

	fmt.Fprintf(stdout, "Compactions: %s (%s fell back to tail)\n",
		humanize.Comma(sum.Compactions), humanize.Comma(sum.Fallbacks))
	fmt.Fprintf(stdout, "Characters:  %s in, %s out\n",
		humanize.Comma(sum.CharsIn), humanize.Comma(sum.CharsOut))
	fmt.Fprintf(stdout, "Tokens saved: %s\n", humanize.Comma(sum.TokensSaved))
	if len(events) > 0 {
		fmt.Fprintln(stdout)
		for _, e := range events {
			fmt.Fprintf(stdout, "  %-12s %-9s %s -> %s chars\n",
				humanize.Time(e.CreatedAt), e.Source,
				humanize.Comma(int64(e.OriginalSize)), humanize.Comma(int64(e.CompactedSize)))
		}
	}
	return nil
}
