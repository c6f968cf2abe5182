package compactor

import (
	"regexp"
	"strings"
)

// Classification is the keep/discard verdict for one line, with the rule
// that decided it.
type Classification int

const (
	Discard Classification = iota
	KeepErrorMarker
	KeepStackFrame
	KeepSourceLocation
)

var (
	stackFramePattern     = regexp.MustCompile(`^\s*at\s`)
	sourceLocationPattern = regexp.MustCompile(`^\s*File\s".*",\sline\s\d+`)

	// Compared against the lowercased line.
	errorMarkers = []string{"error", "exception", "stack trace"}
)

// IsErrorMarkerLine reports whether the line mentions an error, an exception
// or a stack trace, in any case.
func IsErrorMarkerLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsStackFrameLine matches "at ..." frames (JVM, JavaScript, .NET).
func IsStackFrameLine(line string) bool {
	return stackFramePattern.MatchString(line)
}

// IsSourceLocationLine matches traceback frames of the form
// `File "<path>", line <N>`.
func IsSourceLocationLine(line string) bool {
	return sourceLocationPattern.MatchString(line)
}

// Classify evaluates the keep rules in order. It looks at the line alone.
func Classify(line string) Classification {
	switch {
	case IsErrorMarkerLine(line):
		return KeepErrorMarker
	case IsStackFrameLine(line):
		return KeepStackFrame
	case IsSourceLocationLine(line):
		return KeepSourceLocation
	default:
		return Discard
	}
}

// Keep reports whether the line survives filtering.
func (c Classification) Keep() bool { return c != Discard }

func (c Classification) String() string {
	switch c {
	case KeepErrorMarker:
		return "error_marker"
	case KeepStackFrame:
		return "stack_frame"
	case KeepSourceLocation:
		return "source_location"
	default:
		return "discard"
	}
}
