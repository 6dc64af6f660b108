package marker

import "strings"

// Default marker tokens.
const (
	DefaultStartToken = "// START_HIGHLIGHT"
	DefaultEndToken   = "// END_HIGHLIGHT"
)

// Tokens holds the literal start and end marker strings.
// An empty token never matches a line.
type Tokens struct {
	Start string
	End   string
}

// DefaultTokens returns the default marker pair.
func DefaultTokens() Tokens {
	return Tokens{Start: DefaultStartToken, End: DefaultEndToken}
}

// Span locates the highlighted region of a source block.
//
// When HasMarkers is true, 0 <= StartLine < EndLine < line count.
// A degenerate span has HasMarkers false and both indices set to -1.
type Span struct {
	HasMarkers bool
	StartLine  int
	EndLine    int
}

// Degenerate is the span returned when no valid marker pair exists.
var Degenerate = Span{HasMarkers: false, StartLine: -1, EndLine: -1}

// Locate scans source line by line for a marker pair.
//
// Behavior:
//   - A line containing start records its index; a later start line
//     overrides an earlier one.
//   - The first line containing end (and not start) stops the scan, even
//     when no start line has been seen yet. Later end lines are ignored.
//   - The span is degenerate when no start or no end was seen, or when the
//     end index is not after the start index.
func Locate(source, start, end string) Span {
	startIdx, endIdx := -1, -1
	for i, line := range splitLines(source) {
		if contains(line, start) {
			startIdx = i
		} else if contains(line, end) {
			endIdx = i
			break
		}
	}
	if startIdx == -1 || endIdx == -1 || startIdx >= endIdx {
		return Degenerate
	}
	return Span{HasMarkers: true, StartLine: startIdx, EndLine: endIdx}
}

// ExtractVisible returns the lines strictly between the span's marker lines,
// joined with newlines. A degenerate span returns source unchanged.
func ExtractVisible(source string, span Span) string {
	if !span.HasMarkers {
		return source
	}
	lines := splitLines(source)
	if span.EndLine >= len(lines) || span.StartLine < 0 {
		return source
	}
	return strings.Join(lines[span.StartLine+1:span.EndLine], "\n")
}

// StripMarkerLines removes every line containing start or end.
// It works per line and does not depend on the pair being well formed,
// so its output never carries marker syntax.
func StripMarkerLines(source, start, end string) string {
	lines := splitLines(source)
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if contains(line, start) || contains(line, end) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func splitLines(source string) []string {
	return strings.Split(source, "\n")
}

func contains(line, token string) bool {
	return token != "" && strings.Contains(line, token)
}
