package syntax

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/charmbracelet/lipgloss"
)

// Span is a styled byte range within a single source line. Start and End are
// byte columns, End exclusive. Spans on a line are sorted by Start and never
// overlap.
type Span struct {
	Start int
	End   int
	Style lipgloss.Style
}

// LineHighlights holds the styled spans for each line of one source buffer.
type LineHighlights struct {
	lines [][]Span
}

// Line returns the spans for a 0-based source line, nil when the line has no
// styled spans or is out of range.
func (h *LineHighlights) Line(i int) []Span {
	if h == nil || i < 0 || i >= len(h.lines) {
		return nil
	}
	return h.lines[i]
}

// LineCount returns the number of source lines covered.
func (h *LineHighlights) LineCount() int {
	if h == nil {
		return 0
	}
	return len(h.lines)
}

// PrimingTag returns synthetic leading lines that coax the lexer into the
// right sub-grammar for a partial component-file buffer, for example a
// script tag for a .vue file whose diff only touches the script section.
// The returned count is the number of virtual lines callers must pass to
// Highlight so their captures are discarded.
func PrimingTag(lang, firstLine string) (prefix string, virtualLines int) {
	switch lang {
	case "vue", "Svelte":
		trimmed := strings.TrimSpace(firstLine)
		if strings.HasPrefix(trimmed, "<") {
			return "", 0
		}
		return "<script lang=\"ts\">\n", 1
	default:
		return "", 0
	}
}

// Highlight tokenises the whole source buffer and maps tokens onto per-line
// spans. Tokens crossing a newline are split at the boundary so neither half
// leaks into the wrong line. The first virtualLines lines are treated as
// priming material and dropped from the result, so the returned highlights
// index real source lines from zero.
func Highlight(pool *Pool, source, lang string, virtualLines int) (*LineHighlights, error) {
	lexer := pool.Lexer(lang)
	if lexer == nil {
		return nil, fmt.Errorf("no lexer for language %q", lang)
	}

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return nil, fmt.Errorf("tokenise %s: %w", lang, err)
	}

	lineCount := strings.Count(source, "\n") + 1
	lines := make([][]Span, lineCount)
	styles := pool.Styles()

	lineIdx := 0
	col := 0
	for token := it(); token != chroma.EOF; token = it() {
		style, styled := styles.Style(token.Type)
		value := token.Value
		for len(value) > 0 {
			nl := strings.IndexByte(value, '\n')
			var segment string
			if nl < 0 {
				segment = value
				value = ""
			} else {
				segment = value[:nl]
				value = value[nl+1:]
			}
			if styled && len(segment) > 0 && lineIdx < lineCount {
				lines[lineIdx] = append(lines[lineIdx], Span{
					Start: col,
					End:   col + len(segment),
					Style: style,
				})
			}
			if nl < 0 {
				col += len(segment)
			} else {
				lineIdx++
				col = 0
			}
		}
	}

	if virtualLines > 0 {
		if virtualLines >= len(lines) {
			lines = nil
		} else {
			lines = lines[virtualLines:]
		}
	}
	return &LineHighlights{lines: lines}, nil
}
