package cache

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dharper/prview/internal/diffmodel"
	"github.com/dharper/prview/internal/syntax"
)

var (
	styleAdded   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleRemoved = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleContext = lipgloss.NewStyle()
	styleHunk    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)

	bgAdded   = lipgloss.Color("22")
	bgRemoved = lipgloss.Color("52")
)

// BuildInput identifies one file's diff for the builder. Path is used only
// for language detection.
type BuildInput struct {
	PR        PRKey
	FileIndex int
	Path      string
	Patch     string
}

// BuildPlain produces a diff cache with only diff-colour styles. It is the
// synchronous fast path on file transition; the highlighted build replaces
// it when the worker finishes.
func BuildPlain(in BuildInput) *DiffCache {
	hunks := diffmodel.ParsePatch(in.Patch)
	interner := NewInterner()
	dc := &DiffCache{
		FileIndex: in.FileIndex,
		PatchHash: diffmodel.PatchHash(in.Patch),
		Interner:  interner,
	}

	for _, line := range diffmodel.Lines(hunks) {
		dc.Lines = append(dc.Lines, CachedLine{
			Kind:    line.Kind,
			NewLine: line.NewLine,
			Spans: []Span{{
				Content: interner.Intern(line.Content),
				Style:   plainStyle(line.Kind),
			}},
		})
	}
	return dc
}

func plainStyle(kind diffmodel.LineKind) lipgloss.Style {
	switch kind {
	case diffmodel.Added:
		return styleAdded
	case diffmodel.Removed:
		return styleRemoved
	case diffmodel.HunkHeader:
		return styleHunk
	default:
		return styleContext
	}
}

// BuildHighlighted produces a diff cache with syntax highlighting overlaid
// on the diff colours. The source buffer handed to the highlighter is
// reassembled from added and context lines only; removed lines usually make
// the buffer syntactically invalid, so they keep their plain diff colour.
// When no lexer matches, the result falls back to plain styling but is still
// marked highlighted so it is not rebuilt forever.
func BuildHighlighted(pool *syntax.Pool, in BuildInput) *DiffCache {
	dc := BuildPlain(in)
	dc.Highlighted = true

	lang := syntax.DetectLanguage(in.Path)
	if lang == "" {
		return dc
	}

	// Assemble the partial source and remember which source line each
	// patch line maps to.
	var srcLines []string
	patchToSrc := make(map[int]int)
	for patchIdx, line := range dc.Lines {
		if line.Kind == diffmodel.Added || line.Kind == diffmodel.Context {
			patchToSrc[patchIdx] = len(srcLines)
			srcLines = append(srcLines, dc.Interner.Resolve(line.Spans[0].Content))
		}
	}
	if len(srcLines) == 0 {
		return dc
	}

	prefix, virtual := syntax.PrimingTag(lang, srcLines[0])
	source := prefix + strings.Join(srcLines, "\n")

	hl, err := syntax.Highlight(pool, source, lang, virtual)
	if err != nil {
		return dc
	}

	interner := NewInterner()
	rebuilt := make([]CachedLine, len(dc.Lines))
	for patchIdx, line := range dc.Lines {
		content := dc.Interner.Resolve(line.Spans[0].Content)
		var spans []syntax.Span
		if srcIdx, ok := patchToSrc[patchIdx]; ok {
			spans = hl.Line(srcIdx)
		}
		rebuilt[patchIdx] = CachedLine{
			Kind:    line.Kind,
			NewLine: line.NewLine,
			Spans:   overlayLine(interner, content, line.Kind, spans),
		}
	}

	dc.Lines = rebuilt
	dc.Interner = interner
	return dc
}

// overlayLine splits a line's content into spans: highlighted ranges take
// the capture style, gaps keep the diff colour, and added lines carry a
// background tint so the change remains visible under highlighting.
func overlayLine(interner *Interner, content string, kind diffmodel.LineKind, spans []syntax.Span) []Span {
	base := plainStyle(kind)
	if len(spans) == 0 {
		return []Span{{Content: interner.Intern(content), Style: base}}
	}

	var tinted func(lipgloss.Style) lipgloss.Style
	switch kind {
	case diffmodel.Added:
		tinted = func(s lipgloss.Style) lipgloss.Style { return s.Background(bgAdded) }
	default:
		tinted = func(s lipgloss.Style) lipgloss.Style { return s }
	}

	var out []Span
	col := 0
	for _, span := range spans {
		start, end := span.Start, span.End
		if start < col {
			start = col
		}
		if end > len(content) {
			end = len(content)
		}
		if start >= end {
			continue
		}
		if start > col {
			out = append(out, Span{Content: interner.Intern(content[col:start]), Style: tinted(base)})
		}
		out = append(out, Span{Content: interner.Intern(content[start:end]), Style: tinted(span.Style)})
		col = end
	}
	if col < len(content) {
		out = append(out, Span{Content: interner.Intern(content[col:]), Style: tinted(base)})
	}
	if len(out) == 0 {
		out = []Span{{Content: interner.Intern(""), Style: base}}
	}
	return out
}
