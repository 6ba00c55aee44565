package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "Go"},
		{"internal/app/model.go", "Go"},
		{"src/lib.rs", "Rust"},
		{"component.vue", "vue"},
		{"config.toml", "TOML"},
		{"README.md", "markdown"},
		{"noextension", ""},
		{"archive.xyzunknown", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.path), tt.path)
	}
}

func TestPoolMemoisesLexers(t *testing.T) {
	pool := NewPool()
	first := pool.Lexer("Go")
	require.NotNil(t, first)
	assert.Same(t, first, pool.Lexer("Go"))
	assert.Nil(t, pool.Lexer(""))
	assert.Nil(t, pool.Lexer("not-a-language"))
}

func TestHighlightGoSource(t *testing.T) {
	pool := NewPool()
	src := "package main\n\nfunc main() {\n\treturn\n}"
	hl, err := Highlight(pool, src, "Go", 0)
	require.NoError(t, err)
	require.Equal(t, 5, hl.LineCount())

	// "package" on line 0 is a keyword span starting at column 0.
	line0 := hl.Line(0)
	require.NotEmpty(t, line0)
	assert.Equal(t, 0, line0[0].Start)
	assert.Equal(t, len("package"), line0[0].End)

	// The blank line carries no spans.
	assert.Empty(t, hl.Line(1))
}

func TestHighlightSplitsCrossLineTokens(t *testing.T) {
	pool := NewPool()
	src := "/* first\nsecond */\npackage main"
	hl, err := Highlight(pool, src, "Go", 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		for _, span := range hl.Line(i) {
			assert.GreaterOrEqual(t, span.Start, 0, "line %d", i)
			lineLen := []int{len("/* first"), len("second */")}[i]
			assert.LessOrEqual(t, span.End, lineLen, "line %d span must not leak past newline", i)
		}
	}
}

func TestHighlightUnknownLanguage(t *testing.T) {
	pool := NewPool()
	_, err := Highlight(pool, "text", "not-a-language", 0)
	assert.Error(t, err)
}

func TestHighlightDiscardsVirtualLines(t *testing.T) {
	pool := NewPool()
	prefix, virtual := PrimingTag("vue", "const x = 1")
	require.Equal(t, 1, virtual)

	src := prefix + "const x = 1"
	hl, err := Highlight(pool, src, "vue", virtual)
	require.NoError(t, err)

	// Line 0 of the result is the real first line, not the priming tag.
	require.Equal(t, 1, hl.LineCount())
	for _, span := range hl.Line(0) {
		assert.LessOrEqual(t, span.End, len("const x = 1"))
	}
}

func TestPrimingTagSkippedWhenMarkupPresent(t *testing.T) {
	prefix, virtual := PrimingTag("vue", "<template>")
	assert.Empty(t, prefix)
	assert.Zero(t, virtual)

	prefix, virtual = PrimingTag("Go", "package main")
	assert.Empty(t, prefix)
	assert.Zero(t, virtual)
}

func TestStyleCacheStability(t *testing.T) {
	pool := NewPool()
	src := "package main"
	a, err := Highlight(pool, src, "Go", 0)
	require.NoError(t, err)
	b, err := Highlight(NewPool(), src, "Go", 0)
	require.NoError(t, err)

	require.Equal(t, a.LineCount(), b.LineCount())
	for i := 0; i < a.LineCount(); i++ {
		require.Equal(t, len(a.Line(i)), len(b.Line(i)), "line %d", i)
		for j := range a.Line(i) {
			assert.Equal(t, a.Line(i)[j].Start, b.Line(i)[j].Start)
			assert.Equal(t, a.Line(i)[j].End, b.Line(i)[j].End)
		}
	}
}
