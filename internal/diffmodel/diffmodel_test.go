package diffmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatch = `@@ -1,4 +1,5 @@
 line 1
-old line 2
+new line 2
+added line
 line 3`

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    LineKind
		content string
	}{
		{"hunk header", "@@ -1,4 +1,5 @@", HunkHeader, "@@ -1,4 +1,5 @@"},
		{"added", "+new line", Added, "new line"},
		{"removed", "-old line", Removed, "old line"},
		{"context", " unchanged", Context, "unchanged"},
		{"meta diff", "diff --git a/f b/f", Meta, "diff --git a/f b/f"},
		{"meta index", "index 123..456 100644", Meta, "index 123..456 100644"},
		{"meta old file", "--- a/f", Meta, "--- a/f"},
		{"meta new file", "+++ b/f", Meta, "+++ b/f"},
		{"no prefix falls back to context", "no prefix", Context, "no prefix"},
		{"empty falls back to context", "", Context, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, content := Classify(tt.line)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.content, content)
		})
	}
}

func TestParseHunkHeader(t *testing.T) {
	tests := []struct {
		header   string
		oldStart int
		newStart int
		ok       bool
	}{
		{"@@ -1,4 +1,5 @@", 1, 1, true},
		{"@@ -10,3 +15,7 @@", 10, 15, true},
		{"@@ -1 +1 @@", 1, 1, true},
		{"@@ -1 +42", 1, 42, true},
		{"@@ garbage @@", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			os, ns, ok := parseHunkHeader(tt.header)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.oldStart, os)
				assert.Equal(t, tt.newStart, ns)
			}
		})
	}
}

func TestParsePatch(t *testing.T) {
	hunks := ParsePatch(samplePatch)
	require.Len(t, hunks, 1)

	lines := hunks[0].Lines
	require.Len(t, lines, 6)

	assert.Equal(t, HunkHeader, lines[0].Kind)
	assert.Equal(t, 0, lines[0].NewLine)

	assert.Equal(t, Context, lines[1].Kind)
	assert.Equal(t, "line 1", lines[1].Content)
	assert.Equal(t, 1, lines[1].OldLine)
	assert.Equal(t, 1, lines[1].NewLine)

	assert.Equal(t, Removed, lines[2].Kind)
	assert.Equal(t, "old line 2", lines[2].Content)
	assert.Equal(t, 2, lines[2].OldLine)
	assert.Equal(t, 0, lines[2].NewLine)

	assert.Equal(t, Added, lines[3].Kind)
	assert.Equal(t, "new line 2", lines[3].Content)
	assert.Equal(t, 2, lines[3].NewLine)

	assert.Equal(t, Added, lines[4].Kind)
	assert.Equal(t, 3, lines[4].NewLine)

	assert.Equal(t, Context, lines[5].Kind)
	assert.Equal(t, 3, lines[5].OldLine)
	assert.Equal(t, 4, lines[5].NewLine)
}

func TestParsePatchMultiHunk(t *testing.T) {
	patch := "@@ -1,3 +1,3 @@\n-old1\n+new1\n ctx\n@@ -10,3 +10,3 @@\n-old2\n+new2\n ctx2"
	hunks := ParsePatch(patch)
	require.Len(t, hunks, 2)
	assert.Equal(t, 10, hunks[1].NewStart)
	assert.Equal(t, 10, hunks[1].Lines[2].NewLine)
}

func TestParsePatchEmpty(t *testing.T) {
	assert.Empty(t, ParsePatch(""))
}

func TestParsePatchMalformedHunkSkipped(t *testing.T) {
	patch := "@@ broken @@\n+dropped\n@@ -1,1 +1,1 @@\n+kept"
	hunks := ParsePatch(patch)
	require.Len(t, hunks, 1)
	require.Len(t, hunks[0].Lines, 2)
	assert.Equal(t, "kept", hunks[0].Lines[1].Content)
}

func TestParsePatchRoundTrip(t *testing.T) {
	var raw []string
	for _, line := range Lines(ParsePatch(samplePatch)) {
		switch line.Kind {
		case Added:
			raw = append(raw, "+"+line.Content)
		case Removed:
			raw = append(raw, "-"+line.Content)
		case Context:
			raw = append(raw, " "+line.Content)
		case HunkHeader:
			raw = append(raw, line.Content)
		}
	}
	assert.Equal(t, samplePatch, strings.Join(raw, "\n"))
}

func TestPatchHash(t *testing.T) {
	h1 := PatchHash(samplePatch)
	h2 := PatchHash(samplePatch)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, PatchHash(samplePatch+"\n extra"))
	assert.NotZero(t, PatchHash(""))
}

func TestLineNumberToPosition(t *testing.T) {
	// First @@ is not counted; removed lines count toward position but
	// carry no new-file line number.
	tests := []struct {
		line int
		pos  int
		ok   bool
	}{
		{1, 1, true},
		{2, 3, true},
		{3, 4, true},
		{4, 5, true},
		{999, 0, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		pos, ok := LineNumberToPosition(samplePatch, tt.line)
		assert.Equal(t, tt.ok, ok, "line %d", tt.line)
		assert.Equal(t, tt.pos, pos, "line %d", tt.line)
	}
}

func TestLineNumberToPositionMultiHunk(t *testing.T) {
	patch := "@@ -1,3 +1,3 @@\n-old1\n+new1\n ctx\n@@ -10,2 +10,2 @@\n-old2\n+new2"
	pos, ok := LineNumberToPosition(patch, 1)
	require.True(t, ok)
	assert.Equal(t, 2, pos)

	pos, ok = LineNumberToPosition(patch, 2)
	require.True(t, ok)
	assert.Equal(t, 3, pos)

	// The second @@ header occupies position 4.
	pos, ok = LineNumberToPosition(patch, 10)
	require.True(t, ok)
	assert.Equal(t, 6, pos)
}

func TestLineNumberToPositionWithMetaLines(t *testing.T) {
	patch := "diff --git a/foo.go b/foo.go\nindex 123..456 100644\n--- a/foo.go\n+++ b/foo.go\n@@ -1,2 +1,3 @@\n func main() {\n+\tprintln(\"hello\")\n }"
	for line, want := range map[int]int{1: 1, 2: 2, 3: 3} {
		pos, ok := LineNumberToPosition(patch, line)
		require.True(t, ok, "line %d", line)
		assert.Equal(t, want, pos, "line %d", line)
	}
}
