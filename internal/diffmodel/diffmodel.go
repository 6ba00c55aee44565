// Package diffmodel parses unified-diff patches into hunks of classified
// lines and provides the hash identity used by the diff cache layers.
package diffmodel

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// LineKind classifies a single line of a patch.
type LineKind int

const (
	// Context is an unchanged line (leading space).
	Context LineKind = iota
	// Added is a line present only in the new version (leading +).
	Added
	// Removed is a line present only in the old version (leading -).
	Removed
	// HunkHeader is an @@ range marker.
	HunkHeader
	// Meta covers diff --git, index, --- and +++ lines.
	Meta
)

func (k LineKind) String() string {
	switch k {
	case Context:
		return "context"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case HunkHeader:
		return "hunk"
	case Meta:
		return "meta"
	}
	return "unknown"
}

// Line is one classified patch line. OldLine and NewLine are 1-based file
// line numbers; zero means the line has no number on that side.
type Line struct {
	Kind    LineKind
	Content string
	OldLine int
	NewLine int
}

// Hunk is a contiguous run of lines under one @@ header.
type Hunk struct {
	Header   string
	OldStart int
	NewStart int
	Lines    []Line
}

// PatchHash returns a stable 64-bit hash of the exact patch bytes. Two equal
// inputs always hash equal; the cache layers use it as the diff identity.
func PatchHash(patch string) uint64 {
	return xxhash.Sum64String(patch)
}

// Classify splits a raw patch line into its kind and the content without the
// diff prefix. Lines with no recognisable prefix fall back to Context so a
// slightly malformed patch still renders.
func Classify(line string) (LineKind, string) {
	switch {
	case strings.HasPrefix(line, "@@"):
		return HunkHeader, line
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"),
		strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "index "):
		return Meta, line
	case strings.HasPrefix(line, "+"):
		return Added, line[1:]
	case strings.HasPrefix(line, "-"):
		return Removed, line[1:]
	case strings.HasPrefix(line, " "):
		return Context, line[1:]
	default:
		return Context, line
	}
}

// parseHunkHeader extracts the old and new start line numbers from an
// "@@ -old,count +new,count @@" header. ok is false when the header cannot
// be parsed, in which case the caller skips the hunk.
func parseHunkHeader(line string) (oldStart, newStart int, ok bool) {
	minus := strings.IndexByte(line, '-')
	plus := strings.IndexByte(line, '+')
	if minus < 0 || plus < 0 || plus < minus {
		return 0, 0, false
	}
	oldStart, okOld := leadingInt(line[minus+1:])
	newStart, okNew := leadingInt(line[plus+1:])
	if !okOld || !okNew {
		return 0, 0, false
	}
	return oldStart, newStart, true
}

// leadingInt parses the digits at the start of s, stopping at a comma,
// space, or end of string.
func leadingInt(s string) (int, bool) {
	n := 0
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == 0 {
		return 0, false
	}
	return n, true
}

// ParsePatch parses a patch into hunks. Meta lines before the first hunk are
// dropped. A malformed hunk header skips that hunk's lines; parsing resumes
// at the next valid header. An empty result is valid for a zero-change patch.
func ParsePatch(patch string) []Hunk {
	if patch == "" {
		return nil
	}

	var hunks []Hunk
	var cur *Hunk
	oldLine, newLine := 0, 0
	skipping := false

	for _, raw := range strings.Split(patch, "\n") {
		kind, content := Classify(raw)
		switch kind {
		case Meta:
			continue
		case HunkHeader:
			os, ns, ok := parseHunkHeader(raw)
			if !ok {
				cur = nil
				skipping = true
				continue
			}
			skipping = false
			hunks = append(hunks, Hunk{Header: raw, OldStart: os, NewStart: ns})
			cur = &hunks[len(hunks)-1]
			cur.Lines = append(cur.Lines, Line{Kind: HunkHeader, Content: raw})
			oldLine, newLine = os, ns
		case Added:
			if skipping || cur == nil {
				continue
			}
			cur.Lines = append(cur.Lines, Line{Kind: Added, Content: content, NewLine: newLine})
			newLine++
		case Removed:
			if skipping || cur == nil {
				continue
			}
			cur.Lines = append(cur.Lines, Line{Kind: Removed, Content: content, OldLine: oldLine})
			oldLine++
		case Context:
			if skipping || cur == nil {
				continue
			}
			cur.Lines = append(cur.Lines, Line{Kind: Context, Content: content, OldLine: oldLine, NewLine: newLine})
			oldLine++
			newLine++
		}
	}
	return hunks
}

// Lines flattens the hunks of a patch into a single ordered slice.
func Lines(hunks []Hunk) []Line {
	total := 0
	for i := range hunks {
		total += len(hunks[i].Lines)
	}
	out := make([]Line, 0, total)
	for i := range hunks {
		out = append(out, hunks[i].Lines...)
	}
	return out
}

// LineNumberToPosition converts a new-file line number to a patch position as
// the review API counts it: meta lines are skipped, the first @@ header is
// not counted (position 1 is the line below it), and subsequent @@ headers
// are counted. Returns false when the line is not an added or context line
// of the patch.
func LineNumberToPosition(patch string, targetLine int) (int, bool) {
	newLine := -1
	position := -1

	for _, raw := range strings.Split(patch, "\n") {
		kind, _ := Classify(raw)
		switch kind {
		case Meta:
			continue
		case HunkHeader:
			if _, ns, ok := parseHunkHeader(raw); ok {
				newLine = ns
			} else {
				newLine = -1
			}
			if position < 0 {
				position = 0
			} else {
				position++
			}
		case Added, Context:
			if position >= 0 {
				position++
			}
			if newLine == targetLine && position > 0 {
				return position, true
			}
			if newLine >= 0 {
				newLine++
			}
		case Removed:
			if position >= 0 {
				position++
			}
		}
	}
	return 0, false
}
