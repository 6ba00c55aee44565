package cache

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dharper/prview/internal/diffmodel"
	"github.com/dharper/prview/internal/github"
)

// Span is one styled run of a cached diff line. Content is an id into the
// owning cache's interner.
type Span struct {
	Content Sym
	Style   lipgloss.Style
}

// CachedLine is one rendered diff line. NewLine is the 1-based new-file line
// number, zero for removed lines and headers. Comment markers are never part
// of a cached line; they are composed at render time from the live comment
// set so caches stay valid across comment arrivals.
type CachedLine struct {
	Spans   []Span
	Kind    diffmodel.LineKind
	NewLine int
}

// DiffCache is the rendered representation of one file's diff. FileIndex is
// the file's position in the PR file list, not its name, so renames keep a
// stable identity. PatchHash ties the cache to the exact patch bytes it was
// built from.
type DiffCache struct {
	FileIndex   int
	PatchHash   uint64
	Lines       []CachedLine
	Interner    *Interner
	Highlighted bool
}

// Matches reports whether the cache was built for the given selection.
func (c *DiffCache) Matches(fileIndex int, patchHash uint64) bool {
	return c != nil && c.FileIndex == fileIndex && c.PatchHash == patchHash
}

// PRData is everything the session cache holds for one loaded PR. Comments
// live inside the entry so LRU eviction drops them together with the PR.
type PRData struct {
	PR                 github.PullRequest
	Files              []github.ChangedFile
	ReviewComments     []github.ReviewComment
	DiscussionComments []github.DiscussionComment
	FetchedAt          time.Time
}
