package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dharper/prview/internal/github"
	"github.com/dharper/prview/internal/rally"
)

func TestRenderSurvivesNarrowTerminal(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m, testPRData(github.ChangedFile{Path: "internal/widget/widget.go", Patch: patchA}))
	m.data.PR.Title = "a very long pull request title that cannot possibly fit"

	m.panel = newRallyPanel()
	m.panel.append(rally.EventAgentText, strings.Repeat("naïve café ", 20))

	for _, width := range []int{1, 6, 10} {
		m.width = width
		m.height = 4
		assert.NotPanics(t, func() { _ = RenderView(m) }, "width %d", width)
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "", truncate("héllo", 0))
	assert.Equal(t, "h", truncate("héllo", 1))
	assert.Equal(t, "hél", truncate("héllo", 3))
	assert.Equal(t, "h...", truncate("héllo wörld", 4))
	assert.Equal(t, "héllo", truncate("héllo", 5))
	assert.Equal(t, "héllo", truncate("héllo", 10))
}

func TestTruncatePathKeepsBasename(t *testing.T) {
	assert.Equal(t, "", truncatePath("a/b/c.go", 0))
	assert.Equal(t, "a/b/c.go", truncatePath("a/b/c.go", 8))
	assert.Equal(t, "…b/c.go", truncatePath("a/b/c.go", 7))
	assert.Equal(t, "…é.go", truncatePath("dir/é.go", 5))
}
