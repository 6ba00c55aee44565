package ui

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/config"
	"github.com/dharper/prview/internal/diffmodel"
	"github.com/dharper/prview/internal/github"
	"github.com/dharper/prview/internal/loader"
	"github.com/dharper/prview/internal/rally"
)

type stubClient struct{}

func (stubClient) GetPullRequest(context.Context, string, int) (*github.PullRequest, error) {
	return &github.PullRequest{Number: 7, Title: "stub", UpdatedAt: time.Now()}, nil
}

func (stubClient) ListChangedFiles(context.Context, string, int) ([]github.ChangedFile, error) {
	return nil, nil
}

func (stubClient) ListReviewComments(context.Context, string, int) ([]github.ReviewComment, error) {
	return nil, nil
}

func (stubClient) ListDiscussionComments(context.Context, string, int) ([]github.DiscussionComment, error) {
	return nil, nil
}

const patchA = "@@ -1,2 +1,3 @@\n package a\n+var Added int\n var Kept int"
const patchB = "@@ -1 +1,2 @@\n package b\n+func B() {}"

func uiTestKey() cache.PRKey {
	return cache.PRKey{Repo: "owner/repo", Number: 7}
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m := New(Options{
		Config: &config.Config{},
		Logger: zerolog.Nop(),
		Loader: loader.New(stubClient{}, zerolog.Nop()),
		Key:    uiTestKey(),
	})
	m.width = 120
	m.height = 40
	return m
}

func testPRData(files ...github.ChangedFile) *cache.PRData {
	return &cache.PRData{
		PR: github.PullRequest{
			Number:    7,
			Title:     "add widget",
			UpdatedAt: time.Now(),
		},
		Files:          files,
		ReviewComments: []github.ReviewComment{},
		FetchedAt:      time.Now(),
	}
}

// deliver installs PR data the way a fetch result would.
func deliver(t *testing.T, m *Model, data *cache.PRData) {
	t.Helper()
	ch := make(chan loader.DataResult, 1)
	m.dataCh = ch
	_, _ = m.handleData(DataMsg{Res: loader.DataResult{Key: m.key, Data: data}, Ch: ch})
}

func TestFreshLoadInstallsPlainThenHighlighted(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m, testPRData(github.ChangedFile{Path: "a.go", Patch: patchA, Additions: 1}))

	hash := diffmodel.PatchHash(patchA)
	require.NotNil(t, m.active)
	assert.True(t, m.active.Matches(0, hash))
	assert.False(t, m.active.Highlighted, "first install must be the synchronous plain build")
	require.NotNil(t, m.highlightCh, "a highlighted build must be in flight")

	res, ok := <-m.highlightCh
	require.True(t, ok)
	_, _ = m.handleHighlight(HighlightMsg{Res: res, OK: true, Ch: m.highlightCh})

	require.NotNil(t, m.active)
	assert.True(t, m.active.Highlighted)
	assert.True(t, m.active.Matches(0, hash))
	assert.True(t, m.prefetch.Contains(m.key, 0, hash), "highlighted cache must land in the prefetch store")
}

func TestWarmPrefetchPromotionSkipsBuild(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m,
		testPRData(
			github.ChangedFile{Path: "a.go", Patch: patchA},
			github.ChangedFile{Path: "b.go", Patch: patchB},
		))

	warm := cache.BuildPlain(cache.BuildInput{PR: m.key, FileIndex: 1, Path: "b.go", Patch: patchB})
	warm.Highlighted = true
	m.prefetch.Put(m.key, warm, 0)

	_ = m.selectFile(1)

	assert.Same(t, warm, m.active, "warm cache must be promoted, not rebuilt")
	assert.Nil(t, m.highlightCh, "promotion must not start a build")
}

func TestPRSwitchDiscardsInFlightBuild(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m, testPRData(github.ChangedFile{Path: "a.go", Patch: patchA}))

	oldKey := m.key
	oldCh := m.highlightCh
	require.NotNil(t, oldCh)

	_ = m.SwitchPR(cache.PRKey{Repo: "owner/repo", Number: 8})
	assert.Nil(t, m.active)
	assert.Nil(t, m.highlightCh)

	// The stale build result arrives after the switch and must be dropped.
	late := cache.BuildPlain(cache.BuildInput{PR: oldKey, FileIndex: 0, Path: "a.go", Patch: patchA})
	late.Highlighted = true
	_, _ = m.handleHighlight(HighlightMsg{Res: loader.PrefetchResult{Key: oldKey, Cache: late}, OK: true, Ch: oldCh})

	assert.Nil(t, m.active)
	assert.Zero(t, m.prefetch.Len())
}

func TestHighlightResultValidatedAgainstPatchHash(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m, testPRData(github.ChangedFile{Path: "a.go", Patch: patchA}))

	plain := m.active
	require.NotNil(t, plain)

	// A result built from different patch bytes fails validation even when
	// PR and file index line up.
	stale := cache.BuildPlain(cache.BuildInput{PR: m.key, FileIndex: 0, Path: "a.go", Patch: patchB})
	stale.Highlighted = true
	_, _ = m.handleHighlight(HighlightMsg{Res: loader.PrefetchResult{Key: m.key, Cache: stale}, OK: true, Ch: m.highlightCh})

	assert.Same(t, plain, m.active, "mismatched result must not be installed")
}

func TestCommentArrivalLeavesCacheUntouched(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m, testPRData(github.ChangedFile{Path: "a.go", Patch: patchA}))

	before := m.active
	require.NotNil(t, before)
	assert.Empty(t, m.commentLines())

	ch := make(chan loader.CommentsResult, 1)
	m.commentsCh = ch
	_, _ = m.handleComments(CommentsMsg{
		Res: loader.CommentsResult{
			Key:    m.key,
			Review: []github.ReviewComment{{ID: 1, Path: "a.go", Line: 2, Body: "naming"}},
		},
		Ch: ch,
	})

	assert.Same(t, before, m.active, "comments must not rebuild the cache")
	markers := m.commentLines()
	assert.Equal(t, 1, markers[2])
}

func TestStaleReceiverResultsDropped(t *testing.T) {
	m := newTestModel(t)
	data := testPRData(github.ChangedFile{Path: "a.go", Patch: patchA})

	replaced := make(chan loader.DataResult, 1)
	current := make(chan loader.DataResult, 1)
	m.dataCh = current

	_, _ = m.handleData(DataMsg{Res: loader.DataResult{Key: m.key, Data: data}, Ch: replaced})
	assert.Nil(t, m.data, "result from a replaced receiver must be dropped")

	_, _ = m.handleData(DataMsg{Res: loader.DataResult{Key: m.key, Data: data}, Ch: current})
	assert.NotNil(t, m.data)
}

func TestDataForOtherPRWarmsSessionOnly(t *testing.T) {
	m := newTestModel(t)
	other := cache.PRKey{Repo: "owner/repo", Number: 9}
	data := testPRData(github.ChangedFile{Path: "a.go", Patch: patchA})

	ch := make(chan loader.DataResult, 1)
	m.dataCh = ch
	_, _ = m.handleData(DataMsg{Res: loader.DataResult{Key: other, Data: data}, Ch: ch})

	assert.Nil(t, m.data)
	assert.True(t, m.session.Contains(other), "raced fetch stays warm for a switch back")
}

func TestSwitchPRRestoresFromSessionWithoutFetch(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m, testPRData(github.ChangedFile{Path: "a.go", Patch: patchA}))

	other := cache.PRKey{Repo: "owner/repo", Number: 9}
	m.session.Put(other, testPRData(github.ChangedFile{Path: "b.go", Patch: patchB}))

	_ = m.SwitchPR(other)

	require.NotNil(t, m.data)
	assert.Equal(t, "b.go", m.data.Files[0].Path)
	assert.Nil(t, m.dataCh, "session hit must not start a fetch")
	require.NotNil(t, m.active)
	assert.True(t, m.active.Matches(0, diffmodel.PatchHash(patchB)))
}

func TestRefreshPurgesAllTiers(t *testing.T) {
	m := newTestModel(t)
	deliver(t, m, testPRData(github.ChangedFile{Path: "a.go", Patch: patchA}))
	require.NotZero(t, m.session.Len())

	_ = m.refresh()

	assert.Nil(t, m.active)
	assert.Nil(t, m.data)
	assert.Zero(t, m.session.Len())
	assert.Zero(t, m.prefetch.Len())
	assert.True(t, m.loading)
}

func TestRallyEventsProjectOntoPanel(t *testing.T) {
	m := newTestModel(t)

	m.applyRallyEvent(rally.Event{Kind: rally.EventStateChanged, State: rally.StateReviewerReviewing})
	m.applyRallyEvent(rally.Event{Kind: rally.EventIterationStarted, Iteration: 1})
	m.applyRallyEvent(rally.Event{Kind: rally.EventAgentThinking, Message: "scanning the diff"})
	m.applyRallyEvent(rally.Event{Kind: rally.EventClarificationNeeded, Question: "keep the old API?"})

	p := m.panel
	require.NotNil(t, p)
	assert.Equal(t, rally.StateReviewerReviewing, p.state)
	assert.Equal(t, 1, p.iteration)
	assert.Equal(t, "keep the old API?", p.pendingQuestion)
	assert.Len(t, p.entries, 3)

	m.applyRallyEvent(rally.Event{Kind: rally.EventPermissionNeeded, Action: "git push", Reason: "apply fixes"})
	require.NotNil(t, p.pendingPermission)
	assert.Equal(t, "git push", p.pendingPermission.action)
}

func TestRallyStreamCloseWithoutTerminalStateFails(t *testing.T) {
	m := newTestModel(t)
	ch := make(chan rally.Event)
	m.rallyCh = ch
	m.panel = newRallyPanel()
	m.panel.state = rally.StateRevieweeFixing

	_, _ = m.handleRally(RallyMsg{OK: false, Ch: ch})

	assert.Equal(t, rally.StateFailed, m.panel.state)
	assert.Nil(t, m.rallyCh)
	assert.Nil(t, m.rallyCmds)
}

func TestSendRallyNeverBlocks(t *testing.T) {
	m := newTestModel(t)
	m.sendRally(rally.Command{Kind: rally.CommandAbort})

	full := make(chan rally.Command)
	m.rallyCmds = full
	done := make(chan struct{})
	go func() {
		m.sendRally(rally.Command{Kind: rally.CommandAbort})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sendRally blocked on a full command channel")
	}
}
