package rally

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharper/prview/internal/agent"
	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/github"
)

// fakeAdapter replays scripted terminal payloads, one per Spawn call, and
// records the prompts and tool lists it was given.
type fakeAdapter struct {
	name    string
	outputs []string
	prompts []string
	tools   [][]string
	calls   int
}

func (f *fakeAdapter) Name() string    { return f.name }
func (f *fakeAdapter) Available() bool { return true }

func (f *fakeAdapter) Spawn(_ context.Context, req agent.SpawnRequest) (*agent.Handle, error) {
	f.prompts = append(f.prompts, req.Prompt)
	f.tools = append(f.tools, req.Tools)
	idx := f.calls
	if idx >= len(f.outputs) {
		idx = len(f.outputs) - 1
	}
	f.calls++
	return agent.NewScriptedHandle(
		agent.Event{Kind: agent.EventFinal, Final: json.RawMessage(f.outputs[idx])},
		agent.Event{Kind: agent.EventExited},
	), nil
}

type postedReview struct {
	body   string
	action github.ReviewAction
	inline []github.InlineComment
}

type fakePlatform struct {
	diff       string
	headSHA    string
	reviews    []postedReview
	botReview  []github.ReviewComment
	botGeneral []github.DiscussionComment
}

func (f *fakePlatform) PRDiff(context.Context, string, int) (string, error) {
	return f.diff, nil
}

func (f *fakePlatform) GetPullRequest(context.Context, string, int) (*github.PullRequest, error) {
	return &github.PullRequest{HeadSHA: f.headSHA}, nil
}

func (f *fakePlatform) ListReviewComments(context.Context, string, int) ([]github.ReviewComment, error) {
	return f.botReview, nil
}

func (f *fakePlatform) ListDiscussionComments(context.Context, string, int) ([]github.DiscussionComment, error) {
	return f.botGeneral, nil
}

func (f *fakePlatform) SubmitReview(_ context.Context, _ string, _ int, body string, action github.ReviewAction, inline []github.InlineComment) error {
	f.reviews = append(f.reviews, postedReview{body: body, action: action, inline: inline})
	return nil
}

const approveJSON = `{"action": "approve", "summary": "looks good"}`
const requestChangesJSON = `{"action": "request_changes", "summary": "needs work", "blocking_issues": ["unchecked error"]}`
const fixCompletedJSON = `{"status": "completed", "summary": "handled the error", "files_modified": ["main.go"]}`

type rig struct {
	orch     *Orchestrator
	reviewer *fakeAdapter
	reviewee *fakeAdapter
	gh       *fakePlatform
	store    *Store
	key      cache.PRKey
}

func newRig(t *testing.T, cfg Config, rctx *Context) *rig {
	t.Helper()
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}

	st, err := NewStore(t.TempDir())
	require.NoError(t, err)

	reviewer := &fakeAdapter{name: "claude"}
	reviewee := &fakeAdapter{name: "codex"}
	gh := &fakePlatform{diff: "updated diff", headSHA: "def456"}
	key := cache.PRKey{Repo: rctx.Repo, Number: rctx.PRNumber}

	orch := New(key, cfg, reviewer, reviewee, gh, st, &PromptLoader{}, zerolog.Nop())
	orch.SetContext(rctx)

	return &rig{orch: orch, reviewer: reviewer, reviewee: reviewee, gh: gh, store: st, key: key}
}

func (r *rig) historyFiles(t *testing.T) []string {
	t.Helper()
	dir, err := r.store.Dir(r.key)
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRallyApprovedFirstIteration(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{approveJSON}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, ReasonApproved, res.Reason)
	assert.Equal(t, 1, res.Iteration)
	assert.Equal(t, "looks good", res.Summary)

	assert.Equal(t, 0, r.reviewee.calls)
	assert.Equal(t, []string{"001_review.json"}, r.historyFiles(t))

	// Auto-post submitted the approval with the rally prefix.
	require.Len(t, r.gh.reviews, 1)
	assert.Equal(t, github.ReviewApprove, r.gh.reviews[0].action)
	assert.Contains(t, r.gh.reviews[0].body, reviewPostPrefix)
	assert.Contains(t, r.gh.reviews[0].body, "looks good")

	sess, err := r.store.ReadSession(r.key)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sess.State)
}

func TestRallySecondIterationApproves(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{requestChangesJSON, approveJSON}
	r.reviewee.outputs = []string{fixCompletedJSON}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, ReasonApproved, res.Reason)
	assert.Equal(t, 2, res.Iteration)

	// The fix prompt embeds the review, the re-review prompt embeds the
	// fix summary and the refreshed diff from the platform fallback.
	require.Equal(t, 1, r.reviewee.calls)
	assert.Contains(t, r.reviewee.prompts[0], "needs work")
	assert.Contains(t, r.reviewee.prompts[0], "unchecked error")

	require.Equal(t, 2, r.reviewer.calls)
	assert.Contains(t, r.reviewer.prompts[1], "handled the error")
	assert.Contains(t, r.reviewer.prompts[1], "updated diff")

	assert.ElementsMatch(t,
		[]string{"001_review.json", "001_fix.json", "002_review.json"},
		r.historyFiles(t))
}

func TestRallyClarificationRoundTrip(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{requestChangesJSON, approveJSON}
	r.reviewee.outputs = []string{
		`{"status": "needs_clarification", "question": "Which API version?"}`,
		fixCompletedJSON,
	}
	r.orch.Commands() <- Command{Kind: CommandClarificationAnswer, Answer: "Use v2"}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 2, res.Iteration)

	require.Equal(t, 2, r.reviewee.calls)
	assert.Contains(t, r.reviewee.prompts[1], "Which API version?")
	assert.Contains(t, r.reviewee.prompts[1], "Use v2")
}

func TestRallyClarificationSkipFails(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{requestChangesJSON}
	r.reviewee.outputs = []string{`{"status": "needs_clarification", "question": "Why?"}`}
	r.orch.Commands() <- Command{Kind: CommandSkipClarification}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonAborted, res.Reason)
}

func TestRallyPermissionDenied(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{requestChangesJSON}
	r.reviewee.outputs = []string{
		`{"status": "needs_permission", "permission_request": {"action": "Bash(npm install:*)", "reason": "new dep"}}`,
	}
	r.orch.Commands() <- Command{Kind: CommandPermissionResponse, Approved: false}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonDenied, res.Reason)
}

func TestRallyPermissionGrantedContinues(t *testing.T) {
	rctx := testContext()
	rctx.LocalMode = true
	r := newRig(t, Config{}, rctx)
	r.reviewer.outputs = []string{requestChangesJSON, approveJSON}
	r.reviewee.outputs = []string{
		`{"status": "needs_permission", "permission_request": {"action": "Bash(npm install:*)", "reason": "new dep"}}`,
		fixCompletedJSON,
	}
	r.orch.Commands() <- Command{Kind: CommandPermissionResponse, Approved: true}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)

	// The granted action joins the reviewee whitelist on the retry.
	require.Equal(t, 2, r.reviewee.calls)
	assert.Contains(t, r.reviewee.tools[1], "Bash(npm install:*)")
	assert.NotContains(t, r.reviewee.tools[0], "Bash(npm install:*)")
	assert.Contains(t, r.reviewee.prompts[1], "Permission has been granted")
}

func TestRallyPermissionBlockedInLocalMode(t *testing.T) {
	rctx := testContext()
	rctx.LocalMode = true
	r := newRig(t, Config{}, rctx)
	r.reviewer.outputs = []string{requestChangesJSON}
	r.reviewee.outputs = []string{
		`{"status": "needs_permission", "permission_request": {"action": "git push", "reason": "publish"}}`,
	}
	r.orch.Commands() <- Command{Kind: CommandPermissionResponse, Approved: true}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Reason, "permission blocked")
}

func TestRallyMaxIterationsFails(t *testing.T) {
	r := newRig(t, Config{MaxIterations: 2, AutoPost: true}, testContext())
	r.reviewer.outputs = []string{requestChangesJSON}
	r.reviewee.outputs = []string{fixCompletedJSON}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonMaxIterations, res.Reason)
	assert.Equal(t, 2, res.Iteration)
	assert.Equal(t, 2, r.reviewer.calls)
	assert.Equal(t, 2, r.reviewee.calls)
}

func TestRallyRevieweeErrorFails(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{requestChangesJSON}
	r.reviewee.outputs = []string{`{"status": "error", "error_details": "workspace is read-only"}`}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "workspace is read-only", res.Reason)
}

func TestRallyProtocolErrorPreservesRawPayload(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{"utterly not json"}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)

	dir, err := r.store.Dir(r.key)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "history", "001_review_raw.json"))
}

func TestRallyPostConfirmSkipped(t *testing.T) {
	r := newRig(t, Config{}, testContext())
	r.reviewer.outputs = []string{approveJSON}
	r.orch.Commands() <- Command{Kind: CommandPostConfirmResponse, Approved: false}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Empty(t, r.gh.reviews)
}

func TestRallyGateEventSurvivesFullBuffer(t *testing.T) {
	r := newRig(t, Config{}, testContext())
	r.reviewer.outputs = []string{approveJSON}
	r.orch.Commands() <- Command{Kind: CommandPostConfirmResponse, Approved: false}

	// Saturate the stream so a best-effort send would be dropped.
	for i := 0; i < cap(r.orch.events); i++ {
		r.orch.events <- Event{Kind: EventAgentText, Message: "filler"}
	}

	done := make(chan Result, 1)
	go func() { done <- r.orch.Run(context.Background()) }()

	sawGate := false
	for ev := range r.orch.Events() {
		if ev.Kind == EventPostConfirmNeeded {
			sawGate = true
		}
	}

	res := <-done
	assert.Equal(t, StateCompleted, res.State)
	assert.True(t, sawGate, "gate events must reach the consumer even under backpressure")
}

func TestRallyGateEmitReturnsOnCancel(t *testing.T) {
	r := newRig(t, Config{}, testContext())
	for i := 0; i < cap(r.orch.events); i++ {
		r.orch.events <- Event{Kind: EventAgentText, Message: "filler"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.orch.emitGate(ctx, Event{Kind: EventPermissionNeeded})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emitGate must unblock once the rally is cancelled")
	}
}

func TestRallyPostConfirmCarriesActionLabel(t *testing.T) {
	r := newRig(t, Config{}, testContext())
	r.reviewer.outputs = []string{requestChangesJSON, approveJSON}
	r.reviewee.outputs = []string{fixCompletedJSON}
	r.orch.Commands() <- Command{Kind: CommandPostConfirmResponse, Approved: false}
	r.orch.Commands() <- Command{Kind: CommandPostConfirmResponse, Approved: false}
	r.orch.Commands() <- Command{Kind: CommandPostConfirmResponse, Approved: false}

	r.orch.Run(context.Background())

	var actions []string
	for ev := range r.orch.Events() {
		if ev.Kind == EventPostConfirmNeeded {
			actions = append(actions, ev.Action)
		}
	}

	require.NotEmpty(t, actions)
	assert.Contains(t, actions, "review")
	assert.Contains(t, actions, "fix comment")
	for _, a := range actions {
		assert.NotEmpty(t, a, "every post confirmation must describe what would be posted")
	}
}

func TestRallyAbortAtPostConfirm(t *testing.T) {
	r := newRig(t, Config{}, testContext())
	r.reviewer.outputs = []string{approveJSON}
	r.orch.Commands() <- Command{Kind: CommandAbort}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonAborted, res.Reason)
}

func TestRallyLocalModeNeverPosts(t *testing.T) {
	rctx := testContext()
	rctx.LocalMode = true
	r := newRig(t, Config{AutoPost: true}, rctx)
	r.reviewer.outputs = []string{approveJSON}

	res := r.orch.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Empty(t, r.gh.reviews)
}

func TestRallyExternalBotComments(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.gh.botReview = []github.ReviewComment{
		{Path: "main.go", Line: 3, Body: "bot inline note", Author: "coderabbitai[bot]"},
		{Path: "main.go", Line: 4, Body: "human note", Author: "octocat"},
	}
	r.gh.botGeneral = []github.DiscussionComment{
		{Body: "bot general note", Author: "github-actions"},
	}
	r.reviewer.outputs = []string{requestChangesJSON, approveJSON}
	r.reviewee.outputs = []string{fixCompletedJSON}

	r.orch.Run(context.Background())

	require.GreaterOrEqual(t, r.reviewee.calls, 1)
	assert.Contains(t, r.reviewee.prompts[0], "bot inline note")
	assert.Contains(t, r.reviewee.prompts[0], "bot general note")
	assert.NotContains(t, r.reviewee.prompts[0], "human note")
}

func TestRallyInlineCommentsMappedToPositions(t *testing.T) {
	patch := "@@ -1,2 +1,3 @@\n line one\n+line two\n line three"
	rctx := testContext()
	rctx.FilePatches = []FilePatch{{Path: "main.go", Patch: patch}}

	r := newRig(t, Config{AutoPost: true}, rctx)
	r.reviewer.outputs = []string{
		`{"action": "request_changes", "summary": "needs work",
		  "comments": [
			{"path": "main.go", "line": 2, "body": "inline finding"},
			{"path": "missing.go", "line": 1, "body": "no patch for this"}
		  ]}`,
	}
	r.reviewee.outputs = []string{fixCompletedJSON}

	r.orch.Run(context.Background())

	require.NotEmpty(t, r.gh.reviews)
	first := r.gh.reviews[0]
	require.Len(t, first.inline, 1)
	assert.Equal(t, "main.go", first.inline[0].Path)
	assert.Equal(t, 2, first.inline[0].Position)
	assert.Contains(t, first.inline[0].Body, "inline finding")
}

func TestRallyEventStream(t *testing.T) {
	r := newRig(t, Config{AutoPost: true}, testContext())
	r.reviewer.outputs = []string{approveJSON}

	r.orch.Run(context.Background())

	seen := map[EventKind]bool{}
	for ev := range r.orch.Events() {
		seen[ev.Kind] = true
	}
	assert.True(t, seen[EventStateChanged])
	assert.True(t, seen[EventIterationStarted])
	assert.True(t, seen[EventReviewCompleted])
}
