package rally

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharper/prview/internal/agent"
	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/diffmodel"
	"github.com/dharper/prview/internal/domain"
	"github.com/dharper/prview/internal/github"
)

// Bot identification for external review tools.
var (
	botSuffixes     = []string{"[bot]"}
	botExactMatches = []string{"github-actions", "dependabot"}
)

// maxExternalComments caps the bot feedback embedded into the fix prompt.
const maxExternalComments = 20

const reviewPostPrefix = "[AI Rally - Reviewer]"
const fixPostPrefix = "[AI Rally - Reviewee]"

// defaultReviewerTools is the read-only whitelist for the reviewer agent.
var defaultReviewerTools = []string{
	"Read", "Grep", "Glob",
	"Bash(git status:*)", "Bash(git diff:*)", "Bash(git log:*)", "Bash(git show:*)",
	"Bash(gh pr view:*)", "Bash(gh pr diff:*)",
}

// defaultRevieweeTools allows edits and local VCS state changes but never
// push, checkout, or restore.
var defaultRevieweeTools = []string{
	"Read", "Edit", "Write", "Grep", "Glob",
	"Bash(git status:*)", "Bash(git diff:*)", "Bash(git add:*)", "Bash(git commit:*)",
	"Bash(git log:*)", "Bash(git show:*)", "Bash(git branch:*)", "Bash(git switch:*)",
	"Bash(git stash:*)",
	"Bash(go build:*)", "Bash(go test:*)", "Bash(go vet:*)",
	"Bash(npm test:*)", "Bash(npm run:*)", "Bash(make:*)", "Bash(cargo test:*)",
}

// Platform is the subset of the hosting shim the orchestrator uses.
type Platform interface {
	DiffFetcher
	GetPullRequest(ctx context.Context, repo string, number int) (*github.PullRequest, error)
	ListReviewComments(ctx context.Context, repo string, number int) ([]github.ReviewComment, error)
	ListDiscussionComments(ctx context.Context, repo string, number int) ([]github.DiscussionComment, error)
	SubmitReview(ctx context.Context, repo string, number int, body string, action github.ReviewAction, inline []github.InlineComment) error
}

// Config carries the rally knobs from the [ai] configuration section.
type Config struct {
	MaxIterations int
	Timeout       time.Duration
	AutoPost      bool
	AllowPush     bool
	ReviewerTools []string
	RevieweeTools []string
}

// Orchestrator drives reviewer/reviewee iterations over one PR. It is run
// once; events stream on Events() and user decisions arrive on Commands().
type Orchestrator struct {
	key      cache.PRKey
	cfg      Config
	reviewer agent.Adapter
	reviewee agent.Adapter
	gh       Platform
	store    *Store
	prompts  *PromptLoader
	log      zerolog.Logger

	rctx         *Context
	session      *Session
	lastFix      *agent.RevieweeOutput
	grantedTools []string

	events   chan Event
	commands chan Command
}

// New creates an orchestrator. Run must be called exactly once.
func New(key cache.PRKey, cfg Config, reviewer, reviewee agent.Adapter, gh Platform, store *Store, prompts *PromptLoader, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		key:      key,
		cfg:      cfg,
		reviewer: reviewer,
		reviewee: reviewee,
		gh:       gh,
		store:    store,
		prompts:  prompts,
		log:      log,
		session:  NewSession(key.Repo, key.Number),
		events:   make(chan Event, 256),
		commands: make(chan Command, 4),
	}
}

// SetContext supplies the rally context before Run.
func (o *Orchestrator) SetContext(rctx *Context) {
	o.rctx = rctx
}

// Events returns the orchestrator's output stream. The channel closes when
// Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Commands returns the channel for user decisions at gates.
func (o *Orchestrator) Commands() chan<- Command {
	return o.commands
}

// Session returns the current session snapshot.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Run executes the rally to a terminal state. The returned Result is also
// reflected in the persisted session.
func (o *Orchestrator) Run(ctx context.Context) Result {
	defer close(o.events)

	if o.rctx == nil {
		return o.fail(0, "rally context not set")
	}

	o.setState(StateInitializing)
	if err := o.store.WriteContext(o.key, o.rctx); err != nil {
		o.logf("failed to write context: %v", err)
	}

	for o.session.Iteration < o.cfg.MaxIterations {
		o.session.IncrementIteration()
		iteration := o.session.Iteration
		o.emit(Event{Kind: EventIterationStarted, Iteration: iteration})

		// The reviewee never pushes; this refresh covers manual pushes
		// and CI updates between iterations.
		if iteration > 1 {
			o.refreshHeadSHA(ctx)
		}

		o.setState(StateReviewerReviewing)

		review, err := o.runReviewer(ctx, iteration)
		if err != nil {
			return o.failErr(iteration, err)
		}
		if err := o.store.WriteReviewHistory(o.key, iteration, review); err != nil {
			o.logf("failed to write review history: %v", err)
		}
		o.emit(Event{Kind: EventReviewCompleted, Iteration: iteration, Review: review})

		if res, stop := o.maybePostReview(ctx, iteration, review); stop {
			return res
		}

		if reviewApproves(review) {
			o.setState(StateCompleted)
			return Result{State: StateCompleted, Reason: ReasonApproved, Iteration: iteration, Summary: review.Summary}
		}

		o.setState(StateRevieweeFixing)
		if !o.rctx.LocalMode {
			o.rctx.ExternalComments = o.fetchExternalComments(ctx)
			if n := len(o.rctx.ExternalComments); n > 0 {
				o.logf("fetched %d external bot comments", n)
			}
		}

		if res, stop := o.fixPhase(ctx, iteration, review); stop {
			return res
		}
	}

	o.setState(StateFailed)
	o.logf("max iterations (%d) reached", o.cfg.MaxIterations)
	return Result{State: StateFailed, Reason: ReasonMaxIterations, Iteration: o.session.Iteration}
}

// reviewApproves treats an explicit approve, or a comment verdict with no
// findings, as approval.
func reviewApproves(review *agent.ReviewerOutput) bool {
	if review.Action == agent.ActionApprove {
		return true
	}
	return review.Action == agent.ActionComment && len(review.Comments) == 0 && len(review.BlockingIssues) == 0
}

// fixPhase runs the reviewee, looping through clarification and permission
// gates until the fix completes or the rally ends. stop is true when the
// returned Result is terminal.
func (o *Orchestrator) fixPhase(ctx context.Context, iteration int, review *agent.ReviewerOutput) (Result, bool) {
	prompt := o.prompts.RevieweePrompt(o.rctx, review, iteration)

	for {
		fix, err := o.runReviewee(ctx, iteration, prompt)
		if err != nil {
			return o.failErr(iteration, err), true
		}
		if err := o.store.WriteFixHistory(o.key, iteration, fix); err != nil {
			o.logf("failed to write fix history: %v", err)
		}
		o.emit(Event{Kind: EventFixCompleted, Iteration: iteration, Fix: fix})

		switch fix.Status {
		case agent.StatusCompleted:
			o.lastFix = fix
			if res, stop := o.maybePostFix(ctx, iteration, fix); stop {
				return res, true
			}
			return Result{}, false

		case agent.StatusNeedsClarification:
			o.setState(StateWaitingForClarification)
			o.emitGate(ctx, Event{Kind: EventClarificationNeeded, Iteration: iteration, Question: fix.Question})

			answer, res, stop := o.awaitClarification(ctx, iteration)
			if stop {
				return res, true
			}
			o.logf("clarification answered: %s", answer)
			o.setState(StateRevieweeFixing)
			prompt = ClarificationFollowupPrompt(fix.Question, answer)

		case agent.StatusNeedsPermission:
			perm := fix.PermissionRequest
			o.setState(StateWaitingForPermission)
			o.emitGate(ctx, Event{Kind: EventPermissionNeeded, Iteration: iteration, Action: perm.Action, Reason: perm.Reason})

			res, stop := o.awaitPermission(ctx, iteration, perm)
			if stop {
				return res, true
			}
			o.setState(StateRevieweeFixing)
			prompt = PermissionGrantedPrompt(perm.Action)

		case agent.StatusError:
			details := fix.ErrorDetails
			if details == "" {
				details = "agent reported an unspecified error"
			}
			return o.fail(iteration, details), true
		}
	}
}

// awaitClarification blocks until the user answers, skips, or aborts.
func (o *Orchestrator) awaitClarification(ctx context.Context, iteration int) (string, Result, bool) {
	for {
		cmd, ok := o.waitForCommand(ctx)
		if !ok {
			return "", o.fail(iteration, ReasonAborted), true
		}
		switch cmd.Kind {
		case CommandClarificationAnswer:
			return cmd.Answer, Result{}, false
		case CommandSkipClarification, CommandAbort:
			return "", o.fail(iteration, ReasonAborted), true
		default:
			o.logf("ignoring command %d while waiting for clarification", cmd.Kind)
		}
	}
}

// awaitPermission blocks until the user grants, denies, or aborts. A grant
// in local mode is validated against the blocked-git list first.
func (o *Orchestrator) awaitPermission(ctx context.Context, iteration int, perm *agent.PermissionRequest) (Result, bool) {
	for {
		cmd, ok := o.waitForCommand(ctx)
		if !ok {
			return o.fail(iteration, ReasonAborted), true
		}
		switch cmd.Kind {
		case CommandPermissionResponse:
			if !cmd.Approved {
				return o.fail(iteration, ReasonDenied), true
			}
			if o.rctx.LocalMode {
				if reason := CheckBlockedGit(perm.Action); reason != "" {
					o.logf("permission blocked in local mode: %s", reason)
					return o.fail(iteration, fmt.Sprintf("permission blocked: %s", reason)), true
				}
			}
			o.grantedTools = append(o.grantedTools, perm.Action)
			o.logf("permission granted: %s", perm.Action)
			return Result{}, false
		case CommandAbort:
			return o.fail(iteration, ReasonAborted), true
		default:
			o.logf("ignoring command %d while waiting for permission", cmd.Kind)
		}
	}
}

// runReviewer builds the iteration's reviewer prompt and decodes the
// terminal payload. Iterations after the first see the refreshed diff and
// the previous fix summary.
func (o *Orchestrator) runReviewer(ctx context.Context, iteration int) (*agent.ReviewerOutput, error) {
	var prompt string
	if iteration == 1 {
		prompt = o.prompts.ReviewerPrompt(o.rctx, iteration)
	} else {
		diff, err := CurrentDiff(ctx, o.rctx, o.gh)
		if err != nil {
			o.logf("failed to refresh diff, reusing previous: %v", err)
			diff = o.rctx.Diff
		}
		prompt = o.prompts.RereviewPrompt(o.rctx, iteration, o.changesSummary(), diff)
	}

	final, err := o.runAgent(ctx, o.reviewer, agent.RoleReviewer, prompt, o.reviewerTools())
	if err != nil {
		return nil, err
	}

	review, err := agent.DecodeReviewer(string(final))
	if err != nil {
		if werr := o.store.WriteRawHistory(o.key, iteration, "review", final); werr != nil {
			o.logf("failed to preserve raw reviewer payload: %v", werr)
		}
		return nil, err
	}
	return review, nil
}

func (o *Orchestrator) runReviewee(ctx context.Context, iteration int, prompt string) (*agent.RevieweeOutput, error) {
	final, err := o.runAgent(ctx, o.reviewee, agent.RoleReviewee, prompt, o.revieweeTools())
	if err != nil {
		return nil, err
	}

	fix, err := agent.DecodeReviewee(string(final))
	if err != nil {
		if werr := o.store.WriteRawHistory(o.key, iteration, "fix", final); werr != nil {
			o.logf("failed to preserve raw reviewee payload: %v", werr)
		}
		return nil, err
	}
	return fix, nil
}

// runAgent spawns one agent under the configured deadline, forwards its
// activity as rally events, and returns the terminal payload.
func (o *Orchestrator) runAgent(ctx context.Context, a agent.Adapter, role agent.Role, prompt string, tools []string) (json.RawMessage, error) {
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	h, err := a.Spawn(runCtx, agent.SpawnRequest{Prompt: prompt, Tools: tools, Role: role})
	if err != nil {
		return nil, err
	}

	var final json.RawMessage
	var streamErr error
	for ev := range h.Events() {
		switch ev.Kind {
		case agent.EventThinking:
			o.emit(Event{Kind: EventAgentThinking, Message: ev.Text})
		case agent.EventToolUse:
			o.emit(Event{Kind: EventAgentToolUse, Action: ev.ToolName, Message: ev.ToolArgs})
		case agent.EventText:
			o.emit(Event{Kind: EventAgentText, Message: ev.Text})
		case agent.EventFinal:
			final = ev.Final
		case agent.EventError:
			streamErr = ev.Err
		}
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, domain.ErrAgentTimeout(runCtx.Err())
	}
	if final == nil {
		if streamErr != nil {
			return nil, streamErr
		}
		return nil, domain.ErrAgentProtocol(a.Name()+" produced no terminal output", nil)
	}
	return final, nil
}

func (o *Orchestrator) reviewerTools() []string {
	tools := append([]string{}, defaultReviewerTools...)
	return append(tools, o.cfg.ReviewerTools...)
}

func (o *Orchestrator) revieweeTools() []string {
	tools := append([]string{}, defaultRevieweeTools...)
	if o.cfg.AllowPush {
		tools = append(tools, "Bash(git push:*)")
	}
	tools = append(tools, o.cfg.RevieweeTools...)
	return append(tools, o.grantedTools...)
}

// maybePostReview posts the review to the PR, gating on user confirmation
// unless auto_post is set. Local mode never posts. Posting failures are
// logged, not fatal; only an abort at the gate stops the rally.
func (o *Orchestrator) maybePostReview(ctx context.Context, iteration int, review *agent.ReviewerOutput) (Result, bool) {
	if o.rctx.LocalMode {
		return Result{}, false
	}
	if !o.cfg.AutoPost {
		o.setState(StateWaitingForPostConfirm)
		o.emitGate(ctx, Event{Kind: EventPostConfirmNeeded, Iteration: iteration, Action: "review", Review: review})

		approved, res, stop := o.awaitPostConfirm(ctx, iteration)
		if stop {
			return res, true
		}
		if !approved {
			o.logf("review posting skipped by user")
			return Result{}, false
		}
	}
	if err := o.postReview(ctx, review); err != nil {
		o.logf("failed to post review: %v", err)
		o.emit(Event{Kind: EventError, Iteration: iteration, Message: fmt.Sprintf("failed to post review: %v", err)})
	}
	return Result{}, false
}

func (o *Orchestrator) maybePostFix(ctx context.Context, iteration int, fix *agent.RevieweeOutput) (Result, bool) {
	if o.rctx.LocalMode {
		return Result{}, false
	}
	if !o.cfg.AutoPost {
		o.setState(StateWaitingForPostConfirm)
		o.emitGate(ctx, Event{Kind: EventPostConfirmNeeded, Iteration: iteration, Action: "fix comment", Fix: fix})

		approved, res, stop := o.awaitPostConfirm(ctx, iteration)
		if stop {
			return res, true
		}
		if !approved {
			o.logf("fix comment posting skipped by user")
			return Result{}, false
		}
	}
	if err := o.postFixComment(ctx, fix); err != nil {
		o.logf("failed to post fix comment: %v", err)
		o.emit(Event{Kind: EventError, Iteration: iteration, Message: fmt.Sprintf("failed to post fix comment: %v", err)})
	}
	return Result{}, false
}

func (o *Orchestrator) awaitPostConfirm(ctx context.Context, iteration int) (bool, Result, bool) {
	for {
		cmd, ok := o.waitForCommand(ctx)
		if !ok {
			return false, o.fail(iteration, ReasonAborted), true
		}
		switch cmd.Kind {
		case CommandPostConfirmResponse:
			return cmd.Approved, Result{}, false
		case CommandAbort:
			return false, o.fail(iteration, ReasonAborted), true
		default:
			o.logf("ignoring command %d while waiting for post confirmation", cmd.Kind)
		}
	}
}

// postReview submits the summary plus inline comments mapped to diff
// positions. Comments whose line cannot be mapped are skipped.
func (o *Orchestrator) postReview(ctx context.Context, review *agent.ReviewerOutput) error {
	action := github.ReviewCommentAction
	switch review.Action {
	case agent.ActionApprove:
		action = github.ReviewApprove
	case agent.ActionRequestChanges:
		action = github.ReviewRequestChanges
	}

	var inline []github.InlineComment
	for _, c := range review.Comments {
		patch, ok := o.patchFor(c.Path)
		if !ok {
			o.logf("no patch for %s, skipping inline comment", c.Path)
			continue
		}
		position, ok := diffmodel.LineNumberToPosition(patch, c.Line)
		if !ok {
			o.logf("line %d of %s is outside the diff, skipping inline comment", c.Line, c.Path)
			continue
		}
		inline = append(inline, github.InlineComment{
			Path:     c.Path,
			Position: position,
			Body:     reviewPostPrefix + "\n\n" + c.Body,
		})
	}

	body := reviewPostPrefix + "\n\n" + review.Summary
	return o.gh.SubmitReview(ctx, o.key.Repo, o.key.Number, body, action, inline)
}

func (o *Orchestrator) postFixComment(ctx context.Context, fix *agent.RevieweeOutput) error {
	filesList := "No files modified"
	if len(fix.FilesModified) > 0 {
		var lines []string
		for _, f := range fix.FilesModified {
			lines = append(lines, fmt.Sprintf("- `%s`", f))
		}
		filesList = strings.Join(lines, "\n")
	}

	body := fmt.Sprintf("%s\n\n%s\n\n**Files modified:**\n%s", fixPostPrefix, fix.Summary, filesList)
	return o.gh.SubmitReview(ctx, o.key.Repo, o.key.Number, body, github.ReviewCommentAction, nil)
}

func (o *Orchestrator) patchFor(path string) (string, bool) {
	for _, fp := range o.rctx.FilePatches {
		if fp.Path == path {
			return fp.Patch, true
		}
	}
	return "", false
}

// fetchExternalComments collects bot feedback, capped at maxExternalComments.
func (o *Orchestrator) fetchExternalComments(ctx context.Context) []ExternalComment {
	var comments []ExternalComment

	if review, err := o.gh.ListReviewComments(ctx, o.key.Repo, o.key.Number); err == nil {
		for _, c := range review {
			if isBotUser(c.Author) {
				comments = append(comments, ExternalComment{Source: c.Author, Path: c.Path, Line: c.Line, Body: c.Body})
			}
		}
	}
	if discussion, err := o.gh.ListDiscussionComments(ctx, o.key.Repo, o.key.Number); err == nil {
		for _, c := range discussion {
			if isBotUser(c.Author) {
				comments = append(comments, ExternalComment{Source: c.Author, Body: c.Body})
			}
		}
	}

	if len(comments) > maxExternalComments {
		comments = comments[:maxExternalComments]
	}
	return comments
}

// refreshHeadSHA updates the context's head commit from the platform.
func (o *Orchestrator) refreshHeadSHA(ctx context.Context) {
	if o.rctx.LocalMode {
		return
	}
	pr, err := o.gh.GetPullRequest(ctx, o.key.Repo, o.key.Number)
	if err != nil {
		o.logf("failed to refresh head SHA: %v", err)
		return
	}
	o.rctx.HeadSHA = pr.HeadSHA
}

func (o *Orchestrator) changesSummary() string {
	if o.lastFix == nil {
		return "No changes recorded"
	}
	files := "No files modified"
	if len(o.lastFix.FilesModified) > 0 {
		files = strings.Join(o.lastFix.FilesModified, ", ")
	}
	return fmt.Sprintf("%s\n\nFiles modified: %s", o.lastFix.Summary, files)
}

func (o *Orchestrator) waitForCommand(ctx context.Context) (Command, bool) {
	select {
	case cmd, ok := <-o.commands:
		return cmd, ok
	case <-ctx.Done():
		return Command{}, false
	}
}

// setState updates the session, persists it, and announces the transition.
func (o *Orchestrator) setState(state State) {
	o.session.UpdateState(state)
	if err := o.store.WriteSession(o.session); err != nil {
		o.log.Warn().Err(err).Msg("failed to write session")
	}
	o.emit(Event{Kind: EventStateChanged, State: state, Iteration: o.session.Iteration})
}

func (o *Orchestrator) fail(iteration int, reason string) Result {
	o.setState(StateFailed)
	o.logf("rally failed: %s", reason)
	return Result{State: StateFailed, Reason: reason, Iteration: iteration}
}

func (o *Orchestrator) failErr(iteration int, err error) Result {
	o.emit(Event{Kind: EventError, Iteration: iteration, Message: err.Error()})
	return o.fail(iteration, err.Error())
}

// logf records to the session log and the event stream.
func (o *Orchestrator) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	o.log.Debug().Str("pr", o.key.String()).Msg(msg)
	if err := o.store.AppendLog(o.key, msg); err != nil {
		o.log.Warn().Err(err).Msg("failed to append rally log")
	}
	o.emit(Event{Kind: EventLog, Message: msg})
}

// emit sends without blocking; the UI drains this channel but the
// orchestrator must never stall behind it.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}

// emitGate delivers an event that asks the user a question. Dropping one of
// these would leave the orchestrator waiting on an answer that was never
// requested, so the send blocks until the consumer takes it or the rally is
// cancelled.
func (o *Orchestrator) emitGate(ctx context.Context, ev Event) {
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}

func isBotUser(login string) bool {
	for _, suffix := range botSuffixes {
		if strings.HasSuffix(login, suffix) {
			return true
		}
	}
	for _, exact := range botExactMatches {
		if login == exact {
			return true
		}
	}
	return false
}
