// Package rally implements the reviewer/reviewee orchestration: a state
// machine that alternates two agent CLI runs over a pull request, persists
// each iteration to disk, and streams progress events to the UI.
package rally

import (
	"github.com/dharper/prview/internal/agent"
)

// State is the orchestrator's position in the rally graph.
type State string

const (
	StateInitializing             State = "initializing"
	StateReviewerReviewing        State = "reviewer_reviewing"
	StateRevieweeFixing           State = "reviewee_fixing"
	StateWaitingForClarification  State = "waiting_for_clarification"
	StateWaitingForPermission     State = "waiting_for_permission"
	StateWaitingForPostConfirm    State = "waiting_for_post_confirmation"
	StateCompleted                State = "completed"
	StateFailed                   State = "failed"
)

// Terminal reports whether the rally has ended.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Failure reasons carried by terminal results.
const (
	ReasonApproved      = "approved"
	ReasonMaxIterations = "max_iterations"
	ReasonAborted       = "aborted"
	ReasonDenied        = "denied"
)

// EventKind classifies orchestrator events.
type EventKind int

const (
	// EventStateChanged announces a state transition.
	EventStateChanged EventKind = iota
	// EventIterationStarted marks the beginning of an iteration.
	EventIterationStarted
	// EventReviewCompleted carries a finished reviewer pass.
	EventReviewCompleted
	// EventFixCompleted carries a finished reviewee pass.
	EventFixCompleted
	// EventClarificationNeeded asks the user to answer a reviewee question.
	EventClarificationNeeded
	// EventPermissionNeeded asks the user to approve an action.
	EventPermissionNeeded
	// EventPostConfirmNeeded asks the user to confirm posting to the PR.
	EventPostConfirmNeeded
	// EventAgentThinking is streamed agent reasoning.
	EventAgentThinking
	// EventAgentToolUse is a streamed tool invocation.
	EventAgentToolUse
	// EventAgentText is streamed agent output text.
	EventAgentText
	// EventLog is an informational message.
	EventLog
	// EventError is a non-terminal error report.
	EventError
)

// Event is one item of the orchestrator's output stream. Fields are set
// according to Kind; unused fields are zero.
type Event struct {
	Kind      EventKind
	State     State
	Iteration int
	Review    *agent.ReviewerOutput
	Fix       *agent.RevieweeOutput
	Question  string
	Action    string
	Reason    string
	Message   string
}

// CommandKind classifies user commands sent to the orchestrator.
type CommandKind int

const (
	// CommandClarificationAnswer carries the user's answer to a question.
	CommandClarificationAnswer CommandKind = iota
	// CommandSkipClarification declines to answer.
	CommandSkipClarification
	// CommandPermissionResponse grants or denies a permission request.
	CommandPermissionResponse
	// CommandPostConfirmResponse approves or skips posting to the PR.
	CommandPostConfirmResponse
	// CommandAbort stops the rally.
	CommandAbort
)

// Command is a user decision delivered while the orchestrator waits at a
// gate.
type Command struct {
	Kind     CommandKind
	Answer   string
	Approved bool
}

// Result is the terminal outcome of a rally run.
type Result struct {
	State     State
	Reason    string
	Iteration int
	Summary   string
}

// FilePatch pairs a changed file path with its unified patch, used to map
// review comment line numbers to diff positions when posting.
type FilePatch struct {
	Path  string `json:"path"`
	Patch string `json:"patch"`
}

// ExternalComment is feedback from an external review bot embedded into the
// reviewee prompt.
type ExternalComment struct {
	Source string `json:"source"`
	Path   string `json:"path,omitempty"`
	Line   int    `json:"line,omitempty"`
	Body   string `json:"body"`
}

// Context is the immutable-per-rally input: the PR under review and the
// environment the agents operate in.
type Context struct {
	Repo             string            `json:"repo"`
	PRNumber         int               `json:"pr_number"`
	PRTitle          string            `json:"pr_title"`
	PRBody           string            `json:"pr_body"`
	Diff             string            `json:"diff"`
	HeadSHA          string            `json:"head_sha"`
	BaseBranch       string            `json:"base_branch"`
	WorkingDir       string            `json:"working_dir,omitempty"`
	LocalMode        bool              `json:"local_mode"`
	FilePatches      []FilePatch       `json:"file_patches,omitempty"`
	ExternalComments []ExternalComment `json:"external_comments,omitempty"`
}
