// Package agent provides a uniform interface over the two external agent
// CLIs. Adapters spawn the CLI subprocess, stream its newline-delimited JSON
// events, and surface a single terminal event carrying the structured output.
package agent

import (
	"context"
	"encoding/json"
	"os/exec"
	"syscall"

	"github.com/google/uuid"
)

// Role selects which output schema the spawned agent must produce.
type Role string

const (
	// RoleReviewer expects a ReviewerOutput terminal payload.
	RoleReviewer Role = "reviewer"
	// RoleReviewee expects a RevieweeOutput terminal payload.
	RoleReviewee Role = "reviewee"
)

// EventKind classifies stream events.
type EventKind int

const (
	// EventThinking is agent reasoning text.
	EventThinking EventKind = iota
	// EventToolUse is a tool invocation by the agent.
	EventToolUse
	// EventText is assistant output text.
	EventText
	// EventFinal carries the terminal structured payload.
	EventFinal
	// EventExited reports subprocess exit.
	EventExited
	// EventError reports a stream or protocol failure.
	EventError
)

// Event is one item of an agent's output stream.
type Event struct {
	Kind     EventKind
	Text     string
	ToolName string
	ToolArgs string
	Final    json.RawMessage
	ExitCode int
	Err      error
}

// SpawnRequest describes one agent invocation. Tools is passed through to
// the CLI's whitelist flag untouched; enforcement is the CLI's job.
type SpawnRequest struct {
	Prompt string
	Tools  []string
	Role   Role
}

// Adapter spawns an agent CLI and streams its events.
type Adapter interface {
	Name() string
	Available() bool
	Spawn(ctx context.Context, req SpawnRequest) (*Handle, error)
}

// Handle is one running agent subprocess. Events are delivered in order on
// a buffered channel that closes after the terminal event.
type Handle struct {
	ID     string
	events chan Event
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

func newHandle(cmd *exec.Cmd, cancel context.CancelFunc) *Handle {
	return &Handle{
		ID:     uuid.NewString(),
		events: make(chan Event, 100),
		cmd:    cmd,
		cancel: cancel,
	}
}

// Events returns the receive side of the event stream.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Cancel terminates the subprocess and its children. Remaining events drain
// without blocking because the channel is buffered and closed by the reader
// goroutine.
func (h *Handle) Cancel() {
	if h.cmd != nil && h.cmd.Process != nil {
		// Negative pid signals the whole process group.
		_ = syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL)
	}
	h.cancel()
}

// processGroup configures a command to run in its own process group so
// Cancel can reach grandchildren.
func processGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// New returns the adapter for a configured agent name.
func New(name string) (Adapter, bool) {
	switch name {
	case "claude":
		return NewClaudeAdapter(), true
	case "codex":
		return NewCodexAdapter(), true
	default:
		return nil, false
	}
}
