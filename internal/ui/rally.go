package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dharper/prview/internal/rally"
)

// logEntry is one line of the rally panel's event log.
type logEntry struct {
	kind rally.EventKind
	text string
}

// rallyPanel is the UI-side projection of the orchestrator's event stream.
// At most one gate is pending at a time; the orchestrator blocks until it is
// answered.
type rallyPanel struct {
	state             rally.State
	iteration         int
	entries           []logEntry
	pendingQuestion   string
	pendingPermission *permissionPrompt
	pendingPost       bool
	pendingPostAction string
	reason            string
	// scroll is the offset into entries; -1 pins to the tail.
	scroll int
}

type permissionPrompt struct {
	action string
	reason string
}

func newRallyPanel() *rallyPanel {
	return &rallyPanel{state: rally.StateInitializing, scroll: -1}
}

func (p *rallyPanel) append(kind rally.EventKind, text string) {
	p.entries = append(p.entries, logEntry{kind: kind, text: text})
}

// startRally builds the rally context from loaded PR data and launches the
// orchestrator. A second press while a rally is live is ignored.
func (m *Model) startRally() tea.Cmd {
	if m.starter == nil || m.data == nil {
		return nil
	}
	if m.panel != nil && !m.panel.state.Terminal() {
		m.focus = FocusRally
		return nil
	}

	rctx := m.buildRallyContext()
	ctx, cancel := context.WithCancel(context.Background())
	events, cmds, err := m.starter.Start(ctx, rctx)
	if err != nil {
		cancel()
		m.status.SetMessage(false, fmt.Sprintf("Rally failed to start: %v", err))
		return nil
	}

	m.rallyCancel = cancel
	m.rallyCh = events
	m.rallyCmds = cmds
	m.panel = newRallyPanel()
	m.focus = FocusRally
	return readRally(m.rallyCh)
}

func (m *Model) buildRallyContext() *rally.Context {
	patches := make([]rally.FilePatch, 0, len(m.data.Files))
	var diff strings.Builder
	for _, f := range m.data.Files {
		if f.Patch == "" {
			continue
		}
		patches = append(patches, rally.FilePatch{Path: f.Path, Patch: f.Patch})
		fmt.Fprintf(&diff, "--- a/%s\n+++ b/%s\n%s\n", f.Path, f.Path, f.Patch)
	}
	return &rally.Context{
		Repo:        m.key.Repo,
		PRNumber:    m.key.Number,
		PRTitle:     m.data.PR.Title,
		PRBody:      m.data.PR.Body,
		Diff:        diff.String(),
		HeadSHA:     m.data.PR.HeadSHA,
		BaseBranch:  m.data.PR.BaseBranch,
		WorkingDir:  m.workingDir,
		LocalMode:   m.localMode,
		FilePatches: patches,
	}
}

// sendRally delivers a user decision without blocking the event loop. The
// orchestrator only reads commands while waiting at a gate, so a full
// channel means the command is no longer expected.
func (m *Model) sendRally(cmd rally.Command) {
	if m.rallyCmds == nil {
		return
	}
	select {
	case m.rallyCmds <- cmd:
	default:
		m.log.Warn().Int("kind", int(cmd.Kind)).Msg("rally command dropped")
	}
}

// handleRally applies one orchestrator event to the panel.
func (m *Model) handleRally(msg RallyMsg) (tea.Model, tea.Cmd) {
	if msg.Ch != m.rallyCh {
		return m, nil
	}
	if !msg.OK {
		// Stream closed: the run returned. A close without a terminal state
		// means the orchestrator died unexpectedly.
		m.rallyCh = nil
		m.rallyCmds = nil
		m.rallyCancel = nil
		if m.panel != nil && !m.panel.state.Terminal() {
			m.panel.state = rally.StateFailed
			m.panel.append(rally.EventError, "rally terminated unexpectedly")
		}
		return m, nil
	}

	m.applyRallyEvent(msg.Event)
	var cmd tea.Cmd
	if m.inputMode == inputNone && m.panel != nil && m.panel.pendingQuestion != "" {
		m.inputMode = inputClarification
		m.input.Placeholder = "Answer (esc to skip)"
		m.input.SetValue("")
		cmd = m.input.Focus()
	}
	return m, tea.Batch(readRally(m.rallyCh), cmd)
}

func (m *Model) applyRallyEvent(ev rally.Event) {
	if m.panel == nil {
		m.panel = newRallyPanel()
	}
	p := m.panel

	switch ev.Kind {
	case rally.EventStateChanged:
		p.state = ev.State
		if ev.Reason != "" {
			p.reason = ev.Reason
		}
		m.status.SetRally(p.state, p.iteration)

	case rally.EventIterationStarted:
		p.iteration = ev.Iteration
		p.append(ev.Kind, fmt.Sprintf("Iteration %d", ev.Iteration))
		m.status.SetRally(p.state, p.iteration)

	case rally.EventReviewCompleted:
		if ev.Review != nil {
			p.append(ev.Kind, fmt.Sprintf("Review: %s (%d comments)", ev.Review.Action, len(ev.Review.Comments)))
			if ev.Review.Summary != "" {
				p.append(rally.EventAgentText, ev.Review.Summary)
			}
		}

	case rally.EventFixCompleted:
		if ev.Fix != nil {
			p.append(ev.Kind, fmt.Sprintf("Fix: %s (%d files)", ev.Fix.Status, len(ev.Fix.FilesModified)))
			if ev.Fix.Summary != "" {
				p.append(rally.EventAgentText, ev.Fix.Summary)
			}
		}

	case rally.EventClarificationNeeded:
		p.pendingQuestion = ev.Question
		p.append(ev.Kind, "Question: "+ev.Question)

	case rally.EventPermissionNeeded:
		p.pendingPermission = &permissionPrompt{action: ev.Action, reason: ev.Reason}
		p.append(ev.Kind, "Permission: "+ev.Action)

	case rally.EventPostConfirmNeeded:
		p.pendingPost = true
		p.pendingPostAction = ev.Action
		p.append(ev.Kind, "Post to PR? "+ev.Action)

	case rally.EventAgentThinking, rally.EventAgentToolUse, rally.EventAgentText, rally.EventLog:
		if text := strings.TrimSpace(ev.Message); text != "" {
			p.append(ev.Kind, text)
		}

	case rally.EventError:
		p.append(ev.Kind, ev.Message)
	}
}
