package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/dharper/prview/internal/domain"
)

// CodexAdapter drives the codex CLI in exec mode with JSON event output.
// The event stream differs from claude's: items arrive as typed completion
// records and the structured result is the last agent message.
type CodexAdapter struct {
	binaryPath string
}

// NewCodexAdapter creates an adapter using the codex binary on PATH.
func NewCodexAdapter() *CodexAdapter {
	return &CodexAdapter{binaryPath: "codex"}
}

// Name implements Adapter.
func (a *CodexAdapter) Name() string { return "codex" }

// Available reports whether the CLI binary can be found.
func (a *CodexAdapter) Available() bool {
	_, err := exec.LookPath(a.binaryPath)
	return err == nil
}

// codexLine is one JSON event from codex exec.
type codexLine struct {
	Type string `json:"type"`
	Item *struct {
		Type      string `json:"item_type"`
		Text      string `json:"text,omitempty"`
		Command   string `json:"command,omitempty"`
		Reasoning string `json:"reasoning,omitempty"`
	} `json:"item,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Spawn launches codex exec and streams events. The final agent message is
// surfaced as the terminal payload.
func (a *CodexAdapter) Spawn(ctx context.Context, req SpawnRequest) (*Handle, error) {
	if !a.Available() {
		return nil, domain.ErrAgentNotFound("codex")
	}

	runCtx, cancel := context.WithCancel(ctx)
	args := []string{"exec", "--json"}
	if len(req.Tools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(req.Tools, ","))
	}
	args = append(args, "--", req.Prompt)

	cmd := exec.CommandContext(runCtx, a.binaryPath, args...)
	processGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, domain.ErrTransientIO("failed to create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, domain.ErrTransientIO("failed to create stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, domain.ErrTransientIO("failed to start codex CLI", err)
	}

	h := newHandle(cmd, cancel)

	go drainStderr(stderr)

	go func() {
		defer close(h.events)

		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		// Codex does not emit a dedicated result record; the last agent
		// message before turn completion is the structured output.
		lastMessage := ""
		failed := false
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var ev codexLine
			if err := json.Unmarshal(line, &ev); err != nil {
				h.events <- Event{Kind: EventError, Err: domain.ErrMalformed("bad stream line", err)}
				continue
			}

			switch ev.Type {
			case "item.completed":
				if ev.Item == nil {
					continue
				}
				switch ev.Item.Type {
				case "reasoning":
					h.events <- Event{Kind: EventThinking, Text: ev.Item.Reasoning}
				case "command_execution":
					h.events <- Event{Kind: EventToolUse, ToolName: "shell", ToolArgs: ev.Item.Command}
				case "agent_message":
					lastMessage = ev.Item.Text
					h.events <- Event{Kind: EventText, Text: ev.Item.Text}
				}
			case "turn.failed", "error":
				msg := "codex turn failed"
				if ev.Error != nil {
					msg = ev.Error.Message
				}
				failed = true
				h.events <- Event{Kind: EventError, Err: domain.ErrAgentProtocol(msg, nil)}
			}
		}
		if err := scanner.Err(); err != nil {
			h.events <- Event{Kind: EventError, Err: domain.ErrTransientIO("stream read failed", err)}
		}

		if !failed && lastMessage != "" {
			h.events <- Event{Kind: EventFinal, Final: json.RawMessage(ExtractJSON(lastMessage))}
		}

		// Wait must complete before ProcessState carries the exit code.
		waitErr := cmd.Wait()
		exitCode := 0
		if state := cmd.ProcessState; state != nil {
			exitCode = state.ExitCode()
		} else if waitErr != nil {
			exitCode = -1
		}
		if !failed && lastMessage == "" && exitCode != 0 {
			h.events <- Event{Kind: EventError, Err: domain.ErrTransientIO("codex CLI exited before producing a result", nil)}
		}
		h.events <- Event{Kind: EventExited, ExitCode: exitCode}
	}()

	return h, nil
}
