package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"strings"

	"github.com/dharper/prview/internal/domain"
)

// ClaudeAdapter drives the claude CLI in print mode with stream-json output.
type ClaudeAdapter struct {
	binaryPath string
}

// NewClaudeAdapter creates an adapter using the claude binary on PATH.
func NewClaudeAdapter() *ClaudeAdapter {
	return &ClaudeAdapter{binaryPath: "claude"}
}

// Name implements Adapter.
func (a *ClaudeAdapter) Name() string { return "claude" }

// Available reports whether the CLI binary can be found.
func (a *ClaudeAdapter) Available() bool {
	_, err := exec.LookPath(a.binaryPath)
	return err == nil
}

// claudeChunk is one stream-json line from the claude CLI.
type claudeChunk struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Message *struct {
		Content []struct {
			Type     string          `json:"type"`
			Text     string          `json:"text,omitempty"`
			Thinking string          `json:"thinking,omitempty"`
			Name     string          `json:"name,omitempty"`
			Input    json.RawMessage `json:"input,omitempty"`
		} `json:"content"`
	} `json:"message,omitempty"`
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// Spawn launches the CLI and streams its events until the result chunk.
func (a *ClaudeAdapter) Spawn(ctx context.Context, req SpawnRequest) (*Handle, error) {
	if !a.Available() {
		return nil, domain.ErrAgentNotFound("claude")
	}

	runCtx, cancel := context.WithCancel(ctx)
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
	}
	if len(req.Tools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.Tools, ","))
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
		return nil, domain.ErrTransientIO("failed to start claude CLI", err)
	}

	h := newHandle(cmd, cancel)

	go drainStderr(stderr)

	go func() {
		defer close(h.events)

		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		sawFinal := false
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk claudeChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				h.events <- Event{Kind: EventError, Err: domain.ErrMalformed("bad stream line", err)}
				continue
			}

			for _, ev := range a.translate(chunk) {
				if ev.Kind == EventFinal {
					sawFinal = true
				}
				h.events <- ev
			}
		}
		if err := scanner.Err(); err != nil {
			h.events <- Event{Kind: EventError, Err: domain.ErrTransientIO("stream read failed", err)}
		}

		// Wait must complete before ProcessState carries the exit code.
		waitErr := cmd.Wait()
		exitCode := 0
		if state := cmd.ProcessState; state != nil {
			exitCode = state.ExitCode()
		} else if waitErr != nil {
			exitCode = -1
		}
		if !sawFinal && exitCode != 0 {
			h.events <- Event{Kind: EventError, Err: domain.ErrTransientIO("claude CLI exited before producing a result", nil)}
		}
		h.events <- Event{Kind: EventExited, ExitCode: exitCode}
	}()

	return h, nil
}

func (a *ClaudeAdapter) translate(chunk claudeChunk) []Event {
	switch chunk.Type {
	case "assistant":
		if chunk.Message == nil {
			return nil
		}
		var events []Event
		for _, block := range chunk.Message.Content {
			switch block.Type {
			case "thinking":
				if block.Thinking != "" {
					events = append(events, Event{Kind: EventThinking, Text: block.Thinking})
				}
			case "text":
				if block.Text != "" {
					events = append(events, Event{Kind: EventText, Text: block.Text})
				}
			case "tool_use":
				events = append(events, Event{Kind: EventToolUse, ToolName: block.Name, ToolArgs: string(block.Input)})
			}
		}
		return events
	case "result":
		if chunk.IsError {
			return []Event{{Kind: EventError, Err: domain.ErrAgentProtocol("claude reported an error result", nil)}}
		}
		return []Event{{Kind: EventFinal, Final: json.RawMessage(ExtractJSON(chunk.Result))}}
	default:
		// system and user chunks carry no UI-visible information.
		return nil
	}
}

func drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
	}
}
