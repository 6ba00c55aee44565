package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/dharper/prview/internal/domain"
)

// ReviewerAction is the verdict of one reviewer pass.
type ReviewerAction string

const (
	ActionApprove        ReviewerAction = "approve"
	ActionRequestChanges ReviewerAction = "request_changes"
	ActionComment        ReviewerAction = "comment"
)

// ReviewerComment is one file-anchored finding.
type ReviewerComment struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Body     string `json:"body"`
	Severity string `json:"severity,omitempty"`
}

// ReviewerOutput is the terminal payload of a reviewer run.
type ReviewerOutput struct {
	Action         ReviewerAction    `json:"action"`
	Summary        string            `json:"summary"`
	Comments       []ReviewerComment `json:"comments,omitempty"`
	BlockingIssues []string          `json:"blocking_issues,omitempty"`
}

// RevieweeStatus is the outcome of one reviewee fix pass.
type RevieweeStatus string

const (
	StatusCompleted          RevieweeStatus = "completed"
	StatusNeedsClarification RevieweeStatus = "needs_clarification"
	StatusNeedsPermission    RevieweeStatus = "needs_permission"
	StatusError              RevieweeStatus = "error"
)

// PermissionRequest names an action the reviewee wants approved.
type PermissionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// RevieweeOutput is the terminal payload of a reviewee run.
type RevieweeOutput struct {
	Status            RevieweeStatus     `json:"status"`
	Summary           string             `json:"summary"`
	FilesModified     []string           `json:"files_modified,omitempty"`
	Question          string             `json:"question,omitempty"`
	PermissionRequest *PermissionRequest `json:"permission_request,omitempty"`
	ErrorDetails      string             `json:"error_details,omitempty"`
}

// ExtractJSON pulls the JSON object out of an agent's final text, tolerating
// markdown code fences and prose around the object.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = rest[:end]
		} else {
			trimmed = rest
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return trimmed
	}
	return trimmed[start : end+1]
}

// decode unmarshals agent JSON, running it through jsonrepair when the raw
// payload does not parse. Agent CLIs occasionally emit trailing commas or
// truncated quoting that repair recovers.
func decode(raw string, v any) error {
	payload := ExtractJSON(raw)
	if err := json.Unmarshal([]byte(payload), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return fmt.Errorf("repair: %w", err)
	}
	return json.Unmarshal([]byte(repaired), v)
}

// DecodeReviewer parses and validates a reviewer terminal payload.
func DecodeReviewer(raw string) (*ReviewerOutput, error) {
	var out ReviewerOutput
	if err := decode(raw, &out); err != nil {
		return nil, domain.ErrAgentProtocol("reviewer output is not valid JSON", err)
	}
	switch out.Action {
	case ActionApprove, ActionRequestChanges, ActionComment:
	default:
		return nil, domain.ErrAgentProtocol(fmt.Sprintf("reviewer action %q is not recognised", out.Action), nil)
	}
	return &out, nil
}

// DecodeReviewee parses and validates a reviewee terminal payload.
func DecodeReviewee(raw string) (*RevieweeOutput, error) {
	var out RevieweeOutput
	if err := decode(raw, &out); err != nil {
		return nil, domain.ErrAgentProtocol("reviewee output is not valid JSON", err)
	}
	switch out.Status {
	case StatusCompleted, StatusNeedsClarification, StatusNeedsPermission, StatusError:
	default:
		return nil, domain.ErrAgentProtocol(fmt.Sprintf("reviewee status %q is not recognised", out.Status), nil)
	}
	if out.Status == StatusNeedsClarification && out.Question == "" {
		return nil, domain.ErrAgentProtocol("needs_clarification without a question", nil)
	}
	if out.Status == StatusNeedsPermission && out.PermissionRequest == nil {
		return nil, domain.ErrAgentProtocol("needs_permission without a permission_request", nil)
	}
	return &out, nil
}
