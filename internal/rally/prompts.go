package rally

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dharper/prview/internal/agent"
)

//go:embed prompts/reviewer.md
var defaultReviewerPrompt string

//go:embed prompts/reviewee.md
var defaultRevieweePrompt string

//go:embed prompts/rereview.md
var defaultRereviewPrompt string

const externalCommentMaxLen = 200

// PromptLoader resolves prompt templates with multi-level overrides.
//
// Resolution order (highest priority first):
//  1. <project>/.prview/prompts/ (project-local)
//  2. prompt_dir from config
//  3. <user-config>/prview/prompts/ (global)
//  4. embedded default
type PromptLoader struct {
	promptDir string
	localDir  string
	globalDir string
}

// NewPromptLoader creates a loader. A relative promptDir is resolved against
// projectRoot. Either argument may be empty.
func NewPromptLoader(promptDir, projectRoot string) *PromptLoader {
	if promptDir != "" && !filepath.IsAbs(promptDir) && projectRoot != "" {
		promptDir = filepath.Join(projectRoot, promptDir)
	}

	localDir := ""
	if projectRoot != "" {
		candidate := filepath.Join(projectRoot, ".prview", "prompts")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			localDir = candidate
		}
	}

	globalDir := ""
	if base, err := os.UserConfigDir(); err == nil {
		globalDir = filepath.Join(base, "prview", "prompts")
	}

	return &PromptLoader{promptDir: promptDir, localDir: localDir, globalDir: globalDir}
}

// ReviewerPrompt builds the first-iteration reviewer prompt.
func (l *PromptLoader) ReviewerPrompt(rctx *Context, iteration int) string {
	tmpl := l.loadTemplate("reviewer.md", defaultReviewerPrompt)

	body := rctx.PRBody
	if body == "" {
		body = "(No description provided)"
	}

	return renderTemplate(tmpl, map[string]string{
		"repo":      rctx.Repo,
		"pr_number": strconv.Itoa(rctx.PRNumber),
		"pr_title":  rctx.PRTitle,
		"pr_body":   body,
		"diff":      rctx.Diff,
		"iteration": strconv.Itoa(iteration),
	})
}

// RevieweePrompt builds the fix prompt from the reviewer's output.
func (l *PromptLoader) RevieweePrompt(rctx *Context, review *agent.ReviewerOutput, iteration int) string {
	tmpl := l.loadTemplate("reviewee.md", defaultRevieweePrompt)

	var comments []string
	for _, c := range review.Comments {
		severity := c.Severity
		if severity == "" {
			severity = "minor"
		}
		comments = append(comments, fmt.Sprintf("- [%s] %s:%d: %s", severity, c.Path, c.Line, c.Body))
	}
	commentsText := strings.Join(comments, "\n")
	if commentsText == "" {
		commentsText = "None"
	}

	blockingText := "None"
	if len(review.BlockingIssues) > 0 {
		var lines []string
		for _, issue := range review.BlockingIssues {
			lines = append(lines, "- "+issue)
		}
		blockingText = strings.Join(lines, "\n")
	}

	return renderTemplate(tmpl, map[string]string{
		"repo":              rctx.Repo,
		"pr_number":         strconv.Itoa(rctx.PRNumber),
		"pr_title":          rctx.PRTitle,
		"iteration":         strconv.Itoa(iteration),
		"review_action":     string(review.Action),
		"review_summary":    review.Summary,
		"review_comments":   commentsText,
		"blocking_issues":   blockingText,
		"external_comments": externalCommentsSection(rctx.ExternalComments),
		"git_operations":    gitOperationsSection(rctx.LocalMode),
	})
}

// RereviewPrompt builds the reviewer prompt for iterations after the first,
// carrying the fix summary and the refreshed diff.
func (l *PromptLoader) RereviewPrompt(rctx *Context, iteration int, changesSummary, updatedDiff string) string {
	tmpl := l.loadTemplate("rereview.md", defaultRereviewPrompt)

	return renderTemplate(tmpl, map[string]string{
		"repo":            rctx.Repo,
		"pr_number":       strconv.Itoa(rctx.PRNumber),
		"pr_title":        rctx.PRTitle,
		"iteration":       strconv.Itoa(iteration),
		"changes_summary": changesSummary,
		"updated_diff":    updatedDiff,
	})
}

func (l *PromptLoader) loadTemplate(filename, fallback string) string {
	for _, dir := range []string{l.localDir, l.promptDir, l.globalDir} {
		if dir == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			continue
		}
		return string(data)
	}
	return fallback
}

// ClarificationFollowupPrompt asks the reviewee to continue after the user
// answered its question.
func ClarificationFollowupPrompt(question, answer string) string {
	return fmt.Sprintf(`You previously asked a question about the review feedback:

## Question

%s

## Answer

%s

Please continue fixing the review findings with this answer in mind, then
output the same JSON object schema as before.`, question, answer)
}

// PermissionGrantedPrompt asks the reviewee to continue after the user
// granted a requested action.
func PermissionGrantedPrompt(action string) string {
	return fmt.Sprintf(`Permission has been granted for the following action:

%s

Please proceed with the implementation, then output the same JSON object
schema as before.`, action)
}

func externalCommentsSection(comments []ExternalComment) string {
	if len(comments) == 0 {
		return ""
	}

	var lines []string
	for _, c := range comments {
		location := "general"
		if c.Path != "" {
			location = c.Path
			if c.Line > 0 {
				location = fmt.Sprintf("%s:%d", c.Path, c.Line)
			}
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", c.Source, location, truncate(c.Body, externalCommentMaxLen)))
	}

	return fmt.Sprintf(`

## External Tool Feedback

The following comments are from external code review tools:

%s

Address these comments if they are relevant and valid. Do not wait for more
feedback from these tools.`, strings.Join(lines, "\n"))
}

func gitOperationsSection(localMode bool) string {
	if localMode {
		return `## Git Operations

This is a LOCAL-ONLY session. Do NOT run any git write commands
(add, commit, push, stash, switch, branch, merge, rebase, reset).
Only read-only git commands (status, diff, log, show) are allowed.
Edit files directly; the user will handle staging and committing.`
	}
	return `## Git Operations

After making changes, you MUST commit your changes locally:

1. Check status: ` + "`git status`" + `
2. Stage files: ` + "`git add <files>`" + `
3. Commit: ` + "`git commit -m \"fix: <description>\"`" + `

Do NOT push changes. The user will review and push manually.`
}

// renderTemplate replaces {{key}} placeholders. Unknown placeholders are
// left untouched.
func renderTemplate(tmpl string, vars map[string]string) string {
	result := tmpl
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// truncate shortens a string to max runes, appending an ellipsis.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
