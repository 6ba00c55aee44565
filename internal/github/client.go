package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/dharper/prview/internal/domain"
)

// Client implements the platform shim over the gh CLI.
type Client struct{}

// NewClient creates a gh CLI client.
func NewClient() *Client {
	return &Client{}
}

type ghPR struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	BaseRefName string `json:"baseRefName"`
	HeadRefName string `json:"headRefName"`
	HeadRefOid  string `json:"headRefOid"`
	State       string `json:"state"`
	UpdatedAt   string `json:"updatedAt"`
	URL         string `json:"url"`
	Author      struct {
		Login string `json:"login"`
	} `json:"author"`
}

type ghFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

type ghReviewComment struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

type ghIssueComment struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

// GetPullRequest fetches PR metadata.
func (c *Client) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	out, err := c.runGH(ctx, nil,
		"pr", "view", fmt.Sprintf("%d", number),
		"--repo", repo,
		"--json", "number,title,body,baseRefName,headRefName,headRefOid,author,state,updatedAt,url",
	)
	if err != nil {
		if strings.Contains(err.Error(), "Could not resolve") || strings.Contains(err.Error(), "no pull requests found") {
			return nil, domain.ErrPRNotFound(number)
		}
		return nil, domain.ErrTransientIO("failed to fetch PR", err)
	}

	var pr ghPR
	if err := json.Unmarshal(out, &pr); err != nil {
		return nil, domain.ErrMalformed("failed to parse PR response", err)
	}

	updatedAt, _ := time.Parse(time.RFC3339, pr.UpdatedAt)
	return &PullRequest{
		Number:     pr.Number,
		Title:      pr.Title,
		Body:       pr.Body,
		Author:     pr.Author.Login,
		State:      pr.State,
		BaseBranch: pr.BaseRefName,
		HeadBranch: pr.HeadRefName,
		HeadSHA:    pr.HeadRefOid,
		UpdatedAt:  updatedAt,
		URL:        pr.URL,
	}, nil
}

// ListChangedFiles fetches the PR's ordered file list with per-file patches.
func (c *Client) ListChangedFiles(ctx context.Context, repo string, number int) ([]ChangedFile, error) {
	out, err := c.runGH(ctx, nil,
		"api", fmt.Sprintf("repos/%s/pulls/%d/files", repo, number), "--paginate",
	)
	if err != nil {
		return nil, domain.ErrTransientIO("failed to fetch changed files", err)
	}

	var raw []ghFile
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, domain.ErrMalformed("failed to parse file list", err)
	}

	files := make([]ChangedFile, 0, len(raw))
	for _, f := range raw {
		files = append(files, ChangedFile{
			Path:      f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
	}
	return files, nil
}

// ListReviewComments fetches file-anchored review comments.
func (c *Client) ListReviewComments(ctx context.Context, repo string, number int) ([]ReviewComment, error) {
	out, err := c.runGH(ctx, nil,
		"api", fmt.Sprintf("repos/%s/pulls/%d/comments", repo, number), "--paginate",
	)
	if err != nil {
		return nil, domain.ErrTransientIO("failed to fetch review comments", err)
	}

	var raw []ghReviewComment
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, domain.ErrMalformed("failed to parse review comments", err)
	}

	comments := make([]ReviewComment, 0, len(raw))
	for _, rc := range raw {
		createdAt, _ := time.Parse(time.RFC3339, rc.CreatedAt)
		comments = append(comments, ReviewComment{
			ID:        rc.ID,
			Path:      rc.Path,
			Line:      rc.Line,
			Body:      rc.Body,
			Author:    rc.User.Login,
			CreatedAt: createdAt,
		})
	}
	return comments, nil
}

// ListDiscussionComments fetches top-level conversation comments.
func (c *Client) ListDiscussionComments(ctx context.Context, repo string, number int) ([]DiscussionComment, error) {
	out, err := c.runGH(ctx, nil,
		"api", fmt.Sprintf("repos/%s/issues/%d/comments", repo, number), "--paginate",
	)
	if err != nil {
		return nil, domain.ErrTransientIO("failed to fetch discussion comments", err)
	}

	var raw []ghIssueComment
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, domain.ErrMalformed("failed to parse discussion comments", err)
	}

	comments := make([]DiscussionComment, 0, len(raw))
	for _, ic := range raw {
		createdAt, _ := time.Parse(time.RFC3339, ic.CreatedAt)
		comments = append(comments, DiscussionComment{
			ID:        ic.ID,
			Body:      ic.Body,
			Author:    ic.User.Login,
			CreatedAt: createdAt,
		})
	}
	return comments, nil
}

// SubmitReview posts a review with an optional set of inline comments. When
// the platform rejects an approve (authors cannot approve their own PR), the
// review is resubmitted as a comment.
func (c *Client) SubmitReview(ctx context.Context, repo string, number int, body string, action ReviewAction, inline []InlineComment) error {
	payload := struct {
		Body     string          `json:"body"`
		Event    ReviewAction    `json:"event"`
		Comments []InlineComment `json:"comments,omitempty"`
	}{Body: body, Event: action, Comments: inline}

	data, err := json.Marshal(payload)
	if err != nil {
		return domain.ErrMalformed("failed to encode review payload", err)
	}

	_, err = c.runGH(ctx, data,
		"api", fmt.Sprintf("repos/%s/pulls/%d/reviews", repo, number),
		"-X", "POST", "--input", "-",
	)
	if err != nil {
		if action == ReviewApprove && strings.Contains(err.Error(), "Can not approve your own pull request") {
			return c.SubmitReview(ctx, repo, number, body, ReviewCommentAction, inline)
		}
		return domain.ErrTransientIO("failed to submit review", err)
	}
	return nil
}

// PRDiff returns the unified diff for the whole PR.
func (c *Client) PRDiff(ctx context.Context, repo string, number int) (string, error) {
	out, err := c.runGH(ctx, nil, "pr", "diff", fmt.Sprintf("%d", number), "--repo", repo)
	if err != nil {
		return "", domain.ErrTransientIO("failed to fetch PR diff", err)
	}
	return string(out), nil
}

// CurrentPR detects the PR number for the checked-out branch.
func (c *Client) CurrentPR(ctx context.Context) (int, error) {
	out, err := c.runGH(ctx, nil, "pr", "view", "--json", "number", "-q", ".number")
	if err != nil {
		return 0, domain.ErrTransientIO("failed to detect current PR", err)
	}
	var number int
	if err := json.Unmarshal(bytes.TrimSpace(out), &number); err != nil {
		return 0, domain.ErrMalformed("failed to parse PR number", err)
	}
	return number, nil
}

// RepoSlug returns the owner/name slug of the current repository.
func (c *Client) RepoSlug(ctx context.Context) (string, error) {
	out, err := c.runGH(ctx, nil, "repo", "view", "--json", "nameWithOwner", "-q", ".nameWithOwner")
	if err != nil {
		return "", domain.ErrTransientIO("failed to detect repository", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// runGH executes a gh command with bounded retries for transient failures.
// stdin may be nil.
func (c *Client) runGH(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	var out []byte
	err := retry.Do(
		func() error {
			cmd := exec.CommandContext(ctx, "gh", args...)
			if stdin != nil {
				cmd.Stdin = bytes.NewReader(stdin)
			}
			var err error
			out, err = cmd.Output()
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					return fmt.Errorf("gh %s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return err != nil && transientGHFailure(err.Error())
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transientGHFailure reports whether a gh stderr message looks like a
// network or rate-limit condition worth retrying.
func transientGHFailure(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{"timeout", "temporarily unavailable", "rate limit", "502", "503", "connection reset"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
