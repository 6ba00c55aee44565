// Package github shells out to the gh CLI for pull request data. It is the
// only component that talks to the hosting platform.
package github

import "time"

// PullRequest is the metadata record for one PR.
type PullRequest struct {
	Number     int
	Title      string
	Body       string
	Author     string
	State      string
	BaseBranch string
	HeadBranch string
	HeadSHA    string
	UpdatedAt  time.Time
	URL        string
}

// ChangedFile is one file of a PR's file list with its patch.
type ChangedFile struct {
	Path      string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// ReviewComment is anchored to a file and line.
type ReviewComment struct {
	ID        int64
	Path      string
	Line      int
	Body      string
	Author    string
	CreatedAt time.Time
}

// DiscussionComment is a top-level PR conversation comment.
type DiscussionComment struct {
	ID        int64
	Body      string
	Author    string
	CreatedAt time.Time
}

// ReviewAction is the verb of a submitted review.
type ReviewAction string

const (
	ReviewApprove        ReviewAction = "APPROVE"
	ReviewRequestChanges ReviewAction = "REQUEST_CHANGES"
	ReviewCommentAction  ReviewAction = "COMMENT"
)

// InlineComment is a review comment positioned inside a patch.
type InlineComment struct {
	Path     string `json:"path"`
	Position int    `json:"position"`
	Body     string `json:"body"`
}
