// Package loader fetches PR data and comments on worker goroutines and
// delivers results over bounded channels tagged with the originating PR.
package loader

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/github"
)

// Mode selects between an unconditional fetch and a conditional one.
type Mode int

const (
	// Fresh always round-trips.
	Fresh Mode = iota
	// CheckUpdate compares the server's updated-at against the supplied
	// timestamp and reports "no change" without fetching files when equal.
	CheckUpdate
)

// Client is the subset of the platform shim the loader needs.
type Client interface {
	GetPullRequest(ctx context.Context, repo string, number int) (*github.PullRequest, error)
	ListChangedFiles(ctx context.Context, repo string, number int) ([]github.ChangedFile, error)
	ListReviewComments(ctx context.Context, repo string, number int) ([]github.ReviewComment, error)
	ListDiscussionComments(ctx context.Context, repo string, number int) ([]github.DiscussionComment, error)
}

// DataResult is one PR data fetch outcome, delivered in-band. Err carries
// any failure; Unchanged marks a CheckUpdate round-trip that found the
// server state identical.
type DataResult struct {
	Key       cache.PRKey
	Data      *cache.PRData
	Unchanged bool
	Err       error
}

// CommentsResult is one comments fetch outcome.
type CommentsResult struct {
	Key        cache.PRKey
	Review     []github.ReviewComment
	Discussion []github.DiscussionComment
	Err        error
}

// Loader runs fetches on goroutines. The UI owns the returned receivers and
// replaces them wholesale on PR switch; stale in-flight results are dropped
// with the old receiver.
type Loader struct {
	client Client
	log    zerolog.Logger
}

// New creates a loader.
func New(client Client, log zerolog.Logger) *Loader {
	return &Loader{client: client, log: log}
}

// FetchPRData fetches metadata and the changed-file list for one PR. The
// returned channel carries exactly one result and is then closed.
func (l *Loader) FetchPRData(ctx context.Context, key cache.PRKey, mode Mode, prevUpdatedAt time.Time) <-chan DataResult {
	ch := make(chan DataResult, 1)
	go func() {
		defer close(ch)
		ch <- l.fetchPRData(ctx, key, mode, prevUpdatedAt)
	}()
	return ch
}

func (l *Loader) fetchPRData(ctx context.Context, key cache.PRKey, mode Mode, prevUpdatedAt time.Time) DataResult {
	pr, err := l.client.GetPullRequest(ctx, key.Repo, key.Number)
	if err != nil {
		l.log.Warn().Err(err).Str("pr", key.String()).Msg("pr metadata fetch failed")
		return DataResult{Key: key, Err: err}
	}

	if mode == CheckUpdate && !prevUpdatedAt.IsZero() && pr.UpdatedAt.Equal(prevUpdatedAt) {
		l.log.Debug().Str("pr", key.String()).Msg("pr unchanged")
		return DataResult{Key: key, Unchanged: true}
	}

	files, err := l.client.ListChangedFiles(ctx, key.Repo, key.Number)
	if err != nil {
		l.log.Warn().Err(err).Str("pr", key.String()).Msg("file list fetch failed")
		return DataResult{Key: key, Err: err}
	}

	return DataResult{
		Key: key,
		Data: &cache.PRData{
			PR:        *pr,
			Files:     files,
			FetchedAt: time.Now(),
		},
	}
}

// FetchComments fetches both comment collections for one PR. The returned
// channel carries exactly one result and is then closed.
func (l *Loader) FetchComments(ctx context.Context, key cache.PRKey) <-chan CommentsResult {
	ch := make(chan CommentsResult, 1)
	go func() {
		defer close(ch)

		review, err := l.client.ListReviewComments(ctx, key.Repo, key.Number)
		if err != nil {
			l.log.Warn().Err(err).Str("pr", key.String()).Msg("review comments fetch failed")
			ch <- CommentsResult{Key: key, Err: err}
			return
		}
		discussion, err := l.client.ListDiscussionComments(ctx, key.Repo, key.Number)
		if err != nil {
			l.log.Warn().Err(err).Str("pr", key.String()).Msg("discussion comments fetch failed")
			ch <- CommentsResult{Key: key, Err: err}
			return
		}
		ch <- CommentsResult{Key: key, Review: review, Discussion: discussion}
	}()
	return ch
}
