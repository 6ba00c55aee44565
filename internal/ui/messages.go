package ui

import (
	"github.com/dharper/prview/internal/github"
	"github.com/dharper/prview/internal/loader"
	"github.com/dharper/prview/internal/rally"
)

// DataMsg carries a PR data fetch result. Ch identifies the receiver the
// result came from; a result from a replaced receiver is dropped.
type DataMsg struct {
	Res loader.DataResult
	Ch  <-chan loader.DataResult
}

// CommentsMsg carries a comments fetch result.
type CommentsMsg struct {
	Res loader.CommentsResult
	Ch  <-chan loader.CommentsResult
}

// HighlightMsg carries the highlighted build for the active file. OK is
// false when the build channel closed without a result.
type HighlightMsg struct {
	Res loader.PrefetchResult
	OK  bool
	Ch  <-chan loader.PrefetchResult
}

// PrefetchMsg carries one prefetch-built cache. OK is false when the batch
// channel closed.
type PrefetchMsg struct {
	Res loader.PrefetchResult
	OK  bool
	Ch  <-chan loader.PrefetchResult
}

// RallyMsg carries one orchestrator event. OK is false when the event
// channel closed, meaning the rally run returned.
type RallyMsg struct {
	Event rally.Event
	OK    bool
	Ch    <-chan rally.Event
}

// LocalDataMsg carries the working tree diff for local mode.
type LocalDataMsg struct {
	Files []github.ChangedFile
	Err   error
}

// TickMsg drives the elapsed-time display once per second.
type TickMsg struct{}

// CommentSubmittedMsg reports the outcome of an async comment submission.
type CommentSubmittedMsg struct {
	PRNumber int
	Err      error
}

// ErrorMsg carries a transient error surfaced as a modal message.
type ErrorMsg struct {
	Err error
}
