package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dharper/prview/internal/github"
)

// MaxSessionPRs is the L1 cap on concurrently held PRs.
const MaxSessionPRs = 5

// SessionCache is the L1 store mapping PR keys to loaded PR data. It keeps
// an LRU order capped at MaxSessionPRs; eviction drops the PR and its
// comment collections in one step.
type SessionCache struct {
	prs *lru.Cache[PRKey, *PRData]
}

// NewSessionCache returns an empty session cache.
func NewSessionCache() *SessionCache {
	prs, err := lru.New[PRKey, *PRData](MaxSessionPRs)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &SessionCache{prs: prs}
}

// Get returns the PR data for a key and marks it most recently used.
func (c *SessionCache) Get(key PRKey) (*PRData, bool) {
	return c.prs.Get(key)
}

// Put installs or replaces the data for a PR, evicting the least recently
// used entry when over cap.
func (c *SessionCache) Put(key PRKey, data *PRData) {
	c.prs.Add(key, data)
}

// SetReviewComments attaches review comments to an already loaded PR.
// Returns false when the PR is not present; comments never outlive their PR
// entry.
func (c *SessionCache) SetReviewComments(key PRKey, comments []github.ReviewComment) bool {
	data, ok := c.prs.Peek(key)
	if !ok {
		return false
	}
	data.ReviewComments = comments
	return true
}

// SetDiscussionComments attaches discussion comments to a loaded PR.
func (c *SessionCache) SetDiscussionComments(key PRKey, comments []github.DiscussionComment) bool {
	data, ok := c.prs.Peek(key)
	if !ok {
		return false
	}
	data.DiscussionComments = comments
	return true
}

// Contains reports presence without disturbing the LRU order.
func (c *SessionCache) Contains(key PRKey) bool {
	return c.prs.Contains(key)
}

// Len returns the number of held PRs.
func (c *SessionCache) Len() int {
	return c.prs.Len()
}

// InvalidateAll drops every entry; used on the user's refresh command.
func (c *SessionCache) InvalidateAll() {
	c.prs.Purge()
}
