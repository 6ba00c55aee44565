package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewActionValues(t *testing.T) {
	assert.Equal(t, ReviewAction("APPROVE"), ReviewApprove)
	assert.Equal(t, ReviewAction("REQUEST_CHANGES"), ReviewRequestChanges)
	assert.Equal(t, ReviewAction("COMMENT"), ReviewCommentAction)
}

// The comment record type and the COMMENT review verb are distinct names;
// both are used in the same expressions when posting reviews.
func TestCommentTypeAndActionCoexist(t *testing.T) {
	c := ReviewComment{ID: 1, Path: "main.go", Line: 3, Body: "note"}
	assert.Equal(t, "main.go", c.Path)
	assert.NotEmpty(t, string(ReviewCommentAction))
}
