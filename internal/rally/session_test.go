package rally

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharper/prview/internal/agent"
	"github.com/dharper/prview/internal/cache"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestSessionRoundTrip(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 42}

	sess := NewSession("owner/repo", 42)
	sess.IncrementIteration()
	sess.UpdateState(StateReviewerReviewing)
	require.NoError(t, st.WriteSession(sess))

	loaded, err := st.ReadSession(key)
	require.NoError(t, err)
	assert.Equal(t, "owner/repo", loaded.Repo)
	assert.Equal(t, 42, loaded.PRNumber)
	assert.Equal(t, 1, loaded.Iteration)
	assert.Equal(t, StateReviewerReviewing, loaded.State)
	assert.False(t, loaded.StartedAt.IsZero())
}

func TestSessionDirLayout(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 7}

	dir, err := st.Dir(key)
	require.NoError(t, err)
	assert.Equal(t, "owner_repo_7", filepath.Base(dir))
	assert.DirExists(t, filepath.Join(dir, "history"))
	assert.DirExists(t, filepath.Join(dir, "logs"))
}

func TestHistoryNumbering(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 7}

	review := &agent.ReviewerOutput{Action: agent.ActionRequestChanges, Summary: "fix it"}
	fix := &agent.RevieweeOutput{Status: agent.StatusCompleted, Summary: "fixed"}

	require.NoError(t, st.WriteReviewHistory(key, 1, review))
	require.NoError(t, st.WriteFixHistory(key, 1, fix))
	require.NoError(t, st.WriteReviewHistory(key, 2, review))

	dir, err := st.Dir(key)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "history", "001_review.json"))
	assert.FileExists(t, filepath.Join(dir, "history", "001_fix.json"))
	assert.FileExists(t, filepath.Join(dir, "history", "002_review.json"))
}

func TestWriteRawHistory(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 7}

	require.NoError(t, st.WriteRawHistory(key, 3, "review", []byte("not json at all")))

	dir, err := st.Dir(key)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "history", "003_review_raw.json"))
	require.NoError(t, err)
	assert.Equal(t, "not json at all", string(data))
}

func TestWriteContext(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 7}

	rctx := &Context{Repo: "owner/repo", PRNumber: 7, PRTitle: "Add thing", Diff: "+x"}
	require.NoError(t, st.WriteContext(key, rctx))

	dir, err := st.Dir(key)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "context.json"))
}

func TestAppendLog(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 7}

	require.NoError(t, st.AppendLog(key, "first line"))
	require.NoError(t, st.AppendLog(key, "second line"))

	dir, err := st.Dir(key)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "logs", "rally.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first line")
	assert.Contains(t, string(data), "second line")
}

func TestCleanup(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 7}

	dir, err := st.Dir(key)
	require.NoError(t, err)
	require.NoError(t, st.Cleanup(key))
	assert.NoDirExists(t, dir)

	// Cleaning an absent session is not an error.
	assert.NoError(t, st.Cleanup(key))
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	st := testStore(t)
	key := cache.PRKey{Repo: "owner/repo", Number: 9}

	sess := NewSession("owner/repo", 9)
	require.NoError(t, st.WriteSession(sess))

	dir, err := st.Dir(key)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestRejectsUnsafeRepo(t *testing.T) {
	st := testStore(t)
	_, err := st.Dir(cache.PRKey{Repo: "../evil", Number: 1})
	assert.Error(t, err)
}
