package rally

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dharper/prview/internal/agent"
	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/domain"
)

// Session is the persisted state of one rally, written after every
// transition so an interrupted run can be inspected.
type Session struct {
	Repo      string    `json:"repo"`
	PRNumber  int       `json:"pr_number"`
	Iteration int       `json:"iteration"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session at iteration zero.
func NewSession(repo string, prNumber int) *Session {
	now := time.Now().UTC()
	return &Session{
		Repo:      repo,
		PRNumber:  prNumber,
		State:     StateInitializing,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// UpdateState sets the state and refreshes the update timestamp.
func (s *Session) UpdateState(state State) {
	s.State = state
	s.UpdatedAt = time.Now().UTC()
}

// IncrementIteration advances the iteration counter.
func (s *Session) IncrementIteration() {
	s.Iteration++
	s.UpdatedAt = time.Now().UTC()
}

// Store persists rally sessions under a root directory, one subdirectory per
// PR holding session.json, context.json, a numbered history, and logs.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if absent.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.ErrTransientIO("failed to create rally store", err)
	}
	return &Store{root: dir}, nil
}

// DefaultStoreDir returns <user-cache>/prview/rally.
func DefaultStoreDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", domain.ErrConfig("cannot locate user cache directory", err)
	}
	return filepath.Join(base, "prview", "rally"), nil
}

// Dir returns the session directory for a PR, creating it along with its
// history and logs subdirectories.
func (st *Store) Dir(key cache.PRKey) (string, error) {
	name, err := cache.SessionDirName(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(st.root, name)
	for _, sub := range []string{"history", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", domain.ErrTransientIO("failed to create session directory", err)
		}
	}
	return dir, nil
}

// WriteSession persists session.json atomically.
func (st *Store) WriteSession(sess *Session) error {
	dir, err := st.Dir(cache.PRKey{Repo: sess.Repo, Number: sess.PRNumber})
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, "session.json"), sess)
}

// ReadSession loads a previously persisted session.json.
func (st *Store) ReadSession(key cache.PRKey) (*Session, error) {
	dir, err := st.Dir(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "session.json"))
	if err != nil {
		return nil, domain.ErrTransientIO("failed to read session", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, domain.ErrMalformed("corrupt session file", err)
	}
	return &sess, nil
}

// WriteContext persists context.json atomically.
func (st *Store) WriteContext(key cache.PRKey, rctx *Context) error {
	dir, err := st.Dir(key)
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, "context.json"), rctx)
}

// WriteReviewHistory records the reviewer output for an iteration as
// history/NNN_review.json.
func (st *Store) WriteReviewHistory(key cache.PRKey, iteration int, review *agent.ReviewerOutput) error {
	return st.writeHistory(key, iteration, "review", review)
}

// WriteFixHistory records the reviewee output for an iteration as
// history/NNN_fix.json.
func (st *Store) WriteFixHistory(key cache.PRKey, iteration int, fix *agent.RevieweeOutput) error {
	return st.writeHistory(key, iteration, "fix", fix)
}

// WriteRawHistory records an undecodable terminal payload so protocol
// failures remain auditable.
func (st *Store) WriteRawHistory(key cache.PRKey, iteration int, kind string, payload []byte) error {
	dir, err := st.Dir(key)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%03d_%s_raw.json", iteration, kind)
	return writeFileAtomic(filepath.Join(dir, "history", name), payload)
}

func (st *Store) writeHistory(key cache.PRKey, iteration int, kind string, entry any) error {
	dir, err := st.Dir(key)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%03d_%s.json", iteration, kind)
	return writeJSONAtomic(filepath.Join(dir, "history", name), entry)
}

// AppendLog appends a timestamped line to logs/rally.log.
func (st *Store) AppendLog(key cache.PRKey, line string) error {
	dir, err := st.Dir(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "logs", "rally.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.ErrTransientIO("failed to open rally log", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line)
	if err != nil {
		return domain.ErrTransientIO("failed to append rally log", err)
	}
	return nil
}

// Cleanup removes the session directory for a PR.
func (st *Store) Cleanup(key cache.PRKey) error {
	name, err := cache.SessionDirName(key)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(st.root, name))
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.ErrMalformed("failed to encode session data", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes through a temp file and renames so readers never
// observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.ErrTransientIO("failed to write session data", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return domain.ErrTransientIO("failed to finalise session data", err)
	}
	return nil
}
