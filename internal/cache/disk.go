package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotTTL bounds how long a disk snapshot serves startup before a
// revalidation round-trip is required.
const SnapshotTTL = 5 * time.Minute

// DiskStore snapshots PR data as JSON under the user cache directory so a
// restart renders instantly while the loader revalidates in the background.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a store rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// DefaultDiskDir returns the per-user snapshot directory.
func DefaultDiskDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "prview"), nil
}

// Dir returns the store's root directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) snapshotPath(key PRKey) (string, error) {
	name, err := SessionDirName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Load reads the snapshot for a PR. stale is true when the snapshot exists
// but its age exceeds SnapshotTTL; callers render it and schedule a
// revalidating fetch.
func (s *DiskStore) Load(key PRKey) (data *PRData, stale bool, err error) {
	path, err := s.snapshotPath(key)
	if err != nil {
		return nil, false, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snap PRData
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt snapshot is treated as absent.
		return nil, false, nil
	}
	return &snap, time.Since(snap.FetchedAt) > SnapshotTTL, nil
}

// Save writes the snapshot atomically via a temp file and rename.
func (s *DiskStore) Save(key PRKey, data *PRData) error {
	path, err := s.snapshotPath(key)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

// Remove drops the snapshot for a PR, ignoring absence.
func (s *DiskStore) Remove(key PRKey) error {
	path, err := s.snapshotPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
