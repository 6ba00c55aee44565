// Package cache implements the diff cache hierarchy: the session-level PR
// store, the prefetch store of highlighted diff caches, and the builder that
// produces them.
package cache

import (
	"fmt"
	"strings"
	"unicode"
)

// PRKey identifies a pull request across the cache hierarchy.
type PRKey struct {
	Repo   string
	Number int
}

func (k PRKey) String() string {
	return fmt.Sprintf("%s#%d", k.Repo, k.Number)
}

// SanitizeRepo converts a repository slug into a safe filesystem path
// component. Slashes become underscores; traversal elements, leading
// separators, hidden-file prefixes, and runes outside letters, digits,
// underscore, hyphen, and dot are rejected.
func SanitizeRepo(slug string) (string, error) {
	if slug == "" {
		return "", fmt.Errorf("empty repository slug")
	}
	if strings.Contains(slug, "..") {
		return "", fmt.Errorf("repository slug %q contains a parent-directory element", slug)
	}
	if slug[0] == '/' || slug[0] == '\\' {
		return "", fmt.Errorf("repository slug %q starts with a path separator", slug)
	}

	sanitized := strings.ReplaceAll(slug, "/", "_")
	for _, r := range sanitized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			continue
		}
		return "", fmt.Errorf("repository slug %q contains invalid character %q", slug, r)
	}
	if sanitized[0] == '.' {
		return "", fmt.Errorf("repository slug %q would produce a hidden path", slug)
	}
	return sanitized, nil
}

// SessionDirName returns the rally session directory name for a PR.
func SessionDirName(key PRKey) (string, error) {
	repo, err := SanitizeRepo(key.Repo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%d", repo, key.Number), nil
}
