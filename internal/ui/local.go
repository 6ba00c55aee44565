package ui

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dharper/prview/internal/diffmodel"
	"github.com/dharper/prview/internal/domain"
	"github.com/dharper/prview/internal/github"
)

func (m *Model) loadLocalCmd() tea.Cmd {
	dir := m.workingDir
	return func() tea.Msg {
		files, err := LoadLocalFiles(context.Background(), dir)
		return LocalDataMsg{Files: files, Err: err}
	}
}

// LoadLocalFiles builds a changed-file list from the working tree: tracked
// changes against HEAD plus untracked files rendered as all-new diffs. Paths
// are sorted so the list order is stable across refreshes.
func LoadLocalFiles(ctx context.Context, dir string) ([]github.ChangedFile, error) {
	unified, err := runGit(ctx, dir, "diff", "HEAD")
	if err != nil {
		return nil, domain.ErrTransientIO("git diff failed", err)
	}
	patches := diffmodel.SplitUnifiedDiff(unified)

	untracked, err := runGit(ctx, dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, domain.ErrTransientIO("git ls-files failed", err)
	}
	for _, path := range strings.Fields(untracked) {
		if _, ok := patches[path]; ok {
			continue
		}
		// git diff --no-index exits 1 when the files differ, which is the
		// expected outcome here.
		patch, err := runGit(ctx, dir, "diff", "--no-index", "--", "/dev/null", path)
		if err != nil && patch == "" {
			continue
		}
		for name, p := range diffmodel.SplitUnifiedDiff(patch) {
			patches[name] = p
		}
	}

	paths := make([]string, 0, len(patches))
	for path := range patches {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	files := make([]github.ChangedFile, 0, len(paths))
	for _, path := range paths {
		patch := patches[path]
		additions, deletions := countChanges(patch)
		status := "modified"
		if deletions == 0 && additions > 0 && strings.Contains(patch, "new file mode") {
			status = "added"
		}
		files = append(files, github.ChangedFile{
			Path:      path,
			Status:    status,
			Additions: additions,
			Deletions: deletions,
			Patch:     patch,
		})
	}
	return files, nil
}

func countChanges(patch string) (additions, deletions int) {
	for _, line := range diffmodel.Lines(diffmodel.ParsePatch(patch)) {
		switch line.Kind {
		case diffmodel.Added:
			additions++
		case diffmodel.Removed:
			deletions++
		}
	}
	return additions, deletions
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// diff exits 1 on differences; only exit codes above 1 are
			// failures.
			if exitErr.ExitCode() == 1 {
				return string(out), nil
			}
			return "", fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
