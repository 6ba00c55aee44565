package diffmodel

import "strings"

// SplitUnifiedDiff splits the output of `git diff` or `gh pr diff` into
// per-file patches keyed by the normalised filename (no a/ or b/ prefix).
// For renames the key is the old path, matching what the platform API
// reports for the file.
func SplitUnifiedDiff(unified string) map[string]string {
	result := make(map[string]string)
	if unified == "" {
		return result
	}

	lines := strings.Split(unified, "\n")
	var curName string
	start := -1

	flush := func(end int) {
		if curName == "" || start < 0 {
			return
		}
		patch := strings.Join(lines[start:end], "\n")
		if patch != "" {
			result[curName] = patch
		}
	}

	for i, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			flush(i)
			curName = extractFilename(line)
			start = i
		}
	}
	flush(len(lines))
	return result
}

// extractFilename pulls the old-side path out of a "diff --git a/x b/y"
// line. Paths containing " b/" are handled by taking the last separator.
func extractFilename(line string) string {
	rest, ok := strings.CutPrefix(line, "diff --git ")
	if !ok {
		return ""
	}
	aPath, ok := strings.CutPrefix(rest, "a/")
	if !ok {
		return ""
	}
	if idx := strings.LastIndex(aPath, " b/"); idx >= 0 {
		return aPath[:idx]
	}
	return ""
}
