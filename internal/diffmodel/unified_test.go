package diffmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unifiedMultiple = `diff --git a/internal/lib.go b/internal/lib.go
index 1111111..2222222 100644
--- a/internal/lib.go
+++ b/internal/lib.go
@@ -1,2 +1,3 @@
 package lib
+var Version string
diff --git a/internal/app.go b/internal/app.go
index 3333333..4444444 100644
--- a/internal/app.go
+++ b/internal/app.go
@@ -10,6 +10,7 @@
 type App struct {
 	Name string
+	Version string
 }
`

func TestSplitUnifiedDiffMultiple(t *testing.T) {
	result := SplitUnifiedDiff(unifiedMultiple)
	require.Len(t, result, 2)

	lib, ok := result["internal/lib.go"]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(lib, "diff --git a/internal/lib.go"))
	assert.Contains(t, lib, "+var Version string")
	assert.NotContains(t, lib, "app.go")

	app, ok := result["internal/app.go"]
	require.True(t, ok)
	assert.Contains(t, app, "+\tVersion string")
}

func TestSplitUnifiedDiffRenamed(t *testing.T) {
	unified := `diff --git a/old_name.go b/new_name.go
similarity index 95%
rename from old_name.go
rename to new_name.go
index 1234567..abcdefg 100644
--- a/old_name.go
+++ b/new_name.go
@@ -1,3 +1,3 @@
-func oldName() {
+func newName() {
 }
`
	// The platform API reports renamed files under the old path.
	result := SplitUnifiedDiff(unified)
	require.Len(t, result, 1)
	_, ok := result["old_name.go"]
	assert.True(t, ok)
}

func TestSplitUnifiedDiffBinary(t *testing.T) {
	unified := `diff --git a/image.png b/image.png
new file mode 100644
index 0000000..1234567
Binary files /dev/null and b/image.png differ
`
	result := SplitUnifiedDiff(unified)
	require.Len(t, result, 1)
	assert.Contains(t, result["image.png"], "Binary files")
}

func TestSplitUnifiedDiffEmpty(t *testing.T) {
	assert.Empty(t, SplitUnifiedDiff(""))
}

func TestSplitUnifiedDiffKeysHaveNoPrefix(t *testing.T) {
	for name := range SplitUnifiedDiff(unifiedMultiple) {
		assert.False(t, strings.HasPrefix(name, "a/"))
		assert.False(t, strings.HasPrefix(name, "b/"))
	}
}

func TestExtractFilename(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"diff --git a/src/foo.go b/src/foo.go", "src/foo.go"},
		{"diff --git a/deep/nested/path/f.go b/deep/nested/path/f.go", "deep/nested/path/f.go"},
		{"diff --git a/old.go b/new.go", "old.go"},
		{"not a diff line", ""},
		{"diff --git a/file nob", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractFilename(tt.line), tt.line)
	}
}
