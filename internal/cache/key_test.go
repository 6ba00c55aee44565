package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRepo(t *testing.T) {
	tests := []struct {
		name  string
		slug  string
		want  string
		valid bool
	}{
		{"simple slug", "owner/repo", "owner_repo", true},
		{"hyphen and dot", "my-org/repo.name", "my-org_repo.name", true},
		{"underscores", "some_org/some_repo", "some_org_some_repo", true},
		{"unicode letters allowed", "café/naïve", "café_naïve", true},
		{"empty", "", "", false},
		{"parent traversal", "../etc", "", false},
		{"embedded traversal", "owner/..", "", false},
		{"leading slash", "/etc/passwd", "", false},
		{"leading backslash", `\windows`, "", false},
		{"leading dot becomes hidden", ".hidden/repo", "", false},
		{"emoji rejected", "owner/repo🚀", "", false},
		{"space rejected", "owner/my repo", "", false},
		{"colon rejected", "owner:repo", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeRepo(tt.slug)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSessionDirName(t *testing.T) {
	name, err := SessionDirName(PRKey{Repo: "owner/repo", Number: 42})
	require.NoError(t, err)
	assert.Equal(t, "owner_repo_42", name)

	_, err = SessionDirName(PRKey{Repo: "../evil", Number: 1})
	assert.Error(t, err)
}
