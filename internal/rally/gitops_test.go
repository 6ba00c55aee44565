package rally

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckBlockedGitAllowed(t *testing.T) {
	tests := []string{
		"git status",
		"git diff HEAD",
		"git add -A",
		"git commit -m 'fix: handle nil'",
		"git log --oneline",
		"git show HEAD",
		"git branch -a",
		"git switch main",
		"git stash pop",
		"Bash(git status:*)",
		"Bash(git diff:*)",
		"git status && git diff",
		"ls -la",
		"Read",
		"Edit",
		"Bash(go test ./...:*)",
		"Bash(cat file.txt)",
	}
	for _, action := range tests {
		t.Run(action, func(t *testing.T) {
			assert.Empty(t, CheckBlockedGit(action))
		})
	}
}

func TestCheckBlockedGitBlocked(t *testing.T) {
	tests := []string{
		"git push",
		"git push --force",
		"git push origin main",
		"Bash(git push:*)",
		"Bash(git push origin main)",
		"git reset --hard HEAD~1",
		"git rebase main",
		"git merge feature",
		"git checkout main",
		"git",
		"git -C /tmp push",
		"git status && git push",
		"git status; git push",
		"git status | git push",
		"git status\ngit push",
		"git diff || git push",
		"/usr/bin/git push",
		"./git push",
		"env git push",
		"sudo git push",
		"command git push",
		"GIT_TRACE=1 git push",
		"env -i git push",
		`sh -c "git push"`,
		"sh -c 'git push'",
		`bash -lc "git push"`,
		`bash -c "git status && git push"`,
		`env sh -c "git push"`,
		`Bash(sh -c "git push":*)`,
	}
	for _, action := range tests {
		t.Run(action, func(t *testing.T) {
			assert.NotEmpty(t, CheckBlockedGit(action))
		})
	}
}

func TestCheckBlockedGitNestingDepth(t *testing.T) {
	// Within the depth cap the inner git push is found.
	nested := `sh -c "sh -c 'git push'"`
	assert.NotEmpty(t, CheckBlockedGit(nested))

	// Beyond the cap even harmless commands are blocked outright.
	assert.NotEmpty(t, checkCommandForBlockedGit("git status", maxShellNestingDepth+1))
}

func TestExtractBashCommand(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{"Bash(git push:*)", "git push", true},
		{"Bash(git status)", "git status", true},
		{"Bash(npm test:*)", "npm test", true},
		{"Read", "", false},
		{"git push", "", false},
		{"Bash(unterminated", "", false},
	}
	for _, tt := range tests {
		got, found := extractBashCommand(tt.in)
		assert.Equal(t, tt.found, found, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSplitShellCommands(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"git status", []string{"git status"}},
		{"git status && git push", []string{"git status ", " git push"}},
		{"a; b", []string{"a", " b"}},
		{"a | b", []string{"a ", " b"}},
		{"a || b", []string{"a ", " b"}},
		{"a & b", []string{"a ", " b"}},
		{"a\nb", []string{"a", "b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitShellCommands(tt.in), tt.in)
	}
}

func TestExtractInterpreterCommand(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{`sh -c 'git push'`, "git push", true},
		{`sh -c "git push"`, "git push", true},
		{`bash -lc "git status && git push"`, "git status && git push", true},
		{"/usr/bin/bash -c git push", "git", true},
		{`env sh -c "git push"`, "git push", true},
		{"sh script.sh", "", false},
		{"git push", "", false},
	}
	for _, tt := range tests {
		got, found := extractInterpreterCommand(tt.in)
		assert.Equal(t, tt.found, found, tt.in)
		if tt.found {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestIsEnvAssignment(t *testing.T) {
	assert.True(t, isEnvAssignment("VAR=value"))
	assert.True(t, isEnvAssignment("GIT_TRACE=1"))
	assert.False(t, isEnvAssignment("=value"))
	assert.False(t, isEnvAssignment("git"))
	assert.False(t, isEnvAssignment("a-b=c"))
}

func TestIsBotUser(t *testing.T) {
	assert.True(t, isBotUser("coderabbitai[bot]"))
	assert.True(t, isBotUser("copilot[bot]"))
	assert.True(t, isBotUser("github-actions"))
	assert.True(t, isBotUser("dependabot"))
	assert.False(t, isBotUser("octocat"))
	assert.False(t, isBotUser("bot-fan"))
}
