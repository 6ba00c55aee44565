package rally

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// gitTimeout bounds every git subprocess so a slow remote or credential
// prompt cannot hang an iteration.
const gitTimeout = 30 * time.Second

// allowedGitSubcommands are read-only or local-only operations the reviewee
// may run. Anything else is blocked when validating permission grants in
// local mode.
var allowedGitSubcommands = []string{
	"status", "diff", "add", "commit", "log", "show", "branch", "switch", "stash",
}

// shellWrappers can prefix the actual binary, e.g. "env git push".
var shellWrappers = []string{"env", "command", "builtin", "exec", "nohup", "nice", "sudo", "xargs"}

// shellInterpreters can execute arbitrary command strings via -c.
var shellInterpreters = []string{"sh", "bash", "zsh", "dash", "ksh", "fish"}

// maxShellNestingDepth caps recursion into nested interpreter invocations.
const maxShellNestingDepth = 3

// DiffFetcher is the platform fallback for the current-diff computation.
type DiffFetcher interface {
	PRDiff(ctx context.Context, repo string, number int) (string, error)
}

// CurrentDiff computes the diff the reviewer should see this iteration.
// Local git is preferred so unpushed commits made by the reviewee are
// visible; the platform diff is the fallback. In local mode the working tree
// diff wins and there is no platform fallback.
func CurrentDiff(ctx context.Context, rctx *Context, gh DiffFetcher) (string, error) {
	if rctx.LocalMode {
		return localWorkingDiff(ctx, rctx)
	}

	if rctx.WorkingDir != "" {
		// Refresh the base ref first so the three-dot diff is accurate.
		// A fetch failure only means a potentially stale ref.
		_, _ = runGit(ctx, rctx.WorkingDir, "fetch", "origin", rctx.BaseBranch)

		diff, err := runGit(ctx, rctx.WorkingDir, "diff", fmt.Sprintf("origin/%s...HEAD", rctx.BaseBranch))
		if err == nil && strings.TrimSpace(diff) != "" {
			return diff, nil
		}
	}

	return gh.PRDiff(ctx, rctx.Repo, rctx.PRNumber)
}

// localWorkingDiff prefers git diff HEAD (working tree plus staged), then
// the committed delta against the base. Both empty yields an empty string
// rather than a stale fallback.
func localWorkingDiff(ctx context.Context, rctx *Context) (string, error) {
	dir := rctx.WorkingDir
	if dir == "" {
		dir = "."
	}

	if diff, err := runGit(ctx, dir, "diff", "HEAD"); err == nil && strings.TrimSpace(diff) != "" {
		return diff, nil
	}

	if rctx.BaseBranch != "" {
		diff, err := runGit(ctx, dir, "diff", fmt.Sprintf("origin/%s...HEAD", rctx.BaseBranch))
		if err == nil && strings.TrimSpace(diff) != "" {
			return diff, nil
		}
	}

	return "", nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

// CheckBlockedGit validates a tool or action string against the allowed git
// subcommand list. Token-based parsing prevents bypasses that a substring
// check would miss, such as "git status && git push", wrapper commands
// ("env git push", "sudo git push"), absolute paths ("/usr/bin/git push"),
// and nested interpreters (`sh -c 'git push'`).
//
// Returns a human-readable reason when blocked, or "" when allowed.
func CheckBlockedGit(action string) string {
	command, ok := extractBashCommand(action)
	if !ok {
		// Not a Bash() pattern; validate the raw string. Non-command
		// tools (Read, Edit, ...) contain no git token and pass.
		command = strings.TrimSpace(action)
	}
	if command == "" {
		return ""
	}
	return checkCommandForBlockedGit(command, 0)
}

// extractBashCommand pulls the shell command out of a Bash(command:*) tool
// pattern. Both Bash(cmd:*) and Bash(cmd) forms are handled.
func extractBashCommand(action string) (string, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(action), "Bash(")
	if !found {
		return "", false
	}
	inner, found := strings.CutSuffix(rest, ")")
	if !found {
		return "", false
	}
	return strings.TrimSuffix(inner, ":*"), true
}

// splitShellCommands splits on shell separators: &&, ||, ;, |, &, and
// newline. Two-character separators are handled before single-character
// ones.
func splitShellCommands(command string) []string {
	var results []string
	start := 0
	i := 0
	for i < len(command) {
		isDouble := i+1 < len(command) &&
			((command[i] == '&' && command[i+1] == '&') || (command[i] == '|' && command[i+1] == '|'))
		switch {
		case isDouble:
			results = append(results, command[start:i])
			i += 2
			start = i
		case command[i] == ';' || command[i] == '|' || command[i] == '&' || command[i] == '\n':
			results = append(results, command[start:i])
			i++
			start = i
		default:
			i++
		}
	}
	results = append(results, command[start:])
	return results
}

// isEnvAssignment reports whether a token is a VAR=value prefix.
func isEnvAssignment(token string) bool {
	eq := strings.IndexByte(token, '=')
	if eq <= 0 {
		return false
	}
	for _, r := range token[:eq] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

func basename(token string) string {
	if idx := strings.LastIndexByte(token, '/'); idx >= 0 {
		return token[idx+1:]
	}
	return token
}

// isGitBinary matches "git" under any path, e.g. "/usr/bin/git", "./git".
func isGitBinary(token string) bool {
	return basename(token) == "git"
}

func isShellInterpreter(token string) bool {
	name := basename(token)
	for _, s := range shellInterpreters {
		if name == s {
			return true
		}
	}
	return false
}

func isShellWrapper(token string) bool {
	name := basename(token)
	for _, w := range shellWrappers {
		if name == w {
			return true
		}
	}
	return false
}

// skipWrappersAndEnv advances past env var assignments and wrapper commands
// with their flags, returning the index of the first substantive token.
func skipWrappersAndEnv(tokens []string) int {
	i := 0
	for i < len(tokens) && isEnvAssignment(tokens[i]) {
		i++
	}
	for i < len(tokens) && isShellWrapper(tokens[i]) {
		i++
		// Wrapper flags may take an argument (nice -n 5); conservatively
		// skip one extra token unless it already looks like the target.
		for i < len(tokens) && strings.HasPrefix(tokens[i], "-") {
			i++
			if i < len(tokens) && !isGitBinary(tokens[i]) && !isShellInterpreter(tokens[i]) && !strings.HasPrefix(tokens[i], "-") {
				i++
			}
		}
		for i < len(tokens) && isEnvAssignment(tokens[i]) {
			i++
		}
	}
	return i
}

// findGitSubcommand locates the git binary in a token list and returns its
// subcommand token. found is false when the command is not git at all;
// a found git with no subcommand returns sub == "".
func findGitSubcommand(tokens []string) (sub string, found bool) {
	i := skipWrappersAndEnv(tokens)
	if i >= len(tokens) || !isGitBinary(tokens[i]) {
		return "", false
	}
	if i+1 < len(tokens) {
		return tokens[i+1], true
	}
	return "", true
}

// extractInterpreterCommand extracts the command string from a shell
// interpreter invocation with -c, e.g. `sh -c 'git push'` or
// `bash -lc "git push"`. Only the first argument after -c is the command
// string; later tokens are positional parameters.
func extractInterpreterCommand(command string) (string, bool) {
	tokens := strings.Fields(command)
	i := skipWrappersAndEnv(tokens)
	if i >= len(tokens) || !isShellInterpreter(tokens[i]) {
		return "", false
	}
	i++

	foundC := false
	for i < len(tokens) && strings.HasPrefix(tokens[i], "-") {
		flag := tokens[i]
		// -c standalone or combined short flags ending in c (-lc, -ic).
		if flag == "-c" || (!strings.HasPrefix(flag, "--") && strings.HasSuffix(flag, "c")) {
			foundC = true
			i++
			break
		}
		i++
	}
	if !foundC || i >= len(tokens) {
		return "", false
	}

	first := tokens[i]
	quote := first[0]
	if quote != '\'' && quote != '"' {
		return first, true
	}
	if len(first) > 1 && first[len(first)-1] == quote {
		return first[1 : len(first)-1], true
	}
	// Quote spans multiple whitespace-separated tokens.
	end := i + 1
	for end < len(tokens) && !strings.HasSuffix(tokens[end], string(quote)) {
		end++
	}
	joined := strings.Join(tokens[i:min(end+1, len(tokens))], " ")
	if end < len(tokens) {
		return joined[1 : len(joined)-1], true
	}
	return joined[1:], true
}

func checkCommandForBlockedGit(command string, depth int) string {
	if depth > maxShellNestingDepth {
		return "shell command nesting too deep"
	}

	for _, cmd := range splitShellCommands(command) {
		trimmed := strings.TrimSpace(cmd)
		if trimmed == "" {
			continue
		}
		tokens := strings.Fields(trimmed)
		if len(tokens) == 0 {
			continue
		}

		if sub, found := findGitSubcommand(tokens); found {
			if sub == "" {
				return "bare 'git' command without subcommand is not allowed"
			}
			// Flags before the subcommand (git -C /path push) can
			// obfuscate the actual operation.
			if strings.HasPrefix(sub, "-") {
				return fmt.Sprintf("git command with flags before subcommand is not allowed: %q", trimmed)
			}
			if !isAllowedGitSubcommand(sub) {
				return fmt.Sprintf("git subcommand %q is not in the allowed list %v", sub, allowedGitSubcommands)
			}
		}

		if inner, ok := extractInterpreterCommand(trimmed); ok {
			if reason := checkCommandForBlockedGit(inner, depth+1); reason != "" {
				return reason
			}
		}
	}
	return ""
}

func isAllowedGitSubcommand(sub string) bool {
	for _, allowed := range allowedGitSubcommands {
		if sub == allowed {
			return true
		}
	}
	return false
}
