// prview is a terminal UI for reviewing pull requests: a cached diff viewer
// with syntax highlighting, inline comments, and an AI reviewer/reviewee
// rally.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagRepo   string
	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:   "prview [pr-number]",
	Short: "Terminal UI for reviewing pull requests",
	Long: `prview - review pull requests from the terminal.

Browse a PR's changed files with syntax-highlighted diffs, add inline
review comments, and run an AI Rally: two agent CLIs alternating as
reviewer and reviewee until the review passes.`,
	Example: `  # Review the current branch's PR
  prview

  # Review a specific PR
  prview 123

  # Review uncommitted local changes
  prview --local

  # Start an AI rally as soon as the PR loads
  prview 123 --rally`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", "", "Repository in owner/name form (auto-detected if not specified)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
