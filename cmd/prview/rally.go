package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dharper/prview/internal/agent"
	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/config"
	"github.com/dharper/prview/internal/github"
	"github.com/dharper/prview/internal/logging"
	"github.com/dharper/prview/internal/rally"
	"github.com/dharper/prview/internal/ui"
)

var (
	rallyPRNumber int
	rallyLocal    bool
	rallyVerbose  bool
)

var rallyCmd = &cobra.Command{
	Use:   "rally [pr-number]",
	Short: "Run an AI rally without the TUI",
	Long: `Run the reviewer/reviewee rally headless.

Progress streams to stderr; clarification and permission gates are asked
interactively. The terminal result is printed to stdout as JSON, so the
command can be scripted.`,
	Example: `  # Rally the current branch's PR
  prview rally

  # Rally a specific PR
  prview rally 123

  # Rally uncommitted local changes
  prview rally --local`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRally,
}

func init() {
	rallyCmd.Flags().IntVarP(&rallyPRNumber, "pr", "p", 0, "PR number (auto-detected if not specified)")
	rallyCmd.Flags().BoolVar(&rallyLocal, "local", false, "Rally uncommitted working tree changes")
	rallyCmd.Flags().BoolVarP(&rallyVerbose, "verbose", "v", false, "Stream agent thinking and tool use")
	rootCmd.AddCommand(rallyCmd)
}

// starter wires the orchestrator for the TUI's RallyStarter interface.
type starter struct {
	cfg    *config.Config
	client *github.Client
	key    cache.PRKey
	log    zerolog.Logger
}

func newStarter(cfg *config.Config, client *github.Client, key cache.PRKey, log zerolog.Logger) *starter {
	return &starter{cfg: cfg, client: client, key: key, log: log}
}

func (s *starter) Start(ctx context.Context, rctx *rally.Context) (<-chan rally.Event, chan<- rally.Command, error) {
	orch, err := buildOrchestrator(s.cfg, s.client, s.key, s.log)
	if err != nil {
		return nil, nil, err
	}
	orch.SetContext(rctx)
	go orch.Run(ctx)
	return orch.Events(), orch.Commands(), nil
}

// buildOrchestrator assembles adapters, prompt loader and session store from
// the configuration.
func buildOrchestrator(cfg *config.Config, client *github.Client, key cache.PRKey, log zerolog.Logger) (*rally.Orchestrator, error) {
	reviewer, ok := agent.New(cfg.AI.Reviewer)
	if !ok {
		return nil, fmt.Errorf("unknown reviewer agent: %s", cfg.AI.Reviewer)
	}
	reviewee, ok := agent.New(cfg.AI.Reviewee)
	if !ok {
		return nil, fmt.Errorf("unknown reviewee agent: %s", cfg.AI.Reviewee)
	}
	if !reviewer.Available() {
		return nil, fmt.Errorf("%s CLI not found in PATH", reviewer.Name())
	}
	if !reviewee.Available() {
		return nil, fmt.Errorf("%s CLI not found in PATH", reviewee.Name())
	}

	storeDir, err := rally.DefaultStoreDir()
	if err != nil {
		return nil, err
	}
	store, err := rally.NewStore(storeDir)
	if err != nil {
		return nil, err
	}

	cwd, _ := os.Getwd()
	prompts := rally.NewPromptLoader(cfg.AI.PromptDir, cwd)

	rcfg := rally.Config{
		MaxIterations: cfg.AI.MaxIterations,
		Timeout:       cfg.Timeout(),
		AutoPost:      cfg.AI.AutoPost,
		AllowPush:     cfg.AI.AllowPush,
		ReviewerTools: cfg.AI.ReviewerAdditionalTools,
		RevieweeTools: cfg.AI.RevieweeAdditionalTools,
	}
	return rally.New(key, rcfg, reviewer, reviewee, client, store, prompts, log), nil
}

func runRally(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid PR number: %s", args[0])
		}
		rallyPRNumber = n
	}
	flagPR = rallyPRNumber

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.Setup()
	if err != nil {
		return err
	}
	defer closeLog()

	client := github.NewClient()

	rctx, key, err := buildHeadlessContext(cmd.Context(), client)
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(cfg, client, key, log)
	if err != nil {
		return err
	}
	orch.SetContext(rctx)

	done := make(chan rally.Result, 1)
	go func() { done <- orch.Run(cmd.Context()) }()

	if err := pumpRallyEvents(orch.Events(), orch.Commands()); err != nil {
		return err
	}

	result := <-done
	summary, err := json.Marshal(struct {
		State     rally.State `json:"state"`
		Reason    string      `json:"reason"`
		Iteration int         `json:"iteration"`
		Summary   string      `json:"summary,omitempty"`
	}{result.State, result.Reason, result.Iteration, result.Summary})
	if err != nil {
		return err
	}
	fmt.Println(string(summary))

	if result.State != rally.StateCompleted {
		return fmt.Errorf("rally ended %s (%s)", result.State, result.Reason)
	}
	return nil
}

// buildHeadlessContext fetches everything the orchestrator needs up front.
func buildHeadlessContext(ctx context.Context, client *github.Client) (*rally.Context, cache.PRKey, error) {
	if rallyLocal {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, cache.PRKey{}, err
		}
		files, err := ui.LoadLocalFiles(ctx, cwd)
		if err != nil {
			return nil, cache.PRKey{}, err
		}
		if len(files) == 0 {
			return nil, cache.PRKey{}, fmt.Errorf("no local changes to review")
		}

		patches := make([]rally.FilePatch, 0, len(files))
		var diff strings.Builder
		for _, f := range files {
			patches = append(patches, rally.FilePatch{Path: f.Path, Patch: f.Patch})
			fmt.Fprintf(&diff, "--- a/%s\n+++ b/%s\n%s\n", f.Path, f.Path, f.Patch)
		}
		return &rally.Context{
			PRTitle:     "Local changes",
			Diff:        diff.String(),
			WorkingDir:  cwd,
			LocalMode:   true,
			FilePatches: patches,
		}, cache.PRKey{Repo: "local", Number: 0}, nil
	}

	key, err := resolveKey(ctx, client)
	if err != nil {
		return nil, cache.PRKey{}, err
	}
	pr, err := client.GetPullRequest(ctx, key.Repo, key.Number)
	if err != nil {
		return nil, cache.PRKey{}, err
	}
	files, err := client.ListChangedFiles(ctx, key.Repo, key.Number)
	if err != nil {
		return nil, cache.PRKey{}, err
	}
	diff, err := client.PRDiff(ctx, key.Repo, key.Number)
	if err != nil {
		return nil, cache.PRKey{}, err
	}

	patches := make([]rally.FilePatch, 0, len(files))
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		patches = append(patches, rally.FilePatch{Path: f.Path, Patch: f.Patch})
	}
	cwd, _ := os.Getwd()
	return &rally.Context{
		Repo:        key.Repo,
		PRNumber:    key.Number,
		PRTitle:     pr.Title,
		PRBody:      pr.Body,
		Diff:        diff,
		HeadSHA:     pr.HeadSHA,
		BaseBranch:  pr.BaseBranch,
		WorkingDir:  cwd,
		FilePatches: patches,
	}, key, nil
}

// pumpRallyEvents streams progress to stderr and answers gates with huh
// forms until the event channel closes.
func pumpRallyEvents(events <-chan rally.Event, commands chan<- rally.Command) error {
	for ev := range events {
		switch ev.Kind {
		case rally.EventStateChanged:
			fmt.Fprintf(os.Stderr, "state: %s\n", ev.State)

		case rally.EventIterationStarted:
			fmt.Fprintf(os.Stderr, "--- iteration %d ---\n", ev.Iteration)

		case rally.EventReviewCompleted:
			if ev.Review != nil {
				fmt.Fprintf(os.Stderr, "review: %s (%d comments)\n", ev.Review.Action, len(ev.Review.Comments))
			}

		case rally.EventFixCompleted:
			if ev.Fix != nil {
				fmt.Fprintf(os.Stderr, "fix: %s (%d files)\n", ev.Fix.Status, len(ev.Fix.FilesModified))
			}

		case rally.EventClarificationNeeded:
			answer, skip, err := askClarification(ev.Question)
			if err != nil {
				return err
			}
			if skip {
				commands <- rally.Command{Kind: rally.CommandSkipClarification}
			} else {
				commands <- rally.Command{Kind: rally.CommandClarificationAnswer, Answer: answer}
			}

		case rally.EventPermissionNeeded:
			approved, err := askConfirm(fmt.Sprintf("Allow %q?", ev.Action), ev.Reason)
			if err != nil {
				return err
			}
			commands <- rally.Command{Kind: rally.CommandPermissionResponse, Approved: approved}

		case rally.EventPostConfirmNeeded:
			approved, err := askConfirm("Post to the PR?", ev.Action)
			if err != nil {
				return err
			}
			commands <- rally.Command{Kind: rally.CommandPostConfirmResponse, Approved: approved}

		case rally.EventAgentThinking, rally.EventAgentToolUse:
			if rallyVerbose {
				fmt.Fprintf(os.Stderr, "  %s\n", strings.TrimSpace(ev.Message))
			}

		case rally.EventAgentText, rally.EventLog:
			fmt.Fprintf(os.Stderr, "  %s\n", strings.TrimSpace(ev.Message))

		case rally.EventError:
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
		}
	}
	return nil
}

func askClarification(question string) (answer string, skip bool, err error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("The reviewee needs clarification").
				Description(question).
				Value(&answer),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return "", true, nil
		}
		return "", false, err
	}
	if strings.TrimSpace(answer) == "" {
		return "", true, nil
	}
	return answer, false, nil
}

func askConfirm(title, description string) (bool, error) {
	var approved bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Allow").
				Negative("Deny").
				Value(&approved),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return false, nil
		}
		return false, err
	}
	return approved, nil
}
