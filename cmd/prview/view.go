package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/config"
	"github.com/dharper/prview/internal/github"
	"github.com/dharper/prview/internal/loader"
	"github.com/dharper/prview/internal/logging"
	"github.com/dharper/prview/internal/ui"
)

var (
	flagPR    int
	flagLocal bool
	flagRally bool
)

func init() {
	rootCmd.Flags().IntVarP(&flagPR, "pr", "p", 0, "PR number (auto-detected if not specified)")
	rootCmd.Flags().BoolVar(&flagLocal, "local", false, "Review uncommitted working tree changes instead of a PR")
	rootCmd.Flags().BoolVar(&flagRally, "rally", false, "Start an AI rally once the PR is loaded")
}

func runView(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid PR number: %s", args[0])
		}
		flagPR = n
	}

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

	var key cache.PRKey
	var workingDir string
	if flagLocal {
		if workingDir, err = os.Getwd(); err != nil {
			return err
		}
	} else {
		key, err = resolveKey(cmd.Context(), client)
		if err != nil {
			return err
		}
	}

	disk, err := diskStore(log)
	if err != nil {
		return err
	}

	model := ui.New(ui.Options{
		Config:     cfg,
		Logger:     log,
		Loader:     loader.New(client, log),
		Submitter:  client,
		Rally:      newStarter(cfg, client, key, log),
		Disk:       disk,
		Key:        key,
		LocalMode:  flagLocal,
		WorkingDir: workingDir,
		StartRally: flagRally,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// resolveKey fills in the repo slug and PR number from the checked-out
// branch when flags leave them unset.
func resolveKey(ctx context.Context, client *github.Client) (cache.PRKey, error) {
	repo := flagRepo
	if repo == "" {
		slug, err := client.RepoSlug(ctx)
		if err != nil {
			return cache.PRKey{}, fmt.Errorf("could not detect repository: %w\nUse --repo to specify it", err)
		}
		repo = slug
	}

	number := flagPR
	if number == 0 {
		detected, err := client.CurrentPR(ctx)
		if err != nil {
			return cache.PRKey{}, fmt.Errorf("could not detect PR number: %w\nUse --pr to specify it", err)
		}
		number = detected
	}
	return cache.PRKey{Repo: repo, Number: number}, nil
}

// diskStore opens the snapshot store; failure degrades to no snapshots.
func diskStore(log zerolog.Logger) (*cache.DiskStore, error) {
	dir, err := cache.DefaultDiskDir()
	if err != nil {
		log.Warn().Err(err).Msg("snapshot store unavailable")
		return nil, nil
	}
	store, err := cache.NewDiskStore(dir)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot store unavailable")
		return nil, nil
	}
	return store, nil
}
