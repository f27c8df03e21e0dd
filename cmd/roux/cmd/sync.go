package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/nodeid"
	"github.com/alexgetty/roux/internal/ui"
)

func newSyncCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the cache against the files on disk",
		Long: `Walk the vault, parse every supported file, resolve [[links]] to
node ids (minting ghosts for unresolved targets), and rebuild the graph.

Safe to run repeatedly: unchanged files are skipped, removed files are
deleted from the cache, and renamed files keep their node id, which is
carried in the file's frontmatter.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runSync(cmd *cobra.Command, noColor bool) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, vaultFlag)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor), ui.WithProjectDir(a.root))
	renderer := ui.NewRenderer(cfg)
	if err := renderer.Start(ctx); err != nil {
		return err
	}

	start := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "walking " + a.root})
	scanStart := time.Now()

	if err := a.docs.Sync(ctx); err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		_ = renderer.Stop()
		return err
	}
	scanDuration := time.Since(scanStart)

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageGraph, Message: "rebuilding graph"})
	graphStart := time.Now()
	if err := a.graph.Rebuild(ctx); err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		_ = renderer.Stop()
		return err
	}
	graphDuration := time.Since(graphStart)

	nodes, err := a.store.GetAllNodes(ctx)
	if err != nil {
		return err
	}
	files := 0
	ghosts := 0
	for _, n := range nodes {
		if nodeid.IsGhost(n.ID) {
			ghosts++
			continue
		}
		files++
	}

	renderer.Complete(ui.CompletionStats{
		Files:  files,
		Nodes:  len(nodes),
		Ghosts: ghosts,
		Duration: time.Since(start),
		Stages: ui.StageTimings{
			Scan:    scanDuration,
			Resolve: 0,
			Graph:   graphDuration,
		},
		Provider: ui.ProviderInfo{Model: a.vec.GetModel()},
	})

	return renderer.Stop()
}
