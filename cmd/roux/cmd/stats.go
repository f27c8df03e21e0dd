package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/nodeid"
	"github.com/alexgetty/roux/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vault and cache statistics",
		Long:  `Display node/ghost/tag counts, cache size, and vector provider status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput, noColor)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput, noColor bool) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, vaultFlag)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	info, err := buildStatusInfo(ctx, a)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func buildStatusInfo(ctx context.Context, a *app) (ui.StatusInfo, error) {
	nodes, err := a.store.GetAllNodes(ctx)
	if err != nil {
		return ui.StatusInfo{}, err
	}

	tags := make(map[string]bool)
	ghosts := 0
	for _, n := range nodes {
		if nodeid.IsGhost(n.ID) {
			ghosts++
			continue
		}
		for _, t := range n.Tags {
			tags[t] = true
		}
	}

	var cacheSize int64
	if fi, err := statFile(a.cfg.CacheDBPath()); err == nil {
		cacheSize = fi
	}

	providerStatus := "n/a"
	if a.vec.GetModel() != "" {
		providerStatus = "ready"
	}

	return ui.StatusInfo{
		VaultName:      a.root,
		TotalNodes:     len(nodes) - ghosts,
		TotalGhost:     ghosts,
		TotalTags:      len(tags),
		CacheSizeBytes: cacheSize,
		ProviderModel:  a.vec.GetModel(),
		ProviderStatus: providerStatus,
		WatcherStatus:  "n/a",
	}, nil
}
