package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and apply changes incrementally",
		Long: `Run an initial sync, then watch the vault for filesystem changes and
apply each debounced batch incrementally: no full re-walk per edit.

Runs until interrupted (Ctrl+C).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, vaultFlag)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w := a.newWatcher(ctx)

	if err := a.docs.Sync(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	if err := a.graph.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild graph: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", a.root)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	<-ctx.Done()
	return w.Stop()
}
