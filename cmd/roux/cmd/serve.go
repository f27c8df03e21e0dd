package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run sync and watch together as a long-lived process",
		Long: `serve runs an initial sync, then keeps the watcher and dispatcher
alive for as long as the process runs, applying each incremental batch as
it arrives. Use --debug to capture a log of what it does.

Intended to run under a process supervisor; stops on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, vaultFlag)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w := a.newWatcher(ctx)

	slog.Info("initial sync starting", slog.String("vault", a.root))
	if err := a.docs.Sync(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	if err := a.graph.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild graph: %w", err)
	}
	slog.Info("initial sync complete")

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	slog.Info("serving", slog.String("vault", a.root))

	<-ctx.Done()
	slog.Info("shutting down")
	return w.Stop()
}
