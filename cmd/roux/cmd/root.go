// Package cmd provides the roux CLI commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/logging"
	"github.com/alexgetty/roux/pkg/version"
)

// vaultFlag is the shared --vault flag every subcommand reads via
// resolveVaultRoot; empty means "discover from the current directory".
var vaultFlag string

// debugMode enables file-based debug logging under the vault's
// .roux/logs/ directory for the duration of one command.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the roux CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roux",
		Short: "Local knowledge-graph index for markdown vaults",
		Long: `roux indexes a directory tree of markdown files into a local graph:
stable node ids, wiki-style [[links]] resolved across renames, and an
embedded SQLite cache that survives restarts.

Run 'roux sync' in a vault directory to build the index, 'roux watch' to
keep it current, or 'roux serve' to do both and stay running.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: startLogging,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			stopLogging()
			return nil
		},
	}

	cmd.SetVersionTemplate("roux version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&vaultFlag, "vault", "C", "", "Vault root directory (default: discovered from cwd)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to <vault>/.roux/logs/")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newNodeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newNeighborsCmd())
	cmd.AddCommand(newPathCmd())
	cmd.AddCommand(newHubsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging wires slog.Default to a rotating file under the resolved
// vault's log directory when --debug is set. Commands that can't yet
// resolve a vault (e.g. version) simply run without it.
func startLogging(cmd *cobra.Command, args []string) error {
	if !debugMode {
		return nil
	}

	root, err := resolveVaultRoot(vaultFlag)
	if err != nil {
		return nil
	}
	cfg, err := loadConfigAt(root)
	if err != nil {
		return nil
	}
	if err := logging.EnsureLogDir(cfg.LogDir()); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:     "debug",
		FilePath:  logging.LogPath(cfg.LogDir()),
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("vault", root))
	return nil
}

func stopLogging() {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
