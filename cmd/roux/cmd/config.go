package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexgetty/roux/internal/config"
	"github.com/alexgetty/roux/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the vault configuration file",
		Long: `Manage .roux.yaml, the per-vault configuration file.

Precedence (lowest to highest):
  1. Hardcoded defaults
  2. .roux.yaml (or .roux.yml) in the vault root
  3. ROUX_* environment variables`,
		Example: `  # Create .roux.yaml with defaults
  roux config init

  # Show the effective configuration
  roux config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write .roux.yaml with default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .roux.yaml")
	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveVaultRoot(vaultFlag)
	if err != nil {
		return err
	}
	path := filepath.Join(root, ".roux.yaml")

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("", "Location: %s", path)
		out.Status("", "Use --force to overwrite (a backup is kept)")
		return nil
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := config.BackupConfigFile(path); err != nil {
			return fmt.Errorf("backup existing config: %w", err)
		}
	}

	cfg := config.NewConfig()
	cfg.Vault.Root = root
	if err := cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("", "Location: %s", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	root, err := resolveVaultRoot(vaultFlag)
	if err != nil {
		return err
	}
	cfg, err := loadConfigAt(root)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the vault's config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveVaultRoot(vaultFlag)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(root, ".roux.yaml"))
			return err
		},
	}
}
