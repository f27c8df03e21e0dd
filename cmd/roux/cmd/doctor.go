package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// checkStatus is the pass/warn/fail verdict of one doctor check.
type checkStatus string

const (
	statusPass checkStatus = "pass"
	statusWarn checkStatus = "warn"
	statusFail checkStatus = "fail"
)

type checkResult struct {
	Name    string      `json:"name"`
	Status  checkStatus `json:"status"`
	Message string      `json:"message"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose vault, config, and cache health",
		Long: `Run a set of sanity checks against the vault: the vault root and
config load, whether the vault root is writable, whether the cache opens,
and whether the configured vector provider (if any) reports a model. The
provider is not contacted over the network.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	results := []checkResult{}

	root, err := resolveVaultRoot(vaultFlag)
	if err != nil {
		results = append(results, checkResult{Name: "vault_root", Status: statusFail, Message: err.Error()})
		return report(cmd, jsonOutput, results)
	}
	results = append(results, checkResult{Name: "vault_root", Status: statusPass, Message: root})

	cfg, err := loadConfigAt(root)
	if err != nil {
		results = append(results, checkResult{Name: "config", Status: statusFail, Message: err.Error()})
		return report(cmd, jsonOutput, results)
	}
	results = append(results, checkResult{Name: "config", Status: statusPass, Message: "loaded"})

	if err := checkWritable(root); err != nil {
		results = append(results, checkResult{Name: "vault_writable", Status: statusWarn, Message: err.Error()})
	} else {
		results = append(results, checkResult{Name: "vault_writable", Status: statusPass, Message: "ok"})
	}

	a, err := openApp(ctx, root)
	if err != nil {
		results = append(results, checkResult{Name: "cache", Status: statusFail, Message: err.Error()})
		return report(cmd, jsonOutput, results)
	}
	defer func() { _ = a.Close() }()
	results = append(results, checkResult{Name: "cache", Status: statusPass, Message: cfg.CacheDBPath()})

	if cfg.Vector.Backend == "http" {
		if a.vec.GetModel() == "" {
			results = append(results, checkResult{Name: "vector_provider", Status: statusWarn, Message: "configured but reports no model"})
		} else {
			results = append(results, checkResult{Name: "vector_provider", Status: statusPass, Message: "model: " + a.vec.GetModel()})
		}
	} else {
		results = append(results, checkResult{Name: "vector_provider", Status: statusPass, Message: "none configured"})
	}

	return report(cmd, jsonOutput, results)
}

func checkWritable(dir string) error {
	probe := dir + "/.roux-doctor-probe"
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("vault root is not writable: %w", err)
	}
	_ = f.Close()
	_ = os.Remove(probe)
	return nil
}

func report(cmd *cobra.Command, jsonOutput bool, results []checkResult) error {
	failed := false
	for _, r := range results {
		if r.Status == statusFail {
			failed = true
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		}
	}

	if failed {
		return fmt.Errorf("doctor found critical issues")
	}
	return nil
}
