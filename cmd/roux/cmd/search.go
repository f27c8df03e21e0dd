package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		k        int
		vectorIn string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Vector nearest-neighbor search over node embeddings",
		Long: `Run a nearest-neighbor search against the configured vector provider.
--vector takes a comma-separated list of floats: embedding text into a
query vector is the caller's responsibility, not this engine's.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			vec, err := parseVector(vectorIn)
			if err != nil {
				return err
			}

			results, err := a.disp.Search(ctx, vec, k)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}

	cmd.Flags().IntVar(&k, "k", 10, "Number of nearest matches to return")
	cmd.Flags().StringVar(&vectorIn, "vector", "", "Comma-separated query vector components (required)")
	_ = cmd.MarkFlagRequired("vector")

	return cmd
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
