package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/graph"
)

func newHubsCmd() *cobra.Command {
	var (
		metric string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "hubs",
		Short: "Rank nodes by in-degree, out-degree, or PageRank",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var m graph.Metric
			switch metric {
			case "in_degree":
				m = graph.MetricInDegree
			case "out_degree":
				m = graph.MetricOutDegree
			case "pagerank":
				m = graph.MetricPageRank
			default:
				return fmt.Errorf("metric must be in_degree, out_degree, or pagerank")
			}

			results, err := a.disp.Hubs(m, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}

	cmd.Flags().StringVar(&metric, "metric", "pagerank", "in_degree, out_degree, or pagerank")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of top-ranked nodes to return")

	return cmd
}
