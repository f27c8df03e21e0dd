package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/graph"
)

func newNeighborsCmd() *cobra.Command {
	var (
		direction string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "neighbors <id>",
		Short: "List a node's in/out/both-direction neighbors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var dir graph.Direction
			switch direction {
			case "in":
				dir = graph.DirectionIn
			case "out":
				dir = graph.DirectionOut
			case "both":
				dir = graph.DirectionBoth
			default:
				return fmt.Errorf("direction must be in, out, or both")
			}

			results, err := a.disp.GetNeighbors(ctx, args[0], dir, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "both", "in, out, or both")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum neighbors to return")

	return cmd
}
