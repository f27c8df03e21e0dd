package cmd

import (
	"github.com/spf13/cobra"
)

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path <source> <target>",
		Short: "Find the shortest link path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.disp.Path(args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	return cmd
}
