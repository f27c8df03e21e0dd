package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/docstore"
	"github.com/alexgetty/roux/internal/node"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Read and mutate individual nodes",
	}
	cmd.AddCommand(newNodeGetCmd())
	cmd.AddCommand(newNodeCreateCmd())
	cmd.AddCommand(newNodeUpdateCmd())
	cmd.AddCommand(newNodeDeleteCmd())
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newNodeGetCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a node, optionally with its immediate neighbors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.disp.GetNode(ctx, args[0], depth)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "0 for the bare node, 1 to include neighbor context")
	return cmd
}

func newNodeCreateCmd() *cobra.Command {
	var (
		title   string
		content string
		tags    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new node",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n := &node.Node{Title: title, Content: []byte(content), Tags: tags}
			resp, err := a.disp.CreateNode(ctx, n)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Node title (required)")
	cmd.Flags().StringVar(&content, "content", "", "Node body content")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to attach (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newNodeUpdateCmd() *cobra.Command {
	var (
		title   string
		content string
		tags    []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch a node's title, content, or tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			patch := docstore.NodePatch{}
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("content") {
				patch.Content = []byte(content)
				patch.HasContent = true
			}
			if cmd.Flags().Changed("tag") {
				patch.Tags = tags
				patch.HasTags = true
			}

			resp, err := a.disp.UpdateNode(ctx, args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New body content")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Replacement tag set (repeatable)")
	return cmd
}

func newNodeDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.disp.DeleteNode(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	return cmd
}
