package main

import (
	"github.com/spf13/cobra"

	"github.com/rohankatakam/scholargraph/internal/config"
)

var graphLimit int

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the ECharts projection of a graph sample",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validate(config.ValidationContextCypher); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, llmSkip)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		limit := graphLimit
		if limit < 0 {
			limit = cfg.Graph.DefaultNodeLimit
		}
		return printJSON(cmd.OutOrStdout(), a.projector.ProjectGraph(ctx, limit))
	},
}

func init() {
	graphCmd.Flags().IntVar(&graphLimit, "limit", -1, "maximum number of nodes (default graph.default_node_limit)")
}
