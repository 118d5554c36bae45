package main

import (
	"context"
	"fmt"

	"github.com/aretw0/agentflow/internal/cli"
	"github.com/aretw0/agentflow/internal/presentation/graph"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/workflows/codereview"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [graph-id]",
	Short: "Export the graph visualization",
	Long: `Loads a graph from the configured store and outputs a Mermaid diagram (graph TD).
With --run, the path taken by that run is highlighted and its dynamic jumps are drawn.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		graphID := codereview.DefaultGraphID
		if len(args) > 0 {
			graphID = args[0]
		}
		runID, _ := cmd.Flags().GetString("run")

		ctx := context.Background()
		engine, stores, err := cli.NewEngine(ctx, cfg, logger, domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		defer stores.Close()

		spec, err := engine.Graph(ctx, graphID)
		if err != nil {
			return fmt.Errorf("error loading graph %q: %w", graphID, err)
		}

		var overlay *graph.GraphOverlay
		if runID != "" {
			run, err := engine.GetRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("error loading run %q: %w", runID, err)
			}
			overlay = graph.OverlayFromRun(run, spec)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(spec, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Highlight the path taken by this run")
}
