package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/agentflow/internal/cli"
	"github.com/aretw0/agentflow/internal/validator"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph-file>",
	Short: "Check a graph definition for consistency",
	Long: `Resolves a YAML or JSON graph definition against the registered nodes, then
crawls the static edges from the start node and reports nodes only reachable
through _next_node jumps. With --save the graph is stored for later runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		spec, err := validator.LoadSpec(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		engine, stores, err := cli.NewEngine(ctx, cfg, logger, domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		defer stores.Close()

		report, err := validator.ValidateGraph(spec, engine.Registry().Resolver())
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Graph is valid (%d nodes, entry %q)\n", len(spec.Nodes), spec.Entry)
		fmt.Fprintf(out, "  static path: %s\n", strings.Join(report.Reachable, " -> "))
		if len(report.Unreachable) > 0 {
			fmt.Fprintf(out, "  jump-only:   %s\n", strings.Join(report.Unreachable, ", "))
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			id, err := engine.CreateGraph(ctx, spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved as %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("save", false, "Store the graph after validation")
}
