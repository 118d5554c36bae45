package main

import (
	"context"
	"os"

	"github.com/aretw0/agentflow/internal/cli"
	"github.com/aretw0/agentflow/internal/presentation/tui"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/aretw0/agentflow/pkg/workflows/codereview"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [graph-id]",
	Short: "Run a stored graph once and print the result",
	Long: `Runs a graph from the configured store to completion and prints a report of
the steps and the final state. Without a graph ID the built-in code-review
workflow is used.

Examples:
  agentflow run --context '{"code": "def f():\n    return 1\n"}'
  agentflow run my-graph --input state.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := cli.RunOptions{GraphID: codereview.DefaultGraphID}
		if len(args) > 0 {
			opts.GraphID = args[0]
		}
		opts.Context, _ = cmd.Flags().GetString("context")
		opts.InputFile, _ = cmd.Flags().GetString("input")
		opts.JSON, _ = cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		engine, stores, err := cli.NewEngine(ctx, cfg, logger, observability.AuditHooks(logger))
		if err != nil {
			return err
		}
		defer stores.Close()

		_, err = cli.Execute(ctx, engine, opts, os.Stdout, tui.RendererFor(os.Stdout))
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("context", "", "Initial state as a JSON object")
	runCmd.Flags().StringP("input", "i", "", "Initial state from a YAML or JSON file")
	runCmd.Flags().Bool("json", false, "Print the run as JSON instead of a report")
}
