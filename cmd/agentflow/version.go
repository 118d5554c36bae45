package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agentflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agentflow version %s\n", strings.TrimSpace(agentflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
