package main

import (
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mission-router",
		Short:         "Offline ground-mission route planner",
		Long:          "mission-router plans, scores, and exports ground-mission routes entirely offline from local terrain fixtures.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(planCmd())
	return cmd
}
