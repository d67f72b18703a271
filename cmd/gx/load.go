package main

import (
	"github.com/spf13/cobra"

	"github.com/voltask/graphx/internal/graph"
)

func init() {
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Fetch the full graph and refresh the local cache",
	Long: `Fetch the full graph and community assignments from the data source
and store them in the local cache for offline use.

Examples:
  gx load
  gx load --source neo4j --human`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := mustOpenApp(ctx)
	defer a.Close()

	stats := a.mustLoadGraph(ctx)
	return printMerge("Loaded graph", stats, a)
}

func printMerge(action string, stats graph.MergeStats, a *app) error {
	snap := a.mgr.Snapshot()
	if humanOutput {
		printStats(action, stats, snap)
		return nil
	}
	return outputJSON(MergeResult{Stats: stats, Nodes: len(snap.Nodes), Edges: len(snap.Edges)})
}
