package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltask/graphx/internal/graph"
)

var expandDepth int

func init() {
	expandCmd.Flags().IntVarP(&expandDepth, "depth", "d", 1, "Neighborhood depth (>= 1)")
	rootCmd.AddCommand(expandCmd)
}

var expandCmd = &cobra.Command{
	Use:   "expand <node-id>",
	Short: "Merge a node's neighborhood into the graph",
	Long: `Load the graph, fetch the neighborhood of a node and merge it in.
The merged graph replaces the local cache.

Examples:
  gx expand v42
  gx expand skill-7 --depth 2 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runExpand,
}

func runExpand(cmd *cobra.Command, args []string) error {
	if expandDepth < 1 {
		exitWithError(ExitError, "%v: %d", graph.ErrInvalidDepth, expandDepth)
	}

	ctx := cmd.Context()
	a := mustOpenApp(ctx)
	defer a.Close()

	a.mustLoadGraph(ctx)
	stats, err := a.mgr.ExpandNeighborhood(ctx, args[0], expandDepth)
	if err != nil {
		a.Close()
		exitWithError(exitCodeFor(err), "%v", err)
	}
	return printMerge(fmt.Sprintf("Expanded %s (depth %d)", args[0], expandDepth), stats, a)
}
