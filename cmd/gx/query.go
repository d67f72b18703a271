package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/voltask/graphx/internal/graph"
)

var (
	visibleFilter string
	searchFilter  string
	topLimit      int
)

func init() {
	visibleCmd.Flags().StringVarP(&visibleFilter, "filter", "f", "", "Node type to show (default: saved filter)")
	searchCmd.Flags().StringVarP(&searchFilter, "filter", "f", "", "Restrict matches to a node type")
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", DefaultTopLimit, "Number of nodes to list")
	rootCmd.AddCommand(visibleCmd, searchCmd, topCmd, typesCmd)
}

var visibleCmd = &cobra.Command{
	Use:   "visible",
	Short: "Show the visible subgraph with sizes and colours",
	Long: `Show the nodes and edges visible under a type filter, with the
visual size and colour each node would be rendered with.

Edges are kept only when both endpoints are visible.

Examples:
  gx visible --filter volunteer
  gx visible --offline --human`,
	Args: cobra.NoArgs,
	RunE: runVisible,
}

func runVisible(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := mustOpenApp(ctx)
	defer a.Close()
	a.mustLoadGraph(ctx)

	filter := a.mgr.View().Filter
	if cmd.Flags().Changed("filter") {
		filter = visibleFilter
	}
	els := a.mgr.ElementsFor(filter, "")

	if !humanOutput {
		return outputJSON(els)
	}

	heading.Printf("Visible graph (%s): %d nodes, %d edges\n\n", filterLabel(filter), len(els.Nodes), len(els.Edges))
	rows := make([][]string, 0, len(els.Nodes))
	for _, n := range els.Nodes {
		rows = append(rows, []string{n.ID, truncate(n.Label, LabelMaxLen), n.Type, fmt.Sprintf("%.1f", n.VisualSize), n.Color})
	}
	printTable([]string{"ID", "LABEL", "TYPE", "SIZE", "COLOR"}, rows)
	return nil
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Find nodes whose label contains a term",
	Long: `Case-insensitive substring search over node labels.

Examples:
  gx search ana
  gx search "first aid" --filter skill`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := mustOpenApp(ctx)
	defer a.Close()
	a.mustLoadGraph(ctx)

	filter := a.mgr.View().Filter
	if cmd.Flags().Changed("filter") {
		filter = searchFilter
	}
	visible := a.mgr.VisibleSubgraph(filter)
	matches := graph.SearchMatches(visible.Nodes, args[0])
	if matches == nil {
		matches = []string{}
	}

	if !humanOutput {
		return outputJSON(map[string]any{"query": args[0], "matches": matches})
	}

	heading.Printf("%d match(es) for %q\n", len(matches), args[0])
	for _, id := range matches {
		n, _ := a.mgr.Node(id)
		outputHuman("  %s  %s %s\n", id, n.Label, subtle.Sprintf("(%s)", n.Type))
	}
	return nil
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most connected nodes",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

func runTop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := mustOpenApp(ctx)
	defer a.Close()
	a.mustLoadGraph(ctx)

	top := a.mgr.TopDegreeNodes(topLimit)
	if !humanOutput {
		return outputJSON(top)
	}

	rows := make([][]string, 0, len(top))
	for i, nd := range top {
		rows = append(rows, []string{strconv.Itoa(i + 1), nd.ID, truncate(nd.Label, LabelMaxLen), strconv.Itoa(nd.Degree)})
	}
	printTable([]string{"#", "ID", "LABEL", "DEGREE"}, rows)
	return nil
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List node types present in the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()
		a.mustLoadGraph(ctx)

		types := a.mgr.Types()
		if !humanOutput {
			return outputJSON(types)
		}
		for _, t := range types {
			outputHuman("  %-14s %s\n", t, subtle.Sprint(a.cfg.Style.ColorFor(t)))
		}
		return nil
	},
}

func filterLabel(f string) string {
	if f == "" || f == graph.FilterAll {
		return "all"
	}
	return f
}
