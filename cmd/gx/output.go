package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/voltask/graphx/internal/graph"
)

// Constants for output formatting.
const (
	DefaultTopLimit = 10 // Default limit for the top command
	LabelMaxLen     = 40 // Label truncation in tables
)

// Colours for human output.
var (
	heading = color.New(color.FgHiGreen, color.Bold)
	subtle  = color.New(color.FgHiBlack)
	good    = color.New(color.FgGreen)
	bad     = color.New(color.FgRed)
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "%s %s\n", bad.Sprint("error:"), msg)
	} else {
		outputJSON(ErrorResponse{Error: msg, Code: code})
	}
	os.Exit(code)
}

// printTable prints an aligned table with a dimmed header.
func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		subtle.Println("  (none)")
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var head, sep strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&head, "  %-*s", widths[i], h)
		sep.WriteString("  " + strings.Repeat("─", widths[i]))
	}
	subtle.Println(head.String())
	subtle.Println(sep.String())

	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&line, "  %-*s", widths[i], cell)
			}
		}
		fmt.Println(line.String())
	}
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func printStats(action string, stats graph.MergeStats, total graph.Snapshot) {
	heading.Printf("%s\n", action)
	outputHuman("  nodes: %s added, %d replaced (%d total)\n",
		good.Sprintf("%d", stats.NodesAdded), stats.NodesReplaced, len(total.Nodes))
	outputHuman("  edges: %s added, %d skipped (%d total)\n",
		good.Sprintf("%d", stats.EdgesAdded), stats.EdgesSkipped, len(total.Edges))
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// MergeResult is the response for load and expand.
type MergeResult struct {
	Stats graph.MergeStats `json:"stats"`
	Nodes int              `json:"nodes"`
	Edges int              `json:"edges"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// PreferenceResponse is the response for prefs get and set.
type PreferenceResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Set   bool   `json:"set"`
}
