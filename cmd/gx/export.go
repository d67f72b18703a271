package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltask/graphx/internal/graph"
	"github.com/voltask/graphx/internal/session"
	"github.com/voltask/graphx/internal/viz"
)

// Export formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatHTML  = "html"
	FormatPNG   = "png"
)

const pngHint = `Run 'gx export --format html -o graph.html', open the page and use its "Export PNG" button.`

var (
	exportFormat string
	exportOutput string
	exportTitle  string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", FormatJSON, "Output format: json, jsonl, or html (png is browser-only)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "Page title for html output")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the graph as a document or an HTML page",
	Long: `Export the loaded graph.

Formats:
  json   full graph document {"nodes": [...], "edges": [...]}
  jsonl  one node or edge record per line
  html   self-contained Cytoscape page using the saved filter and layout
  png    not produced by the CLI: PNG images are exported from the html
         page with its "Export PNG" button. Requesting png exits with code 4.

Examples:
  gx export > graph.json
  gx export --format html -o graph.html
  gx export --offline --format jsonl`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case FormatJSON, FormatJSONL, FormatHTML, FormatPNG:
	default:
		exitWithError(ExitError, "unknown format %q (use json, jsonl, html, or png)", exportFormat)
	}

	out, closeOut, err := openOutput(exportOutput)
	if err != nil {
		exitWithError(ExitError, "opening output: %v", err)
	}

	ctx := cmd.Context()
	opts := viz.DefaultOptions()
	if exportTitle != "" {
		opts.Title = exportTitle
	}
	renderer := viz.NewHTMLRenderer(out, opts)

	a := mustOpenApp(ctx, session.WithRenderer(renderer))
	defer a.Close()
	a.mustLoadGraph(ctx)

	switch exportFormat {
	case FormatJSON:
		err = a.mgr.ExportSnapshot(out)
	case FormatJSONL:
		err = graph.WriteJSONL(out, a.mgr.Snapshot())
	case FormatHTML:
		err = a.mgr.Render(ctx)
	case FormatPNG:
		err = a.mgr.ExportRenderedImage(ctx, out)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		a.Close()
		if exportFormat == FormatPNG {
			exitWithError(exitCodeFor(err), "exporting png: %v\n\n%s", err, pngHint)
		}
		exitWithError(exitCodeFor(err), "exporting %s: %v", exportFormat, err)
	}

	if exportOutput != "" {
		if humanOutput {
			fmt.Fprintf(os.Stderr, "%s written to %s\n", exportFormat, exportOutput)
		} else {
			outputJSON(StatusResponse{Status: "written", Path: exportOutput})
		}
	}
	return nil
}

// openOutput returns stdout for an empty path.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
