package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/voltask/graphx/internal/server"
	"github.com/voltask/graphx/internal/session"
	"github.com/voltask/graphx/internal/viz"
)

const shutdownTimeout = 5 * time.Second

var (
	serveAddr  string
	serveTitle string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8088", "Listen address")
	serveCmd.Flags().StringVar(&serveTitle, "title", "", "Explorer page title")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive explorer",
	Long: `Load the graph and serve the interactive explorer with a JSON API.

Double-tap a node to expand its neighborhood; the toolbar changes the type
filter, layout and search term, and those choices are saved as preferences.
Prometheus metrics are exposed on /metrics.

Examples:
  gx serve
  gx serve --addr :9000 --source neo4j
  gx serve --offline`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := mustOpenApp(ctx, session.WithMetrics(session.NewMetrics(reg)))
	defer a.Close()
	a.mustLoadGraph(ctx)

	opts := viz.DefaultOptions()
	if serveTitle != "" {
		opts.Title = serveTitle
	}
	logger := slog.Default()
	handlers := server.NewHandlers(a.mgr, opts, logger)
	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           server.NewRouter(handlers, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	if humanOutput {
		heading.Printf("Explorer running at http://%s\n", serveAddr)
	} else {
		outputJSON(StatusResponse{Status: "serving", Path: "http://" + serveAddr})
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Close()
			exitWithError(ExitError, "serving: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down", "err", err)
		}
	}
	return nil
}
