// Package main provides the gx CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltask/graphx/internal/config"
	"github.com/voltask/graphx/internal/dataservice"
	"github.com/voltask/graphx/internal/graph"
	"github.com/voltask/graphx/internal/neo4jsource"
	"github.com/voltask/graphx/internal/session"
	"github.com/voltask/graphx/internal/storage"
	"github.com/voltask/graphx/internal/viz"
)

// Version is set at build time via ldflags
var Version = "dev"

// Global flags.
var (
	humanOutput bool
	verbose     bool
	sourceName  string
	offline     bool
)

// Data sources selectable with --source.
const (
	SourceHTTP  = "http"
	SourceNeo4j = "neo4j"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gx",
	Short: "Volunteer relationship graph explorer",
	Long: `gx explores the volunteer relationship graph: volunteers, skills,
tasks, groups, places and coordinators.

The graph is fetched from the data service (or directly from Neo4j),
merged incrementally as you expand neighborhoods, and cached in a local
SQLite database so it can be browsed offline.

All commands output JSON by default. Use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&sourceName, "source", SourceHTTP, "Data source: http or neo4j")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Serve the graph from the local cache only")
	rootCmd.Version = Version
}

// mustLoadConfig loads the global configuration, exits on error.
func mustLoadConfig() *config.GlobalConfig {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenDatabase opens the SQLite cache, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(cfg *config.GlobalConfig) *storage.DB {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// openSource returns the configured data service and a cleanup function.
func openSource(ctx context.Context, cfg *config.GlobalConfig, db *storage.DB) (session.DataService, func(), error) {
	if offline {
		return storage.NewOfflineSource(db, storage.DefaultSnapshot), func() {}, nil
	}

	switch sourceName {
	case SourceHTTP:
		client := dataservice.NewClient(
			dataservice.WithBaseURL(cfg.APIBaseURL),
			dataservice.WithToken(cfg.APIToken),
			dataservice.WithRateLimit(cfg.RateLimit),
			dataservice.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		)
		return client, func() {}, nil

	case SourceNeo4j:
		if cfg.Neo4j.URI == "" {
			return nil, nil, fmt.Errorf("%w: neo4j uri not configured (set %s)", errConfig, config.EnvNeo4jURI)
		}
		exec, err := neo4jsource.NewExecutor(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to neo4j: %w", err)
		}
		if err := exec.Verify(ctx); err != nil {
			_ = exec.Close(ctx)
			return nil, nil, &session.FetchError{Op: "connect", Err: err}
		}
		return neo4jsource.New(exec, slog.Default()), func() { _ = exec.Close(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown source %q (use http or neo4j)", errConfig, sourceName)
	}
}

var errConfig = errors.New("configuration error")

// app bundles what a command needs to talk to the session.
type app struct {
	cfg     *config.GlobalConfig
	db      *storage.DB
	mgr     *session.Manager
	cleanup func()
}

func (a *app) Close() {
	a.mgr.Close()
	a.cleanup()
	a.db.Close()
}

// mustOpenApp loads config, opens the cache and builds a session manager.
func mustOpenApp(ctx context.Context, opts ...session.Option) *app {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)

	ds, cleanup, err := openSource(ctx, cfg, db)
	if err != nil {
		db.Close()
		exitWithError(exitCodeFor(err), "%v", err)
	}

	base := []session.Option{
		session.WithLogger(slog.Default()),
		session.WithPreferences(db),
		session.WithStyle(styleFromConfig(cfg)),
	}
	if !offline {
		base = append(base, session.WithSnapshotCache(db))
	}

	return &app{
		cfg:     cfg,
		db:      db,
		mgr:     session.New(ds, append(base, opts...)...),
		cleanup: cleanup,
	}
}

// mustLoadGraph performs the initial full load, exits on error.
func (a *app) mustLoadGraph(ctx context.Context) graph.MergeStats {
	stats, err := a.mgr.LoadFullGraph(ctx)
	if err != nil {
		a.Close()
		exitWithError(exitCodeFor(err), "%v", err)
	}
	return stats
}

func styleFromConfig(cfg *config.GlobalConfig) viz.Style {
	return viz.Style{Scale: cfg.Style.Scale(), ColorOf: cfg.Style.ColorFor}
}

// exitCodeFor maps an error to a process exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, errConfig):
		return ExitConfigError
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, storage.ErrSnapshotNotFound):
		return ExitNotFound
	case session.IsFetchFailure(err):
		return ExitFetchError
	case session.IsRenderFailure(err):
		return ExitRenderError
	default:
		return ExitError
	}
}
