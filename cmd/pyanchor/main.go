// # cmd/pyanchor/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"pyanchor/internal/core/app"
	"pyanchor/internal/core/config"
	"pyanchor/internal/data/query"
	"pyanchor/internal/output"
	"pyanchor/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./pyanchor.toml", "Path to config file")
	once       = flag.Bool("once", false, "Index the corpus once and exit")
	watch      = flag.Bool("watch", false, "Keep running and re-index changed files")
	factsPath  = flag.String("facts", "", "Facts output file (overrides config; - for stdout)")
	queryStr   = flag.String("query", "", "Query stored anchors of the latest run and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("pyanchor v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./pyanchor.toml" {
			cfg, err = config.Load("./pyanchor.example.toml")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	// A positional argument overrides the configured corpus root.
	if flag.NArg() > 0 {
		root, err := filepath.Abs(flag.Arg(0))
		if err != nil {
			slog.Error("failed to resolve corpus root", "error", err)
			os.Exit(1)
		}
		cfg.Corpus.Root = root
	}
	if *factsPath != "" {
		cfg.Output.Facts = *factsPath
	}
	if *watch {
		cfg.Watch.Enabled = true
	}
	if *once {
		cfg.Watch.Enabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			slog.Error("failed to set up tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	var metricsServer *observability.Server
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewServer(cfg.Metrics.Addr)
		metricsServer.Start()
		defer func() { _ = metricsServer.Stop(context.Background()) }()
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	if *queryStr != "" {
		if err := runQuery(a, *queryStr); err != nil {
			slog.Error("query failed", "error", err)
			os.Exit(1)
		}
		return
	}

	sink, closeSink, err := openFactsSink(cfg.Output.Facts)
	if err != nil {
		slog.Error("failed to open facts output", "error", err)
		os.Exit(1)
	}
	defer closeSink()

	w := output.NewWriter(sink)

	runID, err := a.RunOnce(ctx, w)
	if err != nil {
		slog.Error("indexing run failed", "error", err)
		os.Exit(1)
	}

	if !cfg.Watch.Enabled {
		return
	}

	if err := a.Watch(ctx, w, runID); err != nil && ctx.Err() == nil {
		slog.Error("watch mode failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutting down")
}

// runQuery evaluates an anchor query against the latest stored run and
// prints matching rows as JSON lines.
func runQuery(a *app.App, raw string) error {
	if a.Store == nil {
		return fmt.Errorf("query mode needs the anchor store enabled in the config")
	}
	q, err := query.Parse(raw)
	if err != nil {
		return err
	}
	runID, err := a.Store.LatestRun()
	if err != nil {
		return err
	}
	if runID == "" {
		return fmt.Errorf("the store has no runs yet; index the corpus first")
	}
	rows, err := a.Store.SearchAnchors(runID, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	slog.Debug("query complete", "run_id", runID, "rows", len(rows))
	return nil
}

// openFactsSink returns the destination for fact records. An empty or
// "-" path means stdout.
func openFactsSink(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
