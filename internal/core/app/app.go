// Package app wires the indexing pipeline: scan, parse, cook, resolve,
// emit, persist.
package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pyanchor/internal/core/config"
	"pyanchor/internal/core/errors"
	"pyanchor/internal/data/store"
	"pyanchor/internal/engine/parser"
	"pyanchor/internal/engine/resolver"
	"pyanchor/internal/engine/sema"
	"pyanchor/internal/output"
	"pyanchor/internal/shared/observability"
)

type App struct {
	Config   *config.Config
	Resolver *resolver.Resolver
	Store    *store.Store

	include []glob.Glob
	exclude []glob.Glob
}

func New(cfg *config.Config) (*App, error) {
	a := &App{
		Config:   cfg,
		Resolver: resolver.New(cfg.Corpus.Name, cfg.Corpus.Root),
	}

	for _, pattern := range cfg.Paths.Include {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "compiling include pattern "+pattern)
		}
		a.include = append(a.include, g)
	}
	for _, pattern := range cfg.Paths.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "compiling exclude pattern "+pattern)
		}
		a.exclude = append(a.exclude, g)
	}

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path, cfg.Store.BusyTimeout)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "opening anchor store")
		}
		a.Store = st
	}

	return a, nil
}

func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// FileResult is one analyzed file with its anchors in source order.
// Content is the raw source, carried through so the facts stream can
// embed it in the file's meta record.
type FileResult struct {
	Path     string
	Module   string
	Encoding string
	Content  []byte
	Anchors  []sema.Anchor
}

// AnalyzeFile runs the full pipeline for one file: parse the concrete
// tree, cook it, resolve FQNs under the file's module prefix, and
// collect anchors.
func (a *App) AnalyzeFile(ctx context.Context, path string) (*FileResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.AnalyzeFile",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeNotFound, "reading source"), errors.CtxPath, path)
	}
	file := parser.NewFile(path, content)

	module, err := a.Resolver.ModulePath(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tree, err := parser.Parse(file.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	observability.ParseDuration.Observe(time.Since(start).Seconds())

	start = time.Now()
	cooked, err := sema.Cook(file, tree, a.Config.Corpus.PythonVersion)
	if err != nil {
		return nil, err
	}
	observability.CookDuration.Observe(time.Since(start).Seconds())

	start = time.Now()
	resolved := sema.Resolve(cooked, module, a.Config.Corpus.PythonVersion)
	anchors := sema.CollectAnchors(resolved)
	observability.ResolveDuration.Observe(time.Since(start).Seconds())

	for _, anchor := range anchors {
		observability.AnchorsTotal.WithLabelValues(string(anchor.Kind)).Inc()
	}

	return &FileResult{
		Path:     path,
		Module:   module,
		Encoding: file.Encoding,
		Content:  file.Content,
		Anchors:  anchors,
	}, nil
}

// RunOnce indexes the whole corpus and streams facts to w. Per-file
// failures are recorded and skipped; only infrastructure errors abort
// the run.
func (a *App) RunOnce(ctx context.Context, w *output.Writer) (string, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.RunOnce")
	defer span.End()

	files, err := a.ScanFiles()
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	if a.Store != nil {
		runID, err = a.Store.BeginRun(a.Config.Corpus.Name, a.Config.Corpus.PythonVersion)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeInternal, "starting run")
		}
	}

	if err := w.WriteManifest(output.Manifest{
		RunID:         runID,
		Corpus:        a.Config.Corpus.Name,
		Root:          a.Config.Corpus.Root,
		PythonVersion: a.Config.Corpus.PythonVersion,
		GeneratedAt:   time.Now().UTC(),
	}); err != nil {
		return "", err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return runID, err
		}
		if err := a.processFile(ctx, w, runID, path); err != nil {
			return runID, err
		}
	}

	if err := w.WriteSummary(); err != nil {
		return "", err
	}
	if a.Store != nil {
		if err := a.Store.FinishRun(runID); err != nil {
			return runID, err
		}
	}

	slog.Info("run complete", "run_id", runID, "files", len(files))
	return runID, nil
}

// processFile analyzes one file and records the outcome everywhere it
// needs to land. Analysis failures degrade to a recorded failure.
func (a *App) processFile(ctx context.Context, w *output.Writer, runID, path string) error {
	res, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Warn("file analysis failed", "path", path, "error", err)
		observability.FilesTotal.WithLabelValues("failed").Inc()
		if errors.IsCode(err, errors.CodeDegenerate) {
			observability.DegenerateTotal.Inc()
		}
		w.RecordFailure()
		if a.Store != nil {
			if serr := a.Store.SaveFailure(runID, path, err); serr != nil {
				return serr
			}
		}
		return nil
	}

	if err := w.WriteFile(res.Path, res.Module, res.Encoding, res.Content, func(yield func(sema.Anchor) bool) {
		for _, anchor := range res.Anchors {
			if !yield(anchor) {
				return
			}
		}
	}); err != nil {
		return err
	}
	if a.Store != nil {
		if err := a.Store.SaveFile(runID, res.Path, res.Module, res.Encoding, res.Anchors); err != nil {
			return err
		}
	}
	observability.FilesTotal.WithLabelValues("ok").Inc()
	return nil
}
