// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates a full knowledge-graph run for one keyword:
// literature search, relationship extraction, reconciliation, persistence,
// rendering and reporting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biokg-builder/internal/extract"
	"github.com/pdiddy/biokg-builder/internal/graphstore"
	"github.com/pdiddy/biokg-builder/internal/pubmed"
	"github.com/pdiddy/biokg-builder/internal/reconcile"
	"github.com/pdiddy/biokg-builder/internal/render"
	"github.com/pdiddy/biokg-builder/internal/report"
	"github.com/pdiddy/biokg-builder/pkg/types"
)

// ErrNoLiterature is returned when the search finds zero articles for the
// keyword. Distinct from an empty-but-successful graph, where articles
// existed but yielded no relationships.
var ErrNoLiterature = errors.New("no literature found for keyword")

// Searcher is the literature search stage.
type Searcher interface {
	Search(ctx context.Context, keyword string, w io.Writer) ([]types.ArticleRecord, error)
}

// Deps are the injectable stage implementations of a run.
type Deps struct {
	Searcher   Searcher
	Backend    extract.AIBackend
	Summarizer report.Summarizer
}

// RunResult describes a completed run and where its artifacts landed.
type RunResult struct {
	Keyword  string
	Dir      string
	Articles int
	Summary  extract.BatchSummary
	Graph    *types.KnowledgeGraph
	Results  report.Results

	// Partial is set when the run was cancelled and the graph was built
	// best-effort from the tuples collected so far.
	Partial bool
}

// Artifact filenames inside a keyword's output directory.
const (
	ArticlesFile        = "articles.yaml"
	GraphFile           = "graph.yaml"
	DatabaseFile        = "graph.db"
	NetworkFile         = "network.html"
	FilteredNetworkFile = "network_filtered.html"
	ReportFile          = "report.md"
	ResultsFile         = "results.json"
)

// Build runs the full pipeline for one keyword and writes all artifacts to
// <cfg.OutputDir>/<keyword>/. Per-article extraction failures are logged and
// skipped; the run fails only when search fails, every article is unusable,
// or an artifact cannot be written.
func Build(ctx context.Context, keyword string, deps Deps, cfg types.PipelineConfig, w io.Writer) (*RunResult, error) {
	if w == nil {
		w = io.Discard
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("keyword must not be empty")
	}
	if deps.Searcher == nil {
		deps.Searcher = pubmed.NewClient(cfg.Search)
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("extraction backend must be provided")
	}

	fmt.Fprintf(w, "searching literature for %q\n", keyword)
	articles, err := deps.Searcher.Search(ctx, keyword, w)
	if err != nil {
		return nil, fmt.Errorf("searching literature: %w", err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoLiterature, keyword)
	}
	fmt.Fprintf(w, "found %d articles\n", len(articles))

	fmt.Fprintf(w, "extracting relationships with %d workers\n", workerCount(cfg.Extraction))
	tuples, summary, err := extract.ExtractAll(ctx, deps.Backend, articles, cfg.Extraction, w)
	partial := false
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if !cfg.BestEffort {
				return nil, fmt.Errorf("extraction interrupted: %w", err)
			}
			fmt.Fprintf(w, "extraction interrupted, building best-effort graph from %d tuples\n", len(tuples))
			partial = true
		} else {
			return nil, fmt.Errorf("extracting relationships: %w", err)
		}
	}
	fmt.Fprintf(w, "extraction: %d ok, %d empty, %d skipped, %d failed; %d tuples\n",
		summary.Extracted, summary.Empty, summary.Skipped, summary.Failed, len(tuples))

	syn, err := reconcile.LoadSynonyms(cfg.Reconcile.SynonymsFile)
	if err != nil {
		return nil, fmt.Errorf("loading synonyms: %w", err)
	}
	graph, err := reconcile.Reconcile(keyword, tuples, syn, cfg.Reconcile, w)
	if err != nil {
		return nil, fmt.Errorf("reconciling graph: %w", err)
	}
	fmt.Fprintf(w, "graph: %d entities, %d edges\n", len(graph.Entities), len(graph.Edges))

	dir := OutputDirFor(cfg.OutputDir, keyword)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Best-effort runs skip the summary call: the backend that was just
	// cancelled would be asked again.
	summarizer := deps.Summarizer
	if partial {
		summarizer = nil
	}
	results := report.BuildResults(context.WithoutCancel(ctx), graph, len(articles), summarizer, w)

	if err := writeArtifacts(ctx, dir, keyword, articles, graph, results, cfg, w); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "artifacts written to %s\n", dir)

	return &RunResult{
		Keyword:  keyword,
		Dir:      dir,
		Articles: len(articles),
		Summary:  summary,
		Graph:    graph,
		Results:  results,
		Partial:  partial,
	}, nil
}

func writeArtifacts(ctx context.Context, dir, keyword string, articles []types.ArticleRecord, graph *types.KnowledgeGraph, results report.Results, cfg types.PipelineConfig, w io.Writer) error {
	if err := writeYAMLFile(filepath.Join(dir, ArticlesFile), articles); err != nil {
		return fmt.Errorf("writing articles: %w", err)
	}
	if err := writeYAMLFile(filepath.Join(dir, GraphFile), graph); err != nil {
		return fmt.Errorf("writing graph: %w", err)
	}

	store, err := graphstore.Open(filepath.Join(dir, DatabaseFile), cfg.GraphStore)
	if err != nil {
		return fmt.Errorf("opening graph database: %w", err)
	}
	if err := store.Save(context.WithoutCancel(ctx), graph, articles); err != nil {
		store.Close()
		return fmt.Errorf("saving graph database: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("closing graph database: %w", err)
	}

	if err := writeFileWith(filepath.Join(dir, NetworkFile), func(f io.Writer) error {
		return render.WriteHTML(f, graph, cfg.Render)
	}); err != nil {
		return fmt.Errorf("writing network page: %w", err)
	}

	depth := cfg.Render.Depth
	if depth <= 0 {
		depth = 1
	}
	filtered := render.Filter(graph, keyword, depth, cfg.Render.Exclude)
	if len(filtered.Entities) == 0 {
		fmt.Fprintf(w, "no entities matched %q, skipping filtered network\n", keyword)
	} else if err := writeFileWith(filepath.Join(dir, FilteredNetworkFile), func(f io.Writer) error {
		return render.WriteHTML(f, filtered, cfg.Render)
	}); err != nil {
		return fmt.Errorf("writing filtered network page: %w", err)
	}

	if err := writeFileWith(filepath.Join(dir, ReportFile), func(f io.Writer) error {
		return report.WriteReport(f, results)
	}); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := writeFileWith(filepath.Join(dir, ResultsFile), func(f io.Writer) error {
		return report.WriteResultsJSON(f, results)
	}); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

func writeYAMLFile(path string, v any) error {
	return writeFileWith(path, func(f io.Writer) error {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	})
}

func writeFileWith(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// OutputDirFor returns the artifact directory for a keyword under the given
// base directory, matching what Build creates.
func OutputDirFor(outputDir, keyword string) string {
	return filepath.Join(defaultOutputDir(outputDir), sanitizeKeyword(strings.TrimSpace(keyword)))
}

// sanitizeKeyword maps a keyword to a directory name, replacing path
// separators and whitespace.
func sanitizeKeyword(keyword string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '\t':
			return '_'
		}
		return r
	}, keyword)
}

func defaultOutputDir(dir string) string {
	if dir == "" {
		return "output"
	}
	return dir
}

func workerCount(cfg types.ExtractionConfig) int {
	if cfg.Workers <= 0 {
		return 4
	}
	return cfg.Workers
}
