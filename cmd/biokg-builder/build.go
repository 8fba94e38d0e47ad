// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/biokg-builder/internal/extract"
	"github.com/pdiddy/biokg-builder/internal/pipeline"
	"github.com/pdiddy/biokg-builder/internal/report"
	"github.com/pdiddy/biokg-builder/internal/secrets"
	"github.com/pdiddy/biokg-builder/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "biokg-builder/0.1"
	defaultModel     = "claude-sonnet-4-5"
)

var buildCmd = &cobra.Command{
	Use:   "build <keyword>",
	Short: "Run the full pipeline for a keyword",
	Long: `Build searches PubMed for the keyword, extracts relationships from the
retrieved abstracts, reconciles them into a knowledge graph, and writes all
artifacts (articles, graph YAML, SQLite database, network pages, report)
into a per-keyword directory under the output directory.

Interrupting the run aborts it unless --best-effort is set, in which case
the relationships collected so far are reconciled into a partial graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().Int("max-results", 0, "maximum articles to fetch (default 200)")
	buildCmd.Flags().String("email", "", "contact email for NCBI E-utilities (or .secrets/pubmed-email)")
	buildCmd.Flags().String("ncbi-api-key", "", "NCBI API key for higher rate limits (or .secrets/ncbi-api-key)")
	buildCmd.Flags().String("api-key", "", "Claude API key (or .secrets/anthropic-api-key)")
	buildCmd.Flags().String("model", "", "Claude model for extraction and summary")
	buildCmd.Flags().Int("workers", 0, "concurrent extraction calls (default 4)")
	buildCmd.Flags().String("synonyms", "", "YAML file mapping surface forms to canonical entity names")
	buildCmd.Flags().Float64("base-confidence", 0, "per-observation edge confidence (default 0.6)")
	buildCmd.Flags().Int("depth", 1, "hop depth for the filtered network around the keyword")
	buildCmd.Flags().StringSlice("exclude", nil, "entity-name substrings to drop from the filtered network")
	buildCmd.Flags().Bool("best-effort", false, "build a partial graph when interrupted")
	buildCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	buildCmd.Flags().Bool("no-summary", false, "skip the AI-generated report summary")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	keyword := args[0]

	cfg, err := pipelineConfig(cmd)
	if err != nil {
		return err
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	apiKey = secretDefault(secrets.KeyAnthropicKey, apiKey)
	if apiKey == "" {
		return fmt.Errorf("Claude API key required: pass --api-key or create .secrets/%s", secrets.KeyAnthropicKey)
	}

	client := &http.Client{Timeout: cfg.Search.Timeout}
	deps := pipeline.Deps{
		Backend: &extract.ClaudeBackend{
			APIKey: apiKey,
			Model:  cfg.Extraction.Model,
			Client: client,
		},
	}
	if noSummary, _ := cmd.Flags().GetBool("no-summary"); !noSummary {
		deps.Summarizer = &report.ClaudeSummarizer{
			APIKey:      apiKey,
			Model:       cfg.Report.Model,
			Client:      client,
			MaxEntities: cfg.Report.MaxEntities,
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Build(ctx, keyword, deps, cfg, os.Stdout)
	if err != nil {
		return err
	}

	if res.Partial {
		fmt.Printf("Partial graph built from an interrupted run: %d entities, %d edges\n",
			len(res.Graph.Entities), len(res.Graph.Edges))
	}
	if res.Summary.HasFailures() {
		fmt.Fprintf(os.Stderr, "warning: %d article(s) failed extraction\n", res.Summary.Failed)
	}
	fmt.Printf("Done: %s\n", res.Dir)
	return nil
}

// pipelineConfig assembles the run configuration from flags, the viper config
// file, and loaded secrets, in that precedence order.
func pipelineConfig(cmd *cobra.Command) (types.PipelineConfig, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	email, _ := cmd.Flags().GetString("email")
	email = secretDefault(secrets.KeyPubMedEmail, email)
	if email == "" {
		email = viper.GetString("search.email")
	}
	if email == "" {
		return types.PipelineConfig{}, fmt.Errorf("contact email required by NCBI: pass --email or create .secrets/%s", secrets.KeyPubMedEmail)
	}

	ncbiKey, _ := cmd.Flags().GetString("ncbi-api-key")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults == 0 {
		maxResults = viper.GetInt("search.max_results")
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("extraction.model")
	}
	if model == "" {
		model = defaultModel
	}
	workers, _ := cmd.Flags().GetInt("workers")

	synonyms, _ := cmd.Flags().GetString("synonyms")
	if synonyms == "" {
		synonyms = viper.GetString("reconcile.synonyms_file")
	}
	baseConfidence, _ := cmd.Flags().GetFloat64("base-confidence")

	depth, _ := cmd.Flags().GetInt("depth")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	bestEffort, _ := cmd.Flags().GetBool("best-effort")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	return types.PipelineConfig{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   timeout,
				UserAgent: defaultUserAgent,
			},
			Email:      email,
			APIKey:     secretDefault(secrets.KeyNCBIAPIKey, ncbiKey),
			MaxResults: maxResults,
		},
		Extraction: types.ExtractionConfig{
			AIConfig: types.AIConfig{Model: model},
			Workers:  workers,
		},
		Reconcile: types.ReconcileConfig{
			SynonymsFile:   synonyms,
			BaseConfidence: baseConfidence,
		},
		Render: types.RenderConfig{
			Height:    viper.GetString("render.height"),
			Width:     viper.GetString("render.width"),
			BgColor:   viper.GetString("render.bg_color"),
			FontColor: viper.GetString("render.font_color"),
			Depth:     depth,
			Exclude:   exclude,
		},
		Report: types.ReportConfig{
			AIConfig:    types.AIConfig{Model: model},
			MaxEntities: viper.GetInt("report.max_entities"),
		},
		OutputDir:  outputDir,
		BestEffort: bestEffort,
	}, nil
}
