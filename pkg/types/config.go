// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "biokg-builder/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the PubMed literature search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Email is the contact address sent with every E-utilities request,
	// required by NCBI usage policy.
	Email string `json:"email" yaml:"email"`

	// APIKey is an optional NCBI API key for higher rate limits.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxResults is the maximum number of articles to fetch (default 200).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// FetchBatchSize is the number of PMIDs per efetch request (default 50).
	FetchBatchSize int `json:"fetch_batch_size" yaml:"fetch_batch_size"`

	// RequestDelay is the delay between consecutive E-utilities calls
	// (default 350ms without an API key).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ExtractionConfig holds settings for the relationship extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// Workers bounds the number of concurrent extraction calls (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// ReconcileConfig holds settings for entity and relationship reconciliation.
type ReconcileConfig struct {
	// SynonymsFile is an optional YAML file mapping surface forms to
	// canonical entity names.
	SynonymsFile string `json:"synonyms_file,omitempty" yaml:"synonyms_file,omitempty"`

	// BaseConfidence is the per-observation confidence used in edge
	// aggregation: confidence = 1 - (1-base)^n (default 0.6).
	BaseConfidence float64 `json:"base_confidence" yaml:"base_confidence"`

	// MaxConfidence caps aggregate edge confidence (default 0.99).
	MaxConfidence float64 `json:"max_confidence" yaml:"max_confidence"`
}

// RenderConfig holds settings for the interactive network rendering.
type RenderConfig struct {
	// Height and Width are CSS sizes for the network canvas.
	Height string `json:"height" yaml:"height"`
	Width  string `json:"width" yaml:"width"`

	// BgColor and FontColor style the canvas and node labels.
	BgColor   string `json:"bg_color" yaml:"bg_color"`
	FontColor string `json:"font_color" yaml:"font_color"`

	// Depth bounds the filtered network around the keyword entity (default 1).
	Depth int `json:"depth" yaml:"depth"`

	// Exclude lists entity-name substrings to drop from the filtered network.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// ReportConfig holds settings for report generation.
type ReportConfig struct {
	AIConfig `yaml:",inline"`

	// MaxEntities bounds the number of entities sent to the summary prompt
	// (default 200).
	MaxEntities int `json:"max_entities" yaml:"max_entities"`
}

// GraphStoreConfig holds settings for the graph database.
type GraphStoreConfig struct {
	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations for one build invocation.
// A config object is scoped to a single run; there is no process-wide state.
type PipelineConfig struct {
	Search     SearchConfig     `json:"search" yaml:"search"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Reconcile  ReconcileConfig  `json:"reconcile" yaml:"reconcile"`
	Render     RenderConfig     `json:"render" yaml:"render"`
	Report     ReportConfig     `json:"report" yaml:"report"`
	GraphStore GraphStoreConfig `json:"graph_store" yaml:"graph_store"`

	// OutputDir is the base directory for run artifacts; each keyword gets
	// its own subdirectory (default "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// BestEffort controls cancellation behavior: when true, tuples collected
	// before cancellation are reconciled into a best-effort graph; when
	// false the run is all-or-nothing and aborts with the context error.
	BestEffort bool `json:"best_effort" yaml:"best_effort"`
}
