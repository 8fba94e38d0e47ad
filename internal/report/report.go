// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/pdiddy/biokg-builder/internal/render"
	"github.com/pdiddy/biokg-builder/pkg/types"
)

// Results is the machine-readable outcome of one keyword run.
type Results struct {
	Keyword       string              `json:"keyword"`
	GeneratedAt   time.Time           `json:"generated_at"`
	TotalArticles int                 `json:"total_articles"`
	TotalEntities int                 `json:"total_entities"`
	TotalEdges    int                 `json:"total_edges"`
	ConflictEdges int                 `json:"conflict_edges"`
	NetworkStats  render.NetworkStats `json:"network_stats"`
	AISummary     string              `json:"ai_summary"`
}

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`# {{.Keyword}} Knowledge Graph Analysis Report

## Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}

## Overview
- Articles retrieved: {{.TotalArticles}}
- Entities: {{.TotalEntities}}
- Relationships: {{.TotalEdges}}
- Polarity conflicts: {{.ConflictEdges}}

## Network Analysis
- Nodes: {{.NetworkStats.NodeCount}}
- Edges: {{.NetworkStats.EdgeCount}}
- Density: {{printf "%.4f" .NetworkStats.Density}}
- Connected components: {{.NetworkStats.ConnectedComponents}}

## Top Entities
{{range $i, $n := .NetworkStats.TopByDegree}}{{inc $i}}. {{$n.Name}} (degree: {{$n.Degree}})
{{else}}None
{{end}}
## AI Summary
{{.AISummary}}
`))

// BuildResults assembles the results record for a run, generating the AI
// summary along the way. Summary failure degrades to a placeholder and is
// logged to w, never returned as an error.
func BuildResults(ctx context.Context, graph *types.KnowledgeGraph, articleCount int, summarizer Summarizer, w io.Writer) Results {
	if w == nil {
		w = io.Discard
	}
	stats := render.Stats(graph)

	conflicts := 0
	for _, e := range graph.Edges {
		if e.Conflict {
			conflicts++
		}
	}

	var topNames []string
	for _, n := range stats.TopByDegree {
		topNames = append(topNames, n.Name)
	}
	summary := summarizeOrPlaceholder(ctx, summarizer, graph.Keyword,
		EntityNamesForSummary(graph, topNames), w)

	return Results{
		Keyword:       graph.Keyword,
		GeneratedAt:   time.Now().UTC(),
		TotalArticles: articleCount,
		TotalEntities: len(graph.Entities),
		TotalEdges:    len(graph.Edges),
		ConflictEdges: conflicts,
		NetworkStats:  stats,
		AISummary:     summary,
	}
}

// WriteReport renders the markdown analysis report.
func WriteReport(w io.Writer, results Results) error {
	if err := reportTmpl.Execute(w, results); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

// WriteResultsJSON writes the results record as indented JSON.
func WriteResultsJSON(w io.Writer, results Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}
