// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns knowledge graphs into interactive HTML network views
// and computes structural statistics over them.
package render

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

//go:embed network.html.tmpl
var networkTmplSrc string

var networkTmpl = template.Must(template.New("network").Parse(networkTmplSrc))

// Node colors by entity type. Diseases stand out in red, interventions
// (chemicals) in green.
var typeColors = map[types.EntityType]string{
	types.EntityGene:     "#4f9dde",
	types.EntityProtein:  "#7e6bd9",
	types.EntityDisease:  "#d9534f",
	types.EntityChemical: "#5cb85c",
	types.EntityProcess:  "#f0ad4e",
	types.EntityOther:    "#999999",
}

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Color string `json:"color"`
}

type visEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Label  string  `json:"label"`
	Title  string  `json:"title"`
	Width  float64 `json:"width"`
	Dashes bool    `json:"dashes,omitempty"`
	Arrows string  `json:"arrows"`
}

type templateData struct {
	Keyword   string
	Height    string
	Width     string
	BgColor   string
	FontColor string
	NodesJSON template.JS
	EdgesJSON template.JS
}

// WriteHTML renders the graph as a self-contained HTML page using the
// vis-network library. Node color encodes entity type, edge width encodes
// confidence, and dashed edges mark polarity conflicts.
func WriteHTML(w io.Writer, graph *types.KnowledgeGraph, cfg types.RenderConfig) error {
	nodes := make([]visNode, 0, len(graph.Entities))
	for _, e := range graph.Entities {
		color, ok := typeColors[e.Type]
		if !ok {
			color = typeColors[types.EntityOther]
		}
		title := fmt.Sprintf("%s (%s)\narticles: %d", e.Name, e.Type, len(e.Articles))
		nodes = append(nodes, visNode{ID: e.Name, Label: e.Name, Title: title, Color: color})
	}

	edges := make([]visEdge, 0, len(graph.Edges))
	for _, e := range graph.Edges {
		title := fmt.Sprintf("%s (%s, confidence %.2f, %d articles)",
			e.Relation, e.Polarity, e.Confidence, len(e.Articles))
		if e.Conflict {
			title += "\npolarity conflict across articles"
		}
		edges = append(edges, visEdge{
			From:   e.Source,
			To:     e.Target,
			Label:  string(e.Relation),
			Title:  title,
			Width:  1.0 + 4.0*e.Confidence,
			Dashes: e.Conflict,
			Arrows: "to",
		})
	}

	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encoding nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return fmt.Errorf("encoding edges: %w", err)
	}

	data := templateData{
		Keyword:   graph.Keyword,
		Height:    defaultStr(cfg.Height, "2160px"),
		Width:     defaultStr(cfg.Width, "100%"),
		BgColor:   defaultStr(cfg.BgColor, "#222222"),
		FontColor: defaultStr(cfg.FontColor, "white"),
		NodesJSON: template.JS(nodesJSON),
		EdgesJSON: template.JS(edgesJSON),
	}

	if err := networkTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering network page: %w", err)
	}
	return nil
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
