// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

func entity(name string, et types.EntityType, aliases ...string) types.CanonicalEntity {
	if len(aliases) == 0 {
		aliases = []string{name}
	}
	return types.CanonicalEntity{Name: name, Type: et, Aliases: aliases, Articles: []string{"1"}}
}

func edge(source, target string, relation types.RelationKind) types.RelationshipEdge {
	return types.RelationshipEdge{
		Source: source, Target: target, Relation: relation,
		Polarity: types.PolarityPositive, Articles: []string{"1"}, Confidence: 0.6,
	}
}

func chainGraph() *types.KnowledgeGraph {
	// THBS2 -> TGFB1 -> pulmonary fibrosis, aspirin -| pulmonary fibrosis,
	// plus an isolated pair.
	return &types.KnowledgeGraph{
		Keyword: "THBS2",
		Entities: []types.CanonicalEntity{
			entity("THBS2", types.EntityGene, "THBS2", "Thrombospondin-2"),
			entity("TGFB1", types.EntityGene),
			entity("pulmonary fibrosis", types.EntityDisease),
			entity("aspirin", types.EntityChemical),
			entity("BRCA1", types.EntityGene),
			entity("breast cancer", types.EntityDisease),
		},
		Edges: []types.RelationshipEdge{
			edge("THBS2", "TGFB1", types.RelationUpregulates),
			edge("TGFB1", "pulmonary fibrosis", types.RelationCauses),
			edge("aspirin", "pulmonary fibrosis", types.RelationInhibits),
			edge("BRCA1", "breast cancer", types.RelationCorrelatesWith),
		},
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, chainGraph(), types.RenderConfig{})
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"vis-network.min.js",
		`"id":"THBS2"`,
		`"from":"THBS2"`,
		`"to":"TGFB1"`,
		"upregulates",
		"barnesHut",
		"2160px",  // default height
		"#222222", // default background
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWriteHTMLConflictEdgeDashed(t *testing.T) {
	g := &types.KnowledgeGraph{
		Keyword:  "kw",
		Entities: []types.CanonicalEntity{entity("A", types.EntityGene), entity("B", types.EntityGene)},
		Edges: []types.RelationshipEdge{{
			Source: "A", Target: "B", Relation: types.RelationCauses,
			Polarity: types.PolarityTied, Conflict: true,
			Articles: []string{"1", "2"}, Confidence: 0.84,
		}},
	}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, g, types.RenderConfig{}); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	if !strings.Contains(buf.String(), `"dashes":true`) {
		t.Error("conflict edge should render dashed")
	}
}

func TestWriteHTMLEmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, &types.KnowledgeGraph{Keyword: "kw"}, types.RenderConfig{})
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	if !strings.Contains(buf.String(), "vis.DataSet([])") {
		t.Error("empty graph should render empty datasets")
	}
}

func TestFilterDepth(t *testing.T) {
	tests := []struct {
		name  string
		focus string
		depth int
		want  []string
	}{
		{"depth 0 focus only", "THBS2", 0, []string{"THBS2"}},
		{"depth 1 direct neighbors", "THBS2", 1, []string{"TGFB1", "THBS2"}},
		{"depth 2", "THBS2", 2, []string{"TGFB1", "THBS2", "pulmonary fibrosis"}},
		{"depth 3 reaches aspirin", "THBS2", 3, []string{"TGFB1", "THBS2", "aspirin", "pulmonary fibrosis"}},
		{"alias match", "thrombospondin", 0, []string{"THBS2"}},
		{"no match", "GHOST", 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(chainGraph(), tt.focus, tt.depth, nil)
			if !reflect.DeepEqual(got.EntityNames(), tt.want) {
				t.Errorf("entities = %v, want %v", got.EntityNames(), tt.want)
			}
		})
	}
}

func TestFilterInducedEdges(t *testing.T) {
	got := Filter(chainGraph(), "THBS2", 2, nil)
	if len(got.Edges) != 2 {
		t.Fatalf("edges = %+v, want 2", got.Edges)
	}
	for _, e := range got.Edges {
		if got.Entity(e.Source) == nil || got.Entity(e.Target) == nil {
			t.Errorf("edge %s->%s references entity outside the subgraph", e.Source, e.Target)
		}
	}
}

func TestFilterExclude(t *testing.T) {
	// Excluding TGFB1 severs the path from THBS2 to the disease.
	got := Filter(chainGraph(), "THBS2", 3, []string{"tgfb"})
	if !reflect.DeepEqual(got.EntityNames(), []string{"THBS2"}) {
		t.Errorf("entities = %v, want just THBS2", got.EntityNames())
	}
	if len(got.Edges) != 0 {
		t.Errorf("edges = %+v, want none", got.Edges)
	}
}

func TestStats(t *testing.T) {
	s := Stats(chainGraph())

	if s.NodeCount != 6 || s.EdgeCount != 4 {
		t.Errorf("counts = %d nodes, %d edges", s.NodeCount, s.EdgeCount)
	}
	// 4 undirected pairs over 6 nodes.
	if want := 8.0 / 6.0; s.AverageDegree != want {
		t.Errorf("average degree = %f, want %f", s.AverageDegree, want)
	}
	if want := 4.0 / 15.0; s.Density != want {
		t.Errorf("density = %f, want %f", s.Density, want)
	}
	if s.ConnectedComponents != 2 {
		t.Errorf("components = %d, want 2", s.ConnectedComponents)
	}
	if len(s.TopByDegree) == 0 || s.TopByDegree[0].Name != "TGFB1" && s.TopByDegree[0].Name != "pulmonary fibrosis" {
		t.Errorf("top by degree = %+v", s.TopByDegree)
	}
}

func TestStatsParallelEdgesCountOnce(t *testing.T) {
	g := &types.KnowledgeGraph{
		Entities: []types.CanonicalEntity{entity("A", types.EntityGene), entity("B", types.EntityGene)},
		Edges: []types.RelationshipEdge{
			edge("A", "B", types.RelationCauses),
			edge("A", "B", types.RelationUpregulates),
			edge("B", "A", types.RelationInhibits),
		},
	}
	s := Stats(g)
	if s.EdgeCount != 3 {
		t.Errorf("edge count = %d, want 3 (raw)", s.EdgeCount)
	}
	if s.AverageDegree != 1.0 {
		t.Errorf("average degree = %f, want 1.0 (pair counted once)", s.AverageDegree)
	}
	if s.Density != 1.0 {
		t.Errorf("density = %f, want 1.0", s.Density)
	}
}

func TestStatsEmptyGraph(t *testing.T) {
	s := Stats(&types.KnowledgeGraph{})
	if s.NodeCount != 0 || s.ConnectedComponents != 0 {
		t.Errorf("stats = %+v", s)
	}
}
