// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "graph.db"), types.GraphStoreConfig{MaxResults: 10})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testGraph() *types.KnowledgeGraph {
	return &types.KnowledgeGraph{
		Keyword: "THBS2",
		BuiltAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Entities: []types.CanonicalEntity{
			{Name: "TGFB1", Type: types.EntityGene, Aliases: []string{"TGF-beta 1", "TGFB1"}, Articles: []string{"200"}},
			{Name: "THBS2", Type: types.EntityGene, Aliases: []string{"THBS2", "Thrombospondin-2"}, Articles: []string{"100", "200"}},
			{Name: "pulmonary fibrosis", Type: types.EntityDisease, Aliases: []string{"pulmonary fibrosis"}, Articles: []string{"200"}},
		},
		Edges: []types.RelationshipEdge{
			{
				Source: "TGFB1", Target: "pulmonary fibrosis", Relation: types.RelationCauses,
				Polarity: types.PolarityPositive, Articles: []string{"200"}, Confidence: 0.6,
			},
			{
				Source: "THBS2", Target: "TGFB1", Relation: types.RelationUpregulates,
				Polarity: types.PolarityPositive, Conflict: true,
				Articles: []string{"100", "200"}, Confidence: 0.84,
				Evidence: map[string]string{"100": "THBS2 enhanced TGFB1 expression"},
			},
		},
	}
}

func testArticles() []types.ArticleRecord {
	return []types.ArticleRecord{
		{PMID: "100", Title: "THBS2 in fibrosis", Journal: "J Test", Authors: []string{"Smith J"}, Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{PMID: "200", Title: "TGFB1 signalling"},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testGraph(), testArticles()))

	got, err := s.LoadGraph(ctx)
	require.NoError(t, err)

	assert.Equal(t, "THBS2", got.Keyword)
	assert.True(t, got.BuiltAt.Equal(testGraph().BuiltAt))
	assert.Equal(t, testGraph().Entities, got.Entities)
	assert.Equal(t, testGraph().Edges, got.Edges)

	articles, err := s.Articles(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "THBS2 in fibrosis", articles[0].Title)
	assert.Equal(t, []string{"Smith J"}, articles[0].Authors)
	assert.True(t, articles[0].Date.Equal(testArticles()[0].Date))
}

func TestSaveReplacesPriorRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testGraph(), testArticles()))

	second := &types.KnowledgeGraph{
		Keyword: "aspirin",
		BuiltAt: time.Now().UTC(),
		Entities: []types.CanonicalEntity{
			{Name: "aspirin", Type: types.EntityChemical, Aliases: []string{"aspirin"}, Articles: []string{"300"}},
		},
	}
	require.NoError(t, s.Save(ctx, second, nil))

	got, err := s.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, "aspirin", got.Keyword)
	assert.Len(t, got.Entities, 1)
	assert.Empty(t, got.Edges)

	articles, err := s.Articles(ctx)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestLoadGraphEmptyStore(t *testing.T) {
	s := testStore(t)
	_, err := s.LoadGraph(context.Background())
	assert.Error(t, err)
}

func TestEntitiesFullTextSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	// Match on an alias, not just the canonical name.
	got, err := s.Entities(ctx, EntityQuery{Query: "thrombospondin"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "THBS2", got[0].Name)

	got, err = s.Entities(ctx, EntityQuery{Query: "fibrosis"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pulmonary fibrosis", got[0].Name)

	got, err = s.Entities(ctx, EntityQuery{Query: "nonexistent"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEntitiesTypeFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	got, err := s.Entities(ctx, EntityQuery{Type: types.EntityDisease})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pulmonary fibrosis", got[0].Name)
}

func TestEdgesFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	tests := []struct {
		name  string
		query EdgeQuery
		want  int
	}{
		{"all", EdgeQuery{}, 2},
		{"by entity either endpoint", EdgeQuery{Entity: "TGFB1"}, 2},
		{"by entity single", EdgeQuery{Entity: "THBS2"}, 1},
		{"by relation", EdgeQuery{Relation: types.RelationCauses}, 1},
		{"min confidence", EdgeQuery{MinConfidence: 0.7}, 1},
		{"conflicts only", EdgeQuery{ConflictsOnly: true}, 1},
		{"limit", EdgeQuery{MaxResults: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Edges(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestEdgesEvidenceRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	got, err := s.Edges(ctx, EdgeQuery{ConflictsOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "THBS2 enhanced TGFB1 expression", got[0].Evidence["100"])
	assert.True(t, got[0].Conflict)
}

func TestNeighbors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	// Depth 0: just the entity.
	sub, err := s.Neighbors(ctx, "THBS2", 0)
	require.NoError(t, err)
	assert.Len(t, sub.Entities, 1)
	assert.Empty(t, sub.Edges)

	// Depth 1: THBS2 and its direct neighbor TGFB1.
	sub, err = s.Neighbors(ctx, "THBS2", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"TGFB1", "THBS2"}, sub.EntityNames())
	assert.Len(t, sub.Edges, 1)

	// Depth 2 reaches pulmonary fibrosis through TGFB1.
	sub, err = s.Neighbors(ctx, "THBS2", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"TGFB1", "THBS2", "pulmonary fibrosis"}, sub.EntityNames())
	assert.Len(t, sub.Edges, 2)
}

func TestNeighborsUnknownEntity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	_, err := s.Neighbors(ctx, "GHOST", 1)
	assert.Error(t, err)
}

func TestExportYAML(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, &buf))

	var got types.KnowledgeGraph
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "THBS2", got.Keyword)
	assert.Len(t, got.Entities, 3)
	assert.Len(t, got.Edges, 2)
}

func TestExportJSON(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGraph(), nil))

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &buf))

	var got types.KnowledgeGraph
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "THBS2", got.Keyword)
	assert.Len(t, got.Edges, 2)
}
