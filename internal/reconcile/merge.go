// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// InvariantViolationError reports a reconciler bug: an edge referencing an
// entity absent from the entity set. It is fatal for the run.
type InvariantViolationError struct {
	Edge   string
	Entity string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: edge %s references unknown entity %q", e.Edge, e.Entity)
}

// edgeGroup accumulates the observations merged into one edge.
type edgeGroup struct {
	source, target string
	relation       types.RelationKind
	articles       map[string]bool
	// polarityVotes records which polarities each article reported, so one
	// article voting the same way twice does not double-count.
	polarityVotes map[types.Polarity]map[string]bool
	// evidence keeps one span per article, chosen deterministically.
	evidence map[string]string
}

// MergeRelationships resolves raw tuples through the canonicalization map
// and merges them into deduplicated relationship edges. Tuples whose
// subject or object cannot be resolved are dropped with a warning on w;
// extraction noise is expected and never fatal. Observations that collapse
// onto a self-loop after canonicalization (an entity related to its own
// alias) are dropped the same way.
//
// For each (source, target, relation) group the supporting article sets are
// unioned and confidence computed as 1 − (1−base)^n over distinct articles,
// capped at cfg.MaxConfidence. Polarity disagreement across articles is
// surfaced, not averaged: the edge carries the majority polarity and a
// conflict flag; an exact tie is marked PolarityTied.
//
// The returned edges are sorted by (source, target, relation).
func MergeRelationships(tuples []types.RawTuple, canonical map[string]*types.CanonicalEntity, cfg types.ReconcileConfig, w io.Writer) []types.RelationshipEdge {
	if w == nil {
		w = io.Discard
	}

	groups := make(map[string]*edgeGroup)

	for _, t := range tuples {
		src, ok := canonical[t.Subject]
		if !ok {
			fmt.Fprintf(w, "warning: unresolved subject %q (article %s), tuple dropped\n", t.Subject, t.ArticleID)
			continue
		}
		dst, ok := canonical[t.Object]
		if !ok {
			fmt.Fprintf(w, "warning: unresolved object %q (article %s), tuple dropped\n", t.Object, t.ArticleID)
			continue
		}
		if src.Name == dst.Name {
			fmt.Fprintf(w, "warning: self-loop %q after canonicalization (article %s), tuple dropped\n", src.Name, t.ArticleID)
			continue
		}

		key := src.Name + "\x00" + dst.Name + "\x00" + string(t.Relation)
		g := groups[key]
		if g == nil {
			g = &edgeGroup{
				source:        src.Name,
				target:        dst.Name,
				relation:      t.Relation,
				articles:      make(map[string]bool),
				polarityVotes: make(map[types.Polarity]map[string]bool),
				evidence:      make(map[string]string),
			}
			groups[key] = g
		}

		g.articles[t.ArticleID] = true

		votes := g.polarityVotes[t.Polarity]
		if votes == nil {
			votes = make(map[string]bool)
			g.polarityVotes[t.Polarity] = votes
		}
		votes[t.ArticleID] = true

		if t.Evidence != "" {
			// Keep the lexicographically smallest span per article so the
			// choice does not depend on tuple order.
			if prev, ok := g.evidence[t.ArticleID]; !ok || t.Evidence < prev {
				g.evidence[t.ArticleID] = t.Evidence
			}
		}
	}

	base := cfg.BaseConfidence
	if base <= 0 || base >= 1 {
		base = 0.6
	}
	maxConf := cfg.MaxConfidence
	if maxConf <= 0 || maxConf > 1 {
		maxConf = 0.99
	}

	edges := make([]types.RelationshipEdge, 0, len(groups))
	for _, g := range groups {
		polarity, conflict := resolvePolarity(g.polarityVotes)

		n := len(g.articles)
		confidence := math.Min(maxConf, 1.0-math.Pow(1.0-base, float64(n)))

		edge := types.RelationshipEdge{
			Source:     g.source,
			Target:     g.target,
			Relation:   g.relation,
			Polarity:   polarity,
			Conflict:   conflict,
			Articles:   sortedKeys(g.articles),
			Confidence: confidence,
		}
		if len(g.evidence) > 0 {
			edge.Evidence = g.evidence
		}
		edges = append(edges, edge)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Relation < edges[j].Relation
	})

	return edges
}

// resolvePolarity reduces per-article polarity votes to a single polarity
// plus a conflict flag. Votes are counted per distinct article. Any
// disagreement sets the conflict flag; an exact tie for the lead yields
// PolarityTied rather than an arbitrary side.
func resolvePolarity(votes map[types.Polarity]map[string]bool) (types.Polarity, bool) {
	if len(votes) == 0 {
		return types.PolarityNeutral, false
	}

	type tally struct {
		polarity types.Polarity
		count    int
	}
	tallies := make([]tally, 0, len(votes))
	for p, articles := range votes {
		if len(articles) > 0 {
			tallies = append(tallies, tally{polarity: p, count: len(articles)})
		}
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].count != tallies[j].count {
			return tallies[i].count > tallies[j].count
		}
		return tallies[i].polarity < tallies[j].polarity
	})

	conflict := len(tallies) > 1
	if conflict && tallies[0].count == tallies[1].count {
		return types.PolarityTied, true
	}
	return tallies[0].polarity, conflict
}

// BuildGraph assembles the terminal knowledge graph from a canonicalization
// map and merged edges. Pure assembly: it fails with an
// InvariantViolationError if any edge references an entity missing from the
// entity set, which would indicate a reconciler bug upstream.
func BuildGraph(keyword string, canonical map[string]*types.CanonicalEntity, edges []types.RelationshipEdge) (*types.KnowledgeGraph, error) {
	seen := make(map[string]bool)
	var entities []types.CanonicalEntity
	for _, e := range canonical {
		if !seen[e.Name] {
			seen[e.Name] = true
			entities = append(entities, *e)
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })

	for _, edge := range edges {
		edgeID := fmt.Sprintf("(%s -[%s]-> %s)", edge.Source, edge.Relation, edge.Target)
		if !seen[edge.Source] {
			return nil, &InvariantViolationError{Edge: edgeID, Entity: edge.Source}
		}
		if !seen[edge.Target] {
			return nil, &InvariantViolationError{Edge: edgeID, Entity: edge.Target}
		}
	}

	return &types.KnowledgeGraph{
		Keyword:  keyword,
		BuiltAt:  time.Now().UTC(),
		Entities: entities,
		Edges:    edges,
	}, nil
}

// Reconcile is the full pipeline over one run's tuples: derive mentions,
// canonicalize, merge, assemble.
func Reconcile(keyword string, tuples []types.RawTuple, syn *Synonyms, cfg types.ReconcileConfig, w io.Writer) (*types.KnowledgeGraph, error) {
	canonical := Canonicalize(MentionsFromTuples(tuples), syn)
	edges := MergeRelationships(tuples, canonical, cfg, w)
	return BuildGraph(keyword, canonical, edges)
}
