// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// EntityQuery filters entity lookups. A zero value returns every entity up
// to the store's result cap.
type EntityQuery struct {
	// Query is matched with FTS5 against entity names and aliases.
	Query string
	// Type restricts results to one entity type when set.
	Type types.EntityType
	// MaxResults caps the result set; 0 uses the store default, negative
	// means unlimited.
	MaxResults int
}

// EdgeQuery filters edge lookups. A zero value returns every edge up to the
// store's result cap.
type EdgeQuery struct {
	// Entity restricts results to edges touching the named entity as either
	// endpoint.
	Entity string
	// Relation restricts results to one relation kind when set.
	Relation types.RelationKind
	// MinConfidence drops edges below the threshold.
	MinConfidence float64
	// ConflictsOnly keeps only edges whose supporting articles disagreed on
	// polarity.
	ConflictsOnly bool
	// MaxResults caps the result set; 0 uses the store default, negative
	// means unlimited.
	MaxResults int
}

func (s *Store) limitFor(maxResults int) int {
	if maxResults == 0 {
		return s.maxResults
	}
	if maxResults < 0 {
		return -1 // SQLite: LIMIT -1 means no limit
	}
	return maxResults
}

// Entities queries the entity table, using FTS5 when q.Query is set.
func (s *Store) Entities(ctx context.Context, q EntityQuery) ([]types.CanonicalEntity, error) {
	var (
		sb   strings.Builder
		args []any
	)

	if q.Query != "" {
		sb.WriteString(`SELECT e.name, e.type, e.aliases, e.articles
			FROM entities e
			JOIN entities_fts f ON e.rowid = f.rowid
			WHERE entities_fts MATCH ?`)
		args = append(args, ftsQuery(q.Query))
	} else {
		sb.WriteString(`SELECT e.name, e.type, e.aliases, e.articles FROM entities e WHERE 1=1`)
	}
	if q.Type != "" {
		sb.WriteString(` AND e.type = ?`)
		args = append(args, string(q.Type))
	}
	if q.Query != "" {
		sb.WriteString(` ORDER BY rank, e.name LIMIT ?`)
	} else {
		sb.WriteString(` ORDER BY e.name LIMIT ?`)
	}
	args = append(args, s.limitFor(q.MaxResults))

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var out []types.CanonicalEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Edges queries the edge table with the given filters, ordered by
// (source, target, relation).
func (s *Store) Edges(ctx context.Context, q EdgeQuery) ([]types.RelationshipEdge, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT source, target, relation, polarity, conflict, confidence, articles, evidence
		FROM edges WHERE 1=1`)
	if q.Entity != "" {
		sb.WriteString(` AND (source = ? OR target = ?)`)
		args = append(args, q.Entity, q.Entity)
	}
	if q.Relation != "" {
		sb.WriteString(` AND relation = ?`)
		args = append(args, string(q.Relation))
	}
	if q.MinConfidence > 0 {
		sb.WriteString(` AND confidence >= ?`)
		args = append(args, q.MinConfidence)
	}
	if q.ConflictsOnly {
		sb.WriteString(` AND conflict = 1`)
	}
	sb.WriteString(` ORDER BY source, target, relation LIMIT ?`)
	args = append(args, s.limitFor(q.MaxResults))

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var out []types.RelationshipEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Neighbors returns the subgraph reachable from the named entity within
// depth hops, following edges in both directions. Depth 0 returns just the
// entity itself.
func (s *Store) Neighbors(ctx context.Context, entity string, depth int) (*types.KnowledgeGraph, error) {
	start, err := s.entityByName(ctx, entity)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{start.Name: true}
	frontier := []string{start.Name}
	edgeKeys := make(map[string]bool)
	var edges []types.RelationshipEdge

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, name := range frontier {
			adjacent, err := s.Edges(ctx, EdgeQuery{Entity: name, MaxResults: -1})
			if err != nil {
				return nil, err
			}
			for _, e := range adjacent {
				key := e.Source + "\x00" + e.Target + "\x00" + string(e.Relation)
				if !edgeKeys[key] {
					edgeKeys[key] = true
					edges = append(edges, e)
				}
				for _, endpoint := range []string{e.Source, e.Target} {
					if !visited[endpoint] {
						visited[endpoint] = true
						next = append(next, endpoint)
					}
				}
			}
		}
		frontier = next
	}

	names := make([]string, 0, len(visited))
	for name := range visited {
		names = append(names, name)
	}
	sort.Strings(names)

	var entities []types.CanonicalEntity
	for _, name := range names {
		e, err := s.entityByName(ctx, name)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
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

	var keyword string
	s.db.QueryRowContext(ctx, `SELECT keyword FROM run_info`).Scan(&keyword)

	return &types.KnowledgeGraph{
		Keyword:  keyword,
		Entities: entities,
		Edges:    edges,
	}, nil
}

func (s *Store) entityByName(ctx context.Context, name string) (types.CanonicalEntity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, type, aliases, articles FROM entities WHERE name = ?`, name)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, fmt.Errorf("entity %q not found", name)
		}
		return e, err
	}
	return e, nil
}

func scanEdge(r rowScanner) (types.RelationshipEdge, error) {
	var e types.RelationshipEdge
	var relation, polarity, articlesJSON string
	var evidenceJSON sql.NullString
	var conflict int
	if err := r.Scan(&e.Source, &e.Target, &relation, &polarity, &conflict, &e.Confidence, &articlesJSON, &evidenceJSON); err != nil {
		return e, fmt.Errorf("scanning edge: %w", err)
	}
	e.Relation = types.RelationKind(relation)
	e.Polarity = types.Polarity(polarity)
	e.Conflict = conflict != 0
	json.Unmarshal([]byte(articlesJSON), &e.Articles)
	if evidenceJSON.Valid && evidenceJSON.String != "" && evidenceJSON.String != "null" {
		json.Unmarshal([]byte(evidenceJSON.String), &e.Evidence)
	}
	return e, nil
}

// ftsQuery wraps each whitespace token in quotes so entity names containing
// FTS5 operators ("AND", hyphens) query literally.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}
