// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"sort"
	"strings"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// Filter extracts the subgraph around entities matching focus. Matching is a
// case-insensitive substring test over entity names and aliases. The match
// set is expanded depth hops along edges in either direction, then the
// induced subgraph is returned. Entities whose name contains any exclude
// substring are removed before expansion. An empty result (no entity
// matched) yields a graph with no entities, not an error.
func Filter(graph *types.KnowledgeGraph, focus string, depth int, exclude []string) *types.KnowledgeGraph {
	excluded := func(name string) bool {
		for _, exc := range exclude {
			if exc != "" && strings.Contains(strings.ToLower(name), strings.ToLower(exc)) {
				return true
			}
		}
		return false
	}

	// Adjacency over the non-excluded entities, both directions.
	adjacent := make(map[string][]string)
	for _, e := range graph.Edges {
		if excluded(e.Source) || excluded(e.Target) {
			continue
		}
		adjacent[e.Source] = append(adjacent[e.Source], e.Target)
		adjacent[e.Target] = append(adjacent[e.Target], e.Source)
	}

	focusLower := strings.ToLower(focus)
	matches := func(e types.CanonicalEntity) bool {
		if strings.Contains(strings.ToLower(e.Name), focusLower) {
			return true
		}
		for _, a := range e.Aliases {
			if strings.Contains(strings.ToLower(a), focusLower) {
				return true
			}
		}
		return false
	}

	keep := make(map[string]bool)
	for _, e := range graph.Entities {
		if !excluded(e.Name) && matches(e) {
			keep[e.Name] = true
		}
	}

	frontier := sortedNames(keep)
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, name := range frontier {
			for _, neighbor := range adjacent[name] {
				if !keep[neighbor] {
					keep[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}

	out := &types.KnowledgeGraph{
		Keyword: graph.Keyword,
		BuiltAt: graph.BuiltAt,
	}
	for _, e := range graph.Entities {
		if keep[e.Name] {
			out.Entities = append(out.Entities, e)
		}
	}
	sort.Slice(out.Entities, func(i, j int) bool { return out.Entities[i].Name < out.Entities[j].Name })
	for _, e := range graph.Edges {
		if keep[e.Source] && keep[e.Target] && !excluded(e.Source) && !excluded(e.Target) {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
