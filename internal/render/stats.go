// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"sort"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// NodeDegree pairs an entity name with its degree.
type NodeDegree struct {
	Name   string `json:"name" yaml:"name"`
	Degree int    `json:"degree" yaml:"degree"`
}

// NetworkStats summarizes the structure of a knowledge graph, treating
// edges as undirected for degree and component purposes.
type NetworkStats struct {
	NodeCount           int          `json:"node_count" yaml:"node_count"`
	EdgeCount           int          `json:"edge_count" yaml:"edge_count"`
	AverageDegree       float64      `json:"average_degree" yaml:"average_degree"`
	Density             float64      `json:"density" yaml:"density"`
	ConnectedComponents int          `json:"connected_components" yaml:"connected_components"`
	TopByDegree         []NodeDegree `json:"top_by_degree" yaml:"top_by_degree"`
}

// Stats computes structural statistics for the graph. Parallel edges between
// the same entity pair (differing relation) count once toward degree and
// density.
func Stats(graph *types.KnowledgeGraph) NetworkStats {
	stats := NetworkStats{
		NodeCount: len(graph.Entities),
		EdgeCount: len(graph.Edges),
	}
	if stats.NodeCount == 0 {
		return stats
	}

	degree := make(map[string]int, len(graph.Entities))
	for _, e := range graph.Entities {
		degree[e.Name] = 0
	}
	adjacent := make(map[string][]string)
	pairSeen := make(map[string]bool)
	for _, e := range graph.Edges {
		a, b := e.Source, e.Target
		if b < a {
			a, b = b, a
		}
		key := a + "\x00" + b
		if pairSeen[key] {
			continue
		}
		pairSeen[key] = true
		degree[e.Source]++
		degree[e.Target]++
		adjacent[e.Source] = append(adjacent[e.Source], e.Target)
		adjacent[e.Target] = append(adjacent[e.Target], e.Source)
	}

	total := 0
	for _, d := range degree {
		total += d
	}
	stats.AverageDegree = float64(total) / float64(stats.NodeCount)
	if stats.NodeCount > 1 {
		n := float64(stats.NodeCount)
		stats.Density = float64(len(pairSeen)) / (n * (n - 1) / 2)
	}

	// Connected components via iterative DFS.
	visited := make(map[string]bool, len(degree))
	for _, e := range graph.Entities {
		if visited[e.Name] {
			continue
		}
		stats.ConnectedComponents++
		stack := []string{e.Name}
		visited[e.Name] = true
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, neighbor := range adjacent[node] {
				if !visited[neighbor] {
					visited[neighbor] = true
					stack = append(stack, neighbor)
				}
			}
		}
	}

	top := make([]NodeDegree, 0, len(degree))
	for name, d := range degree {
		top = append(top, NodeDegree{Name: name, Degree: d})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Degree != top[j].Degree {
			return top[i].Degree > top[j].Degree
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > 10 {
		top = top[:10]
	}
	stats.TopByDegree = top

	return stats
}
