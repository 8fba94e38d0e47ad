// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes the stored graph to w as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	graph, err := s.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("loading graph for export: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(graph); err != nil {
		return fmt.Errorf("encoding graph as YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the stored graph to w as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	graph, err := s.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("loading graph for export: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(graph); err != nil {
		return fmt.Errorf("encoding graph as JSON: %w", err)
	}
	return nil
}
