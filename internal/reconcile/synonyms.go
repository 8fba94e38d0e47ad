// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Synonyms maps normalized surface forms to canonical entity names. An empty
// table is valid: canonicalization then relies on normalization alone.
type Synonyms struct {
	byNorm map[string]string
}

// synonymsFile is the on-disk YAML shape: canonical name → surface forms.
//
//	THBS2:
//	  - thrombospondin-2
//	  - thrombospondin 2
type synonymsFile map[string][]string

// LoadSynonyms reads a synonym table from a YAML file. The table is closed
// over its targets: every canonical name maps to itself, which keeps
// canonicalization idempotent when canonical names are fed back as surfaces.
// An empty path yields an empty table.
func LoadSynonyms(path string) (*Synonyms, error) {
	s := &Synonyms{byNorm: make(map[string]string)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonyms file %s: %w", path, err)
	}

	var file synonymsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing synonyms file %s: %w", path, err)
	}

	for canonical, surfaces := range file {
		s.add(canonical, canonical)
		for _, surface := range surfaces {
			s.add(surface, canonical)
		}
	}
	return s, nil
}

// NewSynonyms builds a table from a canonical-name → surface-forms mapping.
// Used by tests and embedders that do not go through a file.
func NewSynonyms(entries map[string][]string) *Synonyms {
	s := &Synonyms{byNorm: make(map[string]string)}
	for canonical, surfaces := range entries {
		s.add(canonical, canonical)
		for _, surface := range surfaces {
			s.add(surface, canonical)
		}
	}
	return s
}

func (s *Synonyms) add(surface, canonical string) {
	norm := normalizeSurface(surface)
	if norm == "" {
		return
	}
	s.byNorm[norm] = canonical
}

// Canonical returns the canonical name for a surface form, if the table
// covers it.
func (s *Synonyms) Canonical(surface string) (string, bool) {
	if s == nil || s.byNorm == nil {
		return "", false
	}
	c, ok := s.byNorm[normalizeSurface(surface)]
	return c, ok
}

// Len returns the number of normalized surface forms in the table.
func (s *Synonyms) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byNorm)
}
