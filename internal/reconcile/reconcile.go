// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile merges noisy per-article extraction output into one
// consistent knowledge graph: canonicalizing entity mentions, merging
// relationship observations, and assembling the final graph with provenance.
//
// Every operation here is deterministic and independent of input order.
// Naive first-seen-wins merging would make the graph depend on worker
// completion order; grouping by normalized form and picking representatives
// by a fixed comparator avoids that.
package reconcile

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// normalizeSurface lowercases a surface string, strips punctuation, and
// collapses whitespace, so case and punctuation variants of the same entity
// share one normalized form ("Thrombospondin-2" → "thrombospondin 2").
func normalizeSurface(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// mentionGroup accumulates one canonical entity's inputs during grouping.
type mentionGroup struct {
	canonical string // non-empty when a synonym target names the group
	surfaces  map[string]bool
	articles  map[string]bool
	typeVotes map[types.EntityType]int
}

// Canonicalize merges entity mentions into canonical entities and returns a
// mapping from every observed surface form to its canonical entity. Mentions
// group by synonym-table target when one applies, otherwise by normalized
// surface form. The result is a pure function of the mention set: feeding
// canonical names back in as surfaces reproduces the same entities
// (idempotence), and permuting the input changes nothing.
//
// An empty mention list yields an empty map, not an error.
func Canonicalize(mentions []types.EntityMention, syn *Synonyms) map[string]*types.CanonicalEntity {
	groups := make(map[string]*mentionGroup)

	for _, m := range mentions {
		surface := strings.TrimSpace(m.Surface)
		if surface == "" {
			continue
		}
		norm := normalizeSurface(surface)
		if norm == "" {
			continue
		}

		key := "norm:" + norm
		canonical := ""
		if c, ok := syn.Canonical(surface); ok {
			key = "syn:" + c
			canonical = c
		}

		g := groups[key]
		if g == nil {
			g = &mentionGroup{
				canonical: canonical,
				surfaces:  make(map[string]bool),
				articles:  make(map[string]bool),
				typeVotes: make(map[types.EntityType]int),
			}
			groups[key] = g
		}
		g.surfaces[surface] = true
		if m.ArticleID != "" {
			g.articles[m.ArticleID] = true
		}
		if m.Type != "" {
			g.typeVotes[m.Type]++
		}
	}

	result := make(map[string]*types.CanonicalEntity, len(mentions))
	for _, g := range groups {
		name := g.canonical
		if name == "" {
			name = representative(g.surfaces)
		}
		g.surfaces[name] = true

		entity := &types.CanonicalEntity{
			Name:     name,
			Type:     majorityType(g.typeVotes),
			Aliases:  sortedKeys(g.surfaces),
			Articles: sortedKeys(g.articles),
		}
		for surface := range g.surfaces {
			result[surface] = entity
		}
	}

	return result
}

// representative picks the display name for a group without a synonym
// target: the shortest surface form, breaking ties lexicographically. The
// shortest form tends to be the symbol ("THBS2") rather than the spelled-out
// name, and the rule is stable under permutation of the input.
func representative(surfaces map[string]bool) string {
	best := ""
	for s := range surfaces {
		if best == "" {
			best = s
			continue
		}
		if len(s) < len(best) || (len(s) == len(best) && s < best) {
			best = s
		}
	}
	return best
}

// majorityType returns the most voted entity type, breaking ties by
// lexicographic order of the type name. No votes yields EntityOther.
func majorityType(votes map[types.EntityType]int) types.EntityType {
	best := types.EntityOther
	bestCount := 0
	for et, n := range votes {
		if n > bestCount || (n == bestCount && string(et) < string(best)) {
			best = et
			bestCount = n
		}
	}
	return best
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MentionsFromTuples derives the entity mentions implied by a set of
// validated extraction tuples: one mention per tuple endpoint.
func MentionsFromTuples(tuples []types.RawTuple) []types.EntityMention {
	mentions := make([]types.EntityMention, 0, 2*len(tuples))
	for _, t := range tuples {
		mentions = append(mentions,
			types.EntityMention{Surface: t.Subject, Type: t.SubjectType, ArticleID: t.ArticleID},
			types.EntityMention{Surface: t.Object, Type: t.ObjectType, ArticleID: t.ArticleID},
		)
	}
	return mentions
}
