// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EntityType classifies a biomedical entity.
type EntityType string

const (
	EntityGene     EntityType = "gene"
	EntityProtein  EntityType = "protein"
	EntityDisease  EntityType = "disease"
	EntityChemical EntityType = "chemical"
	EntityProcess  EntityType = "process"
	EntityOther    EntityType = "other"
)

// RelationKind identifies the kind of association between two entities.
type RelationKind string

const (
	RelationCauses         RelationKind = "causes"
	RelationUpregulates    RelationKind = "upregulates"
	RelationDownregulates  RelationKind = "downregulates"
	RelationInhibits       RelationKind = "inhibits"
	RelationActivates      RelationKind = "activates"
	RelationCorrelatesWith RelationKind = "correlates_with"
	RelationPartOf         RelationKind = "part_of"
	RelationOther          RelationKind = "other"
)

// Polarity is the direction of an observed effect.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"

	// PolarityTied marks an edge whose supporting articles split evenly
	// between polarities. Reconciliation is the only producer of this value;
	// extraction tuples never carry it.
	PolarityTied Polarity = "tied"
)

// EntityMention is one surface-level entity occurrence reported by the
// extractor for a single article. Mentions are ephemeral: reconciliation
// consumes them and produces CanonicalEntities.
type EntityMention struct {
	// Surface is the entity string exactly as it appeared in the extraction
	// output (e.g. "thbs2", "Thrombospondin-2").
	Surface string `json:"surface" yaml:"surface"`

	// Type is the extractor's classification of the mention.
	Type EntityType `json:"type" yaml:"type"`

	// ArticleID is the PMID of the article the mention came from.
	ArticleID string `json:"article_id" yaml:"article_id"`
}

// RawTuple is one validated relationship observation from the extractor.
// Tuples cross the extraction boundary only after validation; malformed
// model output is dropped there, not propagated.
type RawTuple struct {
	// Subject and Object are surface strings, resolved to canonical
	// entities during reconciliation.
	Subject     string     `json:"subject" yaml:"subject"`
	SubjectType EntityType `json:"subject_type" yaml:"subject_type"`
	Object      string     `json:"object" yaml:"object"`
	ObjectType  EntityType `json:"object_type" yaml:"object_type"`

	// Relation is the kind of association the article reports.
	Relation RelationKind `json:"relation" yaml:"relation"`

	// Polarity is the reported effect direction.
	Polarity Polarity `json:"polarity" yaml:"polarity"`

	// Evidence is the abstract span supporting the observation.
	Evidence string `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// ArticleID is the PMID of the source article.
	ArticleID string `json:"article_id" yaml:"article_id"`
}

// CanonicalEntity is the single deduplicated representation of one
// real-world entity, with every observed surface form attached as an alias.
type CanonicalEntity struct {
	// Name is the canonical display name: the synonym-table target when one
	// applies, otherwise a deterministic representative of the alias group.
	Name string `json:"name" yaml:"name"`

	// Type is the majority type across the merged mentions.
	Type EntityType `json:"type" yaml:"type"`

	// Aliases lists every distinct surface form merged into this entity,
	// sorted. The canonical name itself always appears.
	Aliases []string `json:"aliases" yaml:"aliases"`

	// Articles lists the PMIDs that mentioned this entity, sorted.
	Articles []string `json:"articles" yaml:"articles"`
}

// RelationshipEdge is a directed, typed association between two canonical
// entities, aggregated from possibly many article-level observations.
// An edge is uniquely identified by (Source, Target, Relation).
type RelationshipEdge struct {
	// Source and Target are canonical entity names.
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`

	// Relation is the association kind shared by all merged observations.
	Relation RelationKind `json:"relation" yaml:"relation"`

	// Polarity is the majority polarity across distinct supporting
	// articles, or PolarityTied on an exact split.
	Polarity Polarity `json:"polarity" yaml:"polarity"`

	// Conflict is set when supporting articles disagree on polarity.
	Conflict bool `json:"conflict" yaml:"conflict"`

	// Articles lists the supporting PMIDs, sorted and deduplicated.
	Articles []string `json:"articles" yaml:"articles"`

	// Confidence grows monotonically with the number of distinct supporting
	// articles and is capped at the configured maximum.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Evidence holds one supporting span per article, keyed by PMID.
	Evidence map[string]string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// KnowledgeGraph is the terminal artifact of a reconciliation run for one
// keyword. Immutable after the run completes.
type KnowledgeGraph struct {
	// Keyword is the search term the run was built for.
	Keyword string `json:"keyword" yaml:"keyword"`

	// BuiltAt is when reconciliation finished.
	BuiltAt time.Time `json:"built_at" yaml:"built_at"`

	// Entities are the canonical entities, sorted by name.
	Entities []CanonicalEntity `json:"entities" yaml:"entities"`

	// Edges are the merged relationship edges, sorted by
	// (source, target, relation).
	Edges []RelationshipEdge `json:"edges" yaml:"edges"`
}

// Entity returns the canonical entity with the given name, or nil.
func (g *KnowledgeGraph) Entity(name string) *CanonicalEntity {
	for i := range g.Entities {
		if g.Entities[i].Name == name {
			return &g.Entities[i]
		}
	}
	return nil
}

// EntityNames returns the sorted canonical names of all entities.
func (g *KnowledgeGraph) EntityNames() []string {
	names := make([]string, len(g.Entities))
	for i, e := range g.Entities {
		names[i] = e.Name
	}
	return names
}
