// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the biokg-builder pipeline:
// article records from the literature search, extraction tuples, and the
// reconciled knowledge graph with its entities and relationship edges.
package types

import "time"

// ArticleRecord is one PubMed article as returned by the literature search.
// Records are immutable once fetched; downstream stages only read them.
type ArticleRecord struct {
	// PMID is the PubMed identifier, unique within a run.
	PMID string `json:"pmid" yaml:"pmid"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the article abstract. Extraction operates on this text.
	Abstract string `json:"abstract" yaml:"abstract"`

	// FullText is the full article body when available. Usually empty;
	// PubMed efetch returns abstracts only.
	FullText string `json:"full_text,omitempty" yaml:"full_text,omitempty"`

	// Journal is the publication venue.
	Journal string `json:"journal" yaml:"journal"`

	// Authors lists the article authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Date is the publication date. Month precision at best; zero when
	// PubMed provides no parseable date.
	Date time.Time `json:"date" yaml:"date"`
}

// Text returns the text extraction should analyze: the full text when
// present, otherwise the abstract.
func (a ArticleRecord) Text() string {
	if a.FullText != "" {
		return a.FullText
	}
	return a.Abstract
}
