// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-reader pipeline:
// search results, cached paper records, and stage configuration.
package types

import "time"

// SearchResult represents a candidate paper returned by the search provider.
// Results are transient; ranking scores are computed alongside them and never
// stored on the struct.
type SearchResult struct {
	// Identifier is the canonical arXiv ID with the version suffix stripped.
	Identifier string `json:"identifier" yaml:"identifier"`

	// Title is the paper title as returned by the provider.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Published is the first-version submission time. Zero when the provider
	// omitted it.
	Published time.Time `json:"published" yaml:"published"`

	// Updated is the latest-version time.
	Updated time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`

	// Categories lists the arXiv category tags, primary category first.
	Categories []string `json:"categories" yaml:"categories"`

	// PDFURL is the provider's link to the PDF, when advertised.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
}

// PublishedDate returns the publication date formatted as YYYY-MM-DD, or an
// empty string when unknown.
func (r SearchResult) PublishedDate() string {
	if r.Published.IsZero() {
		return ""
	}
	return r.Published.Format("2006-01-02")
}

// Metadata returns the subset of fields the cache persists.
func (r SearchResult) Metadata() PaperMetadata {
	return PaperMetadata{
		Title:     r.Title,
		Abstract:  r.Abstract,
		Authors:   r.Authors,
		Published: r.PublishedDate(),
	}
}
