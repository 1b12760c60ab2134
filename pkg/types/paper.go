// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperMetadata holds the descriptive fields of a paper as returned by the
// search provider. It is what the cache persists before any artifact exists.
type PaperMetadata struct {
	// Title is the paper title with line breaks collapsed.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract with line breaks collapsed.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Published is the first-version publication date (YYYY-MM-DD).
	Published string `json:"published" yaml:"published"`
}

// PaperRecord is one cached paper: metadata plus the artifacts derived from
// it. Exactly one record exists per canonical identifier.
type PaperRecord struct {
	// ID is the canonical arXiv identifier with the version suffix stripped.
	ID string `json:"id" yaml:"id"`

	PaperMetadata `yaml:",inline"`

	// SourcePath is the local path of the downloaded PDF, empty until fetched.
	SourcePath string `json:"source_path,omitempty" yaml:"source_path,omitempty"`

	// TextPath is the local path of the extracted Markdown, empty until
	// converted.
	TextPath string `json:"text_path,omitempty" yaml:"text_path,omitempty"`

	// SizeBytes is the combined on-disk size of SourcePath and TextPath at the
	// time of the last write.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`

	// CreatedAt is when the record was first inserted. It never changes and
	// drives age-based eviction.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// LastAccessedAt is bumped on every cache read.
	LastAccessedAt time.Time `json:"last_accessed_at" yaml:"last_accessed_at"`
}

// HasText reports whether an extracted text artifact has been recorded.
func (p *PaperRecord) HasText() bool {
	return p != nil && p.TextPath != ""
}

// MetadataOnly reports whether the record carries no artifacts yet.
func (p *PaperRecord) MetadataOnly() bool {
	return p.SourcePath == "" && p.TextPath == ""
}
