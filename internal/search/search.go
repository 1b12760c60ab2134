// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries the arXiv API and orders results for display.
// Providers return results in their native order; Rank reorders them as a
// pure transform without annotating the result values.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-reader/pkg/types"
)

// Provider searches a preprint repository and looks up single papers.
type Provider interface {
	// Search returns up to q.MaxResults results in provider order.
	Search(ctx context.Context, q Query) ([]types.SearchResult, error)

	// Lookup returns metadata for id, or nil when the provider does not
	// know the identifier.
	Lookup(ctx context.Context, id string) (*types.SearchResult, error)
}

// Query holds provider-side search parameters.
type Query struct {
	Text       string
	Category   string
	MaxResults int
	Sort       Policy
	Order      SortOrder
}

// Expression returns the provider query string. A category restricts the
// free-text query with a cat: clause.
func (q Query) Expression() string {
	text := strings.TrimSpace(q.Text)
	if q.Category == "" {
		return text
	}
	return fmt.Sprintf("cat:%s AND (%s)", q.Category, text)
}

// Policy selects how results are ordered.
type Policy string

const (
	PolicySmart     Policy = "smart"
	PolicyRelevance Policy = "relevance"
	PolicySubmitted Policy = "submitted"
	PolicyUpdated   Policy = "updated"
)

// ParsePolicy validates a policy name. Matching is case-insensitive.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySmart, PolicyRelevance, PolicySubmitted, PolicyUpdated:
		return p, nil
	default:
		return "", fmt.Errorf("unknown sort policy %q (want smart, relevance, submitted, or updated)", s)
	}
}

// Label is the human-readable policy name.
func (p Policy) Label() string {
	switch p {
	case PolicySmart:
		return "smart (relevance + recency)"
	case PolicySubmitted:
		return "submission date"
	case PolicyUpdated:
		return "last updated"
	default:
		return "relevance"
	}
}

// SortOrder is the provider-side sort direction.
type SortOrder string

const (
	OrderDescending SortOrder = "descending"
	OrderAscending  SortOrder = "ascending"
)

// ParseOrder validates a sort order name.
func ParseOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case OrderDescending, OrderAscending:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q (want descending or ascending)", s)
	}
}

// Categories lists common arXiv categories for help output.
var Categories = []struct {
	Code, Name string
}{
	{"cs.AI", "Artificial Intelligence"},
	{"cs.CL", "Computation and Language"},
	{"cs.CV", "Computer Vision"},
	{"cs.LG", "Machine Learning"},
	{"cs.NE", "Neural and Evolutionary Computing"},
	{"cs.IR", "Information Retrieval"},
	{"cs.RO", "Robotics"},
	{"cs.SE", "Software Engineering"},
	{"cs.CR", "Cryptography and Security"},
	{"cs.DB", "Databases"},
	{"cs.DC", "Distributed Computing"},
	{"stat.ML", "Statistical Machine Learning"},
	{"math.OC", "Optimization and Control"},
	{"eess.AS", "Audio and Speech Processing"},
	{"eess.IV", "Image and Video Processing"},
	{"quant-ph", "Quantum Physics"},
}
