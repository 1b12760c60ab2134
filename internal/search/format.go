// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/paper-reader/pkg/types"
)

const (
	abstractPreviewChars = 300
	listedAuthors        = 3
	listedCategories     = 3
)

// FormatText writes results as the human-readable listing returned to
// agent clients.
func FormatText(w io.Writer, q Query, results []types.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No papers found for %q.\n\n", q.Text)
		fmt.Fprintln(w, "Suggestions:")
		fmt.Fprintln(w, "1. Search with English keywords (arXiv papers are mostly in English)")
		fmt.Fprintln(w, "2. Use broader or more specific terms")
		fmt.Fprintln(w, "3. Check the spelling")
		return
	}

	order := q.Order
	if order == "" {
		order = OrderDescending
	}
	fmt.Fprintf(w, "Search results for %q (%d papers)\n", q.Text, len(results))
	fmt.Fprintf(w, "Sort: %s (%s)\n", q.Sort.Label(), order)
	if q.Category != "" {
		fmt.Fprintf(w, "Category filter: %s\n", q.Category)
	}
	fmt.Fprintln(w)

	for i, r := range results {
		fmt.Fprint(w, "---\n\n")
		fmt.Fprintf(w, "**%d. %s**\n\n", i+1, r.Title)
		fmt.Fprintf(w, "arXiv ID: %s\n", r.Identifier)
		fmt.Fprintf(w, "Authors: %s\n", FormatAuthors(r.Authors, listedAuthors))
		fmt.Fprintf(w, "Published: %s\n", r.PublishedDate())
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(r.Categories[:min(listedCategories, len(r.Categories))], ", "))
		fmt.Fprintf(w, "\nAbstract:\n%s\n\n", Truncate(r.Abstract, abstractPreviewChars))
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintln(w, "\nTips:")
	fmt.Fprintln(w, "- Read the full text with `read <arXiv ID>`")
	fmt.Fprintln(w, "- English keywords give the best results on arXiv")
}

// FormatJSON writes results as indented JSON to w.
func FormatJSON(w io.Writer, results []types.SearchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// FormatAuthors joins up to limit authors and notes the total when more
// exist.
func FormatAuthors(authors []string, limit int) string {
	if len(authors) <= limit {
		return strings.Join(authors, ", ")
	}
	return fmt.Sprintf("%s, et al. (%d authors)", strings.Join(authors[:limit], ", "), len(authors))
}

// Truncate shortens s to max characters, appending "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
