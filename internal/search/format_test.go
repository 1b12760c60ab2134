// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-reader/pkg/types"
)

func TestFormatText(t *testing.T) {
	results := []types.SearchResult{{
		Identifier: "2301.07041",
		Title:      "Paper A",
		Authors:    []string{"A", "B", "C", "D", "E"},
		Abstract:   strings.Repeat("x", 400),
		Published:  time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
		Categories: []string{"cs.CL", "cs.LG", "cs.AI", "stat.ML"},
	}}

	var buf bytes.Buffer
	FormatText(&buf, Query{Text: "llm", Category: "cs.CL", Sort: PolicySmart}, results)
	out := buf.String()

	assert.Contains(t, out, `Search results for "llm" (1 papers)`)
	assert.Contains(t, out, "Sort: smart (relevance + recency) (descending)")
	assert.Contains(t, out, "Category filter: cs.CL")
	assert.Contains(t, out, "**1. Paper A**")
	assert.Contains(t, out, "arXiv ID: 2301.07041")
	assert.Contains(t, out, "Authors: A, B, C, et al. (5 authors)")
	assert.Contains(t, out, "Published: 2023-01-17")
	assert.Contains(t, out, "Categories: cs.CL, cs.LG, cs.AI\n")
	assert.Contains(t, out, strings.Repeat("x", 300)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 301))
}

func TestFormatTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, Query{Text: "zzz"}, nil)
	assert.Contains(t, buf.String(), `No papers found for "zzz"`)
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(&buf, []types.SearchResult{{Identifier: "2301.07041", Title: "T"}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "2301.07041", decoded[0]["identifier"])
}

func TestFormatAuthors(t *testing.T) {
	assert.Equal(t, "", FormatAuthors(nil, 3))
	assert.Equal(t, "A, B", FormatAuthors([]string{"A", "B"}, 3))
	assert.Equal(t, "A, et al. (2 authors)", FormatAuthors([]string{"A", "B"}, 1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "éé...", Truncate("ééé", 2))
}
