// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryExpression(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"plain", Query{Text: "transformer attention"}, "transformer attention"},
		{"trimmed", Query{Text: "  llm  "}, "llm"},
		{"category", Query{Text: "llm agents", Category: "cs.CL"}, "cat:cs.CL AND (llm agents)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Expression())
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for _, in := range []string{"smart", "RELEVANCE", " submitted ", "updated"} {
		_, err := ParsePolicy(in)
		assert.NoError(t, err, in)
	}
	p, err := ParsePolicy("Smart")
	require.NoError(t, err)
	assert.Equal(t, PolicySmart, p)

	_, err = ParsePolicy("citations")
	assert.Error(t, err)
	_, err = ParsePolicy("")
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("Ascending")
	require.NoError(t, err)
	assert.Equal(t, OrderAscending, o)

	_, err = ParseOrder("sideways")
	assert.Error(t, err)
}

func TestStripVersion(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2301.07041v2", "2301.07041"},
		{"2301.07041", "2301.07041"},
		{"hep-th/9901001v3", "hep-th/9901001"},
		{"solv-int/9901001", "solv-int/9901001"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripVersion(tt.in), tt.in)
	}
}
