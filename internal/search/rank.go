// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"math"
	"sort"
	"time"

	"github.com/pdiddy/paper-reader/pkg/types"
)

// maxSmartFetch caps how many provider results smart ranking re-sorts.
const maxSmartFetch = 100

// SmartWeights parameterizes the smart composite score.
type SmartWeights struct {
	Relevance    float64 // weight of the rank-derived score
	Recency      float64 // weight of the age-derived score
	RankDecay    float64 // relevance = 1 / (1 + RankDecay*rank)
	HalfLifeDays float64 // recency = 1 / (1 + days/HalfLifeDays)
	MissingDate  float64 // recency when the publish date is unknown
}

// DefaultSmartWeights are the weights used by Rank.
var DefaultSmartWeights = SmartWeights{
	Relevance:    0.6,
	Recency:      0.4,
	RankDecay:    0.1,
	HalfLifeDays: 180,
	MissingDate:  0.5,
}

// Score holds the derived scores for one result. Scores are returned in a
// slice parallel to the results rather than stored on them.
type Score struct {
	Relevance float64
	Recency   float64
	Composite float64
}

// FetchCount returns how many results to request from the provider to
// produce n ranked results. Smart ranking over-fetches 3n, capped at 100.
func FetchCount(p Policy, n int) int {
	if n <= 0 {
		return 0
	}
	if p == PolicySmart {
		return min(3*n, maxSmartFetch)
	}
	return n
}

// ProviderSort returns the provider-side ordering for a policy. Smart
// ranking fetches in relevance order and re-sorts locally.
func ProviderSort(p Policy) Policy {
	if p == PolicySmart {
		return PolicyRelevance
	}
	return p
}

// Rank returns the top n results under policy p. Non-smart policies keep
// provider order. The input slice is not modified.
func Rank(results []types.SearchResult, p Policy, n int, now time.Time) []types.SearchResult {
	ranked, _ := RankWithScores(results, p, n, now, DefaultSmartWeights)
	return ranked
}

// RankWithScores is Rank with explicit weights that also returns the scores
// of the returned results (nil for non-smart policies).
func RankWithScores(results []types.SearchResult, p Policy, n int, now time.Time, w SmartWeights) ([]types.SearchResult, []Score) {
	if n <= 0 || len(results) == 0 {
		return []types.SearchResult{}, nil
	}

	if p != PolicySmart {
		out := make([]types.SearchResult, min(n, len(results)))
		copy(out, results)
		return out, nil
	}

	scores := make([]Score, len(results))
	order := make([]int, len(results))
	for i, r := range results {
		scores[i] = w.score(i, r.Published, now)
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]].Composite > scores[order[b]].Composite
	})

	k := min(n, len(order))
	out := make([]types.SearchResult, k)
	outScores := make([]Score, k)
	for i := 0; i < k; i++ {
		out[i] = results[order[i]]
		outScores[i] = scores[order[i]]
	}
	return out, outScores
}

func (w SmartWeights) score(rank int, published, now time.Time) Score {
	s := Score{
		Relevance: 1.0 / (1.0 + w.RankDecay*float64(rank)),
		Recency:   w.MissingDate,
	}
	if !published.IsZero() {
		// Whole days; publish times after now count as today.
		days := math.Max(0, math.Floor(now.Sub(published).Hours()/24))
		s.Recency = 1.0 / (1.0 + days/w.HalfLifeDays)
	}
	s.Composite = w.Relevance*s.Relevance + w.Recency*s.Recency
	return s
}
