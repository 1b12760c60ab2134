// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-reader/internal/acquire"
	"github.com/pdiddy/paper-reader/internal/auth"
	"github.com/pdiddy/paper-reader/internal/cache"
	"github.com/pdiddy/paper-reader/internal/convert"
	"github.com/pdiddy/paper-reader/internal/metrics"
	"github.com/pdiddy/paper-reader/internal/search"
	"github.com/pdiddy/paper-reader/pkg/types"
)

// --- fakes ---

type fakeProvider struct {
	mu        sync.Mutex
	papers    map[string]*types.SearchResult
	results   []types.SearchResult
	lookupErr error
	searchErr error
	lookups   atomic.Int32
	queries   []search.Query
}

func (p *fakeProvider) Search(_ context.Context, q search.Query) ([]types.SearchResult, error) {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.mu.Unlock()
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return p.results[:min(q.MaxResults, len(p.results))], nil
}

func (p *fakeProvider) Lookup(_ context.Context, id string) (*types.SearchResult, error) {
	p.lookups.Add(1)
	if p.lookupErr != nil {
		return nil, p.lookupErr
	}
	return p.papers[id], nil
}

type fakeFetcher struct {
	calls atomic.Int32
	err   error
	gate  chan struct{} // when non-nil, Fetch blocks until closed
}

func (f *fakeFetcher) Fetch(ctx context.Context, id, destPath string, _ int) error {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, make([]byte, 20_000), 0o644)
}

type fakeExtractor struct {
	calls atomic.Int32
	text  string
	err   error
}

func (e *fakeExtractor) Extract(_ context.Context, _, outputPath string) (string, error) {
	e.calls.Add(1)
	if e.err != nil {
		return "", e.err
	}
	if err := os.WriteFile(outputPath, []byte(e.text), 0o644); err != nil {
		return "", err
	}
	return e.text, nil
}

// --- helpers ---

const paperID = "2301.07041"

type harness struct {
	svc       *Service
	store     *cache.Store
	provider  *fakeProvider
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := cache.Open(cache.Config{
		DBPath:     filepath.Join(dir, "papers.db"),
		SourceDir:  filepath.Join(dir, "pdf"),
		TextDir:    filepath.Join(dir, "markdown"),
		MaxBytes:   1 << 30,
		MaxAgeDays: 90,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		store: store,
		provider: &fakeProvider{papers: map[string]*types.SearchResult{
			paperID: {
				Identifier: paperID,
				Title:      "Attention Revisited",
				Authors:    []string{"A", "B", "C", "D", "E", "F", "G"},
				Abstract:   "We revisit attention.",
				Published:  time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
			},
		}},
		fetcher:   &fakeFetcher{},
		extractor: &fakeExtractor{text: strings.Repeat("x", 2500)},
		metrics:   metrics.New(),
	}
	opts := Options{
		Provider:  h.provider,
		Cache:     store,
		Fetcher:   h.fetcher,
		Extractor: h.extractor,
		Config:    types.DefaultConfig(),
		Log:       zerolog.Nop(),
		Metrics:   h.metrics,
		Now:       func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.svc = New(opts)
	return h
}

// --- GetContent ---

func TestGetContentFresh(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	c, err := h.svc.GetContent(ctx, paperID, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, SourceFresh, c.Source)
	assert.Equal(t, "Attention Revisited", c.Title)
	assert.Equal(t, "2023-01-17", c.Published)
	assert.Equal(t, 1, c.Page)
	assert.Equal(t, 3, c.TotalPages)
	assert.Equal(t, 2500, c.TotalChars)
	assert.Equal(t, 1000, c.PageChars)
	assert.True(t, c.Truncated)
	assert.Len(t, c.Text, 1000)

	rec, err := h.store.Get(ctx, paperID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, h.store.SourcePath(paperID), rec.SourcePath)
	assert.Equal(t, h.store.TextPath(paperID), rec.TextPath)
	assert.Equal(t, int64(20_000+2500), rec.SizeBytes)
}

func TestGetContentCacheHit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.GetContent(ctx, paperID, 1, 1000)
	require.NoError(t, err)

	c, err := h.svc.GetContent(ctx, paperID, 3, 1000)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, c.Source)
	assert.Equal(t, 3, c.Page)
	assert.Len(t, c.Text, 500)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G"}, c.Authors)

	assert.Equal(t, int32(1), h.provider.lookups.Load())
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, int32(1), h.extractor.calls.Load())
}

func TestGetContentMissingTextArtifactRetrieves(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.GetContent(ctx, paperID, 1, 1000)
	require.NoError(t, err)
	require.NoError(t, os.Remove(h.store.TextPath(paperID)))

	c, err := h.svc.GetContent(ctx, paperID, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, SourceFresh, c.Source)
	assert.Equal(t, int32(2), h.extractor.calls.Load())
}

func TestGetContentNormalizesID(t *testing.T) {
	h := newHarness(t, nil)
	c, err := h.svc.GetContent(context.Background(), "arXiv:2301.07041v3", 1, 20000)
	require.NoError(t, err)
	assert.Equal(t, paperID, c.ID)
}

func TestGetContentClampsArguments(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		maxChars  int
		wantPage  int
		wantLimit int
	}{
		{"small limit raised to minimum", 1, 10, 1, 1000},
		{"large limit lowered to maximum", 1, 500_000, 1, 100_000},
		{"page zero becomes first", 0, 1000, 1, 1000},
		{"negative page becomes first", -4, 1000, 1, 1000},
		{"page past end becomes last", 99, 1000, 3, 1000},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := h.svc.GetContent(context.Background(), paperID, tt.page, tt.maxChars)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, c.Page)
			assert.Equal(t, tt.wantLimit, c.PageChars)
		})
	}
}

func TestGetContentValidation(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		maxChars int
	}{
		{"empty id", "", 1000},
		{"malformed id", "not-a-paper", 1000},
		{"zero max chars", paperID, 0},
		{"negative max chars", paperID, -10},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.GetContent(context.Background(), tt.id, 1, tt.maxChars)
			require.Error(t, err)
			assert.Equal(t, ValidationFailure, KindOf(err))
		})
	}
	assert.Equal(t, int32(0), h.provider.lookups.Load())
}

func TestGetContentNotFound(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.GetContent(context.Background(), "2301.99999", 1, 1000)
	require.Error(t, err)
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, int32(0), h.fetcher.calls.Load())
}

func TestGetContentLookupError(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.lookupErr = errors.New("connection reset")
	_, err := h.svc.GetContent(context.Background(), paperID, 1, 1000)
	assert.Equal(t, FetchFailure, KindOf(err))
}

func TestGetContentFetchFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = fmt.Errorf("%w: 3 attempts: status 404", acquire.ErrFetchFailed)
	ctx := context.Background()

	_, err := h.svc.GetContent(ctx, paperID, 1, 1000)
	require.Error(t, err)
	assert.Equal(t, FetchFailure, KindOf(err))
	assert.ErrorIs(t, err, acquire.ErrFetchFailed)
	assert.Equal(t, int32(0), h.extractor.calls.Load())

	rec, err := h.store.Get(ctx, paperID)
	require.NoError(t, err)
	require.NotNil(t, rec, "metadata is saved before the download")
	assert.True(t, rec.MetadataOnly())
}

func TestGetContentConversionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.err = fmt.Errorf("%w: scanned or image-only PDF", convert.ErrConversionFailed)
	ctx := context.Background()

	_, err := h.svc.GetContent(ctx, paperID, 1, 1000)
	require.Error(t, err)
	assert.Equal(t, ConversionFailure, KindOf(err))
	assert.ErrorIs(t, err, convert.ErrConversionFailed)

	rec, err := h.store.Get(ctx, paperID)
	require.NoError(t, err)
	assert.Equal(t, h.store.SourcePath(paperID), rec.SourcePath)
	assert.Empty(t, rec.TextPath)
}

func TestConcurrentRequestsShareRetrieval(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.gate = make(chan struct{})

	const callers = 6
	var wg sync.WaitGroup
	contents := make([]*Content, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contents[i], errs[i] = h.svc.GetContent(context.Background(), paperID, 1, 1000)
		}()
	}

	require.Eventually(t, func() bool { return h.fetcher.calls.Load() == 1 },
		time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(h.fetcher.gate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, contents[0].Text, contents[i].Text)
	}
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, int32(1), h.extractor.calls.Load())
	assert.Equal(t, int32(1), h.provider.lookups.Load())
}

func TestWaiterRetriesWhenLeaderCancels(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.gate = make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	var leaderErr error
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, leaderErr = h.svc.GetContent(leaderCtx, paperID, 1, 1000)
	}()
	require.Eventually(t, func() bool { return h.fetcher.calls.Load() == 1 },
		time.Second, time.Millisecond)

	var (
		waiter    *Content
		waiterErr error
	)
	waiterDone := make(chan struct{})
	go func() {
		defer close(waiterDone)
		waiter, waiterErr = h.svc.GetContent(context.Background(), paperID, 1, 1000)
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	<-leaderDone
	require.Error(t, leaderErr)

	require.Eventually(t, func() bool { return h.fetcher.calls.Load() == 2 },
		time.Second, time.Millisecond)
	close(h.fetcher.gate)
	<-waiterDone

	require.NoError(t, waiterErr)
	assert.Equal(t, SourceFresh, waiter.Source)
	assert.Equal(t, 2500, waiter.TotalChars)
	assert.Equal(t, int32(1), h.extractor.calls.Load())
}

func TestRetrievalRunsEvictionAfterPinRelease(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.Open(cache.Config{
		DBPath:     filepath.Join(dir, "papers.db"),
		SourceDir:  filepath.Join(dir, "pdf"),
		TextDir:    filepath.Join(dir, "markdown"),
		MaxBytes:   10_000,
		MaxAgeDays: 90,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := newHarness(t, func(o *Options) { o.Cache = store })
	c, err := h.svc.GetContent(context.Background(), paperID, 1, 1000)
	require.NoError(t, err, "the paper is delivered even though it exceeds the budget")
	assert.Equal(t, SourceFresh, c.Source)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Count, "the sweep after the pin is released enforces the budget")
}

// --- Search ---

func sampleResults(n int) []types.SearchResult {
	out := make([]types.SearchResult, n)
	for i := range out {
		out[i] = types.SearchResult{
			Identifier: fmt.Sprintf("2301.%05d", i),
			Title:      fmt.Sprintf("Paper %d", i),
			Published:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -i*30),
		}
	}
	return out
}

func TestSearchSmartFetchesWiderPool(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.results = sampleResults(40)

	resp, err := h.svc.Search(context.Background(), SearchRequest{Query: "attention", MaxResults: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 10)
	assert.Equal(t, search.PolicySmart, resp.Query.Sort)

	require.Len(t, h.provider.queries, 1)
	assert.Equal(t, 30, h.provider.queries[0].MaxResults)
	assert.Equal(t, search.PolicyRelevance, h.provider.queries[0].Sort)
}

func TestSearchCapsMaxResults(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.results = sampleResults(120)

	resp, err := h.svc.Search(context.Background(), SearchRequest{Query: "q", MaxResults: 500, SortBy: "submitted"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 50)
	assert.Equal(t, 50, h.provider.queries[0].MaxResults)
	assert.Equal(t, search.PolicySubmitted, h.provider.queries[0].Sort)
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name string
		req  SearchRequest
	}{
		{"empty query", SearchRequest{MaxResults: 5}},
		{"zero results", SearchRequest{Query: "q"}},
		{"negative results", SearchRequest{Query: "q", MaxResults: -1}},
		{"unknown sort", SearchRequest{Query: "q", MaxResults: 5, SortBy: "citations"}},
		{"unknown order", SearchRequest{Query: "q", MaxResults: 5, SortOrder: "sideways"}},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Search(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, ValidationFailure, KindOf(err))
		})
	}
	assert.Empty(t, h.provider.queries)
}

func TestSearchProviderError(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.searchErr = errors.New("status 500")
	_, err := h.svc.Search(context.Background(), SearchRequest{Query: "q", MaxResults: 5})
	assert.Equal(t, FetchFailure, KindOf(err))
}

// --- outer operations ---

func TestOuterOperationsRequireAuthorization(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Auth = auth.NewTokenSet("tok_good") })
	ctx := context.Background()

	out := h.svc.GetPaperContent(ctx, "tok_bad", paperID, 1, 1000)
	assert.Equal(t, authFailureMessage, out)
	out = h.svc.SearchPapers(ctx, "", SearchRequest{Query: "q", MaxResults: 5})
	assert.Equal(t, authFailureMessage, out)

	assert.Equal(t, int32(0), h.provider.lookups.Load())
	assert.Empty(t, h.provider.queries)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Operations.WithLabelValues("read", "authorization_failure")))

	out = h.svc.GetPaperContent(ctx, "tok_good", paperID, 1, 1000)
	assert.Contains(t, out, "Attention Revisited")
}

func TestGetPaperContentText(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out := h.svc.GetPaperContent(ctx, "", paperID, 2, 1000)
	assert.Contains(t, out, "**Attention Revisited**")
	assert.Contains(t, out, "arXiv ID: 2301.07041")
	assert.Contains(t, out, "Authors: A, B, C, D, E, et al. (7 authors)")
	assert.Contains(t, out, "Source: fresh download")
	assert.Contains(t, out, "## Abstract\n\nWe revisit attention.")
	assert.Contains(t, out, "page 2/3 | total characters: 2500 | per page: 1000 characters")
	assert.Contains(t, out, "Next page: `read 2301.07041 --page 3`")
	assert.Contains(t, out, "Previous page: `read 2301.07041 --page 1`")
	assert.Contains(t, out, "Content truncated.")

	last := h.svc.GetPaperContent(ctx, "", paperID, 3, 1000)
	assert.Contains(t, last, "Source: local cache")
	assert.NotContains(t, last, "Content truncated.")
	assert.NotContains(t, last, "Next page")
}

func TestGetPaperContentFailureMessages(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.Equal(t, "Paper not found: 2301.99999", h.svc.GetPaperContent(ctx, "", "2301.99999", 1, 1000))
	assert.True(t, strings.HasPrefix(h.svc.GetPaperContent(ctx, "", "garbage", 1, 1000), "Invalid request:"))

	h.fetcher.err = acquire.ErrFetchFailed
	out := h.svc.GetPaperContent(ctx, "", paperID, 1, 1000)
	assert.True(t, strings.HasPrefix(out, "Failed to download PDF: 2301.07041"))
	assert.Contains(t, out, "Possible causes:")
}

func TestSearchPapersText(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.results = sampleResults(3)

	out := h.svc.SearchPapers(context.Background(), "", SearchRequest{Query: "attention", MaxResults: 2, SortBy: "relevance"})
	assert.Contains(t, out, `Search results for "attention" (2 papers)`)
	assert.Contains(t, out, "**1. Paper 0**")

	h.provider.results = nil
	out = h.svc.SearchPapers(context.Background(), "", SearchRequest{Query: "nothing", MaxResults: 2})
	assert.Contains(t, out, `No papers found for "nothing"`)

	out = h.svc.SearchPapers(context.Background(), "", SearchRequest{Query: "", MaxResults: 2})
	assert.True(t, strings.HasPrefix(out, "Search failed:"))
}

// --- Prefetch ---

func TestPrefetch(t *testing.T) {
	h := newHarness(t, nil)
	results := h.svc.Prefetch(context.Background(), []string{paperID, "2301.99999", "bogus", "arXiv:2301.07041v2"}, 2)
	require.Len(t, results, 4)

	assert.Equal(t, paperID, results[0].ID)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2500, results[0].Chars)

	assert.Equal(t, NotFound, KindOf(results[1].Err))
	assert.Equal(t, ValidationFailure, KindOf(results[2].Err))

	assert.Equal(t, paperID, results[3].ID)
	assert.NoError(t, results[3].Err)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	wrapped := fmt.Errorf("outer: %w", newError(NotFound, "x", errors.New("gone")))
	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.Equal(t, "not_found: x: gone", newError(NotFound, "x", errors.New("gone")).Error())
}
