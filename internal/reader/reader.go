// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reader orchestrates search and full-text retrieval: cache lookup,
// metadata lookup, download, extraction, and pagination. Concurrent
// requests for the same paper share one download and extraction.
package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/paper-reader/internal/acquire"
	"github.com/pdiddy/paper-reader/internal/auth"
	"github.com/pdiddy/paper-reader/internal/cache"
	"github.com/pdiddy/paper-reader/internal/metrics"
	"github.com/pdiddy/paper-reader/internal/paginate"
	"github.com/pdiddy/paper-reader/internal/search"
	"github.com/pdiddy/paper-reader/pkg/types"
)

// Cache is the subset of cache.Store the service uses.
type Cache interface {
	Get(ctx context.Context, id string) (*types.PaperRecord, error)
	Save(ctx context.Context, id string, meta types.PaperMetadata) (*types.PaperRecord, error)
	UpdatePaths(ctx context.Context, id string, u cache.PathUpdate) error
	Cleanup(ctx context.Context) (cache.Evicted, error)
	Pin(id string) (release func())
	SourcePath(id string) string
	TextPath(id string) string
}

// Fetcher downloads the PDF for an identifier to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, id, destPath string, maxAttempts int) error
}

// Extractor produces text from a downloaded PDF.
type Extractor interface {
	Extract(ctx context.Context, sourcePath, outputPath string) (string, error)
}

// Source tells where delivered text came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceFresh Source = "fresh"
)

// Content is one page of a paper's text with its metadata.
type Content struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Published  string   `json:"published"`
	Source     Source   `json:"source"`
	Abstract   string   `json:"abstract"`
	Page       int      `json:"page"`
	TotalPages int      `json:"total_pages"`
	TotalChars int      `json:"total_chars"`
	PageChars  int      `json:"page_chars"`
	Truncated  bool     `json:"truncated"` // later pages follow
	Text       string   `json:"text"`
}

// Options wires a Service. Provider, Cache, Fetcher, and Extractor are
// required.
type Options struct {
	Provider  search.Provider
	Cache     Cache
	Fetcher   Fetcher
	Extractor Extractor
	Auth      auth.Authorizer // nil authorizes every caller
	Config    types.Config
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Service answers search and content requests.
type Service struct {
	provider  search.Provider
	cache     Cache
	fetcher   Fetcher
	extractor Extractor
	auth      auth.Authorizer
	cfg       types.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	inflight singleflight.Group
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		provider:  opts.Provider,
		cache:     opts.Cache,
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		auth:      opts.Auth,
		cfg:       opts.Config,
		log:       opts.Log,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
	if s.auth == nil {
		s.auth = auth.AllowAll{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// paper is the text of a paper plus the metadata shown with it.
type paper struct {
	id     string
	meta   types.PaperMetadata
	text   string
	source Source
}

// GetContent returns page of the paper's text, split into pages of
// charLimit characters. charLimit is clamped to the configured bounds and
// page to [1, total pages].
func (s *Service) GetContent(ctx context.Context, rawID string, page, charLimit int) (*Content, error) {
	id, err := acquire.Normalize(rawID)
	if err != nil {
		return nil, newError(ValidationFailure, rawID, err)
	}
	if charLimit <= 0 {
		return nil, newError(ValidationFailure, id, fmt.Errorf("%w: max chars %d", paginate.ErrInvalidLimit, charLimit))
	}
	charLimit = clamp(charLimit, s.cfg.Read.MinMaxChars, s.cfg.Read.MaxMaxChars)
	page = max(page, 1)

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	pg, err := paginate.Paginate(p.text, page, charLimit)
	if err != nil {
		return nil, newError(Internal, id, err)
	}
	return &Content{
		ID:         id,
		Title:      p.meta.Title,
		Authors:    p.meta.Authors,
		Published:  p.meta.Published,
		Source:     p.source,
		Abstract:   p.meta.Abstract,
		Page:       pg.Number,
		TotalPages: pg.Total,
		TotalChars: pg.TotalChars,
		PageChars:  charLimit,
		Truncated:  !pg.IsLast(),
		Text:       pg.Content,
	}, nil
}

// load returns the paper text from the cache, or retrieves it. Callers
// that miss the cache while another retrieval of the same id is running
// wait for that retrieval instead of starting their own. A waiter whose
// shared retrieval was cancelled by its leader tries again under its own
// context.
func (s *Service) load(ctx context.Context, id string) (*paper, error) {
	for {
		if p, err := s.cached(ctx, id); err != nil || p != nil {
			return p, err
		}

		leader := false
		ch := s.inflight.DoChan(id, func() (any, error) {
			leader = true
			return s.retrieve(ctx, id)
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, newError(Internal, id, ctx.Err())
		}
		if leader {
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.(*paper), nil
		}

		s.metrics.Coalesced()
		if res.Err != nil && leaderCancelled(res.Err) && ctx.Err() == nil {
			s.log.Debug().Str("paper_id", id).Msg("in-flight retrieval cancelled by its caller, retrying")
			continue
		}
		s.log.Debug().Str("paper_id", id).Msg("joined in-flight retrieval")
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*paper), nil
	}
}

func leaderCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// cached returns the paper when the cache holds a readable, non-empty text
// artifact for it, and nil otherwise.
func (s *Service) cached(ctx context.Context, id string) (*paper, error) {
	rec, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, newError(Internal, id, err)
	}
	if !rec.HasText() {
		return nil, nil
	}
	data, err := os.ReadFile(rec.TextPath)
	if err != nil || len(data) == 0 {
		s.log.Warn().Err(err).Str("paper_id", id).Str("path", rec.TextPath).
			Msg("cached text unreadable, retrieving again")
		return nil, nil
	}
	return &paper{id: id, meta: rec.PaperMetadata, text: string(data), source: SourceCache}, nil
}

// retrieve runs lookup, download, and extraction for id. The record is
// pinned while its artifacts are written and the eviction sweep runs once
// the pin is released.
func (s *Service) retrieve(ctx context.Context, id string) (*paper, error) {
	// A retrieval that finished between our cache miss and joining the
	// group has already stored the text.
	if p, err := s.cached(ctx, id); err != nil || p != nil {
		return p, err
	}

	release := s.cache.Pin(id)
	defer func() {
		release()
		if _, err := s.cache.Cleanup(context.WithoutCancel(ctx)); err != nil {
			s.log.Error().Err(err).Msg("post-retrieval cleanup")
		}
	}()

	log := s.log.With().Str("paper_id", id).Logger()

	result, err := s.provider.Lookup(ctx, id)
	if err != nil {
		return nil, newError(FetchFailure, id, fmt.Errorf("looking up metadata: %w", err))
	}
	if result == nil {
		return nil, newError(NotFound, id, errors.New("no such paper on arXiv"))
	}
	meta := result.Metadata()

	if _, err := s.cache.Save(ctx, id, meta); err != nil {
		return nil, newError(Internal, id, err)
	}

	sourcePath := s.cache.SourcePath(id)
	log.Info().Str("path", sourcePath).Msg("downloading PDF")
	if err := s.fetcher.Fetch(ctx, id, sourcePath, s.cfg.Fetch.MaxAttempts); err != nil {
		return nil, newError(FetchFailure, id, err)
	}
	if err := s.cache.UpdatePaths(ctx, id, cache.PathUpdate{Source: &sourcePath}); err != nil {
		return nil, newError(Internal, id, err)
	}

	textPath := s.cache.TextPath(id)
	log.Info().Str("path", textPath).Msg("extracting text")
	text, err := s.extractor.Extract(ctx, sourcePath, textPath)
	if err != nil {
		return nil, newError(ConversionFailure, id, err)
	}
	if err := s.cache.UpdatePaths(ctx, id, cache.PathUpdate{Text: &textPath}); err != nil {
		return nil, newError(Internal, id, err)
	}

	log.Info().Int("chars", len([]rune(text))).Msg("paper cached")
	return &paper{id: id, meta: meta, text: text, source: SourceFresh}, nil
}

// SearchRequest holds caller-facing search parameters.
type SearchRequest struct {
	Query      string
	MaxResults int
	SortBy     string // smart, relevance, submitted, updated; empty uses the configured default
	SortOrder  string // descending, ascending; empty is descending
	Category   string
}

// SearchResponse is a ranked result list with the query that produced it.
type SearchResponse struct {
	Query   search.Query
	Results []types.SearchResult
}

// Search validates req, queries the provider, and ranks the results.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Query == "" {
		return nil, invalid("query must not be empty")
	}
	if req.MaxResults <= 0 {
		return nil, invalid("max results must be positive, got %d", req.MaxResults)
	}
	n := req.MaxResults
	if limit := s.cfg.Search.MaxResultsCap; limit > 0 {
		n = min(n, limit)
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = s.cfg.Search.DefaultSort
	}
	policy, err := search.ParsePolicy(sortBy)
	if err != nil {
		return nil, newError(ValidationFailure, "", err)
	}
	order := search.OrderDescending
	if req.SortOrder != "" {
		if order, err = search.ParseOrder(req.SortOrder); err != nil {
			return nil, newError(ValidationFailure, "", err)
		}
	}

	q := search.Query{
		Text:       req.Query,
		Category:   req.Category,
		MaxResults: search.FetchCount(policy, n),
		Sort:       search.ProviderSort(policy),
		Order:      order,
	}
	results, err := s.provider.Search(ctx, q)
	if err != nil {
		return nil, newError(FetchFailure, "", fmt.Errorf("searching arXiv: %w", err))
	}

	ranked := search.Rank(results, policy, n, s.now())
	s.log.Debug().Str("query", req.Query).Str("policy", string(policy)).
		Int("fetched", len(results)).Int("returned", len(ranked)).Msg("search complete")

	q.Sort = policy
	q.MaxResults = n
	return &SearchResponse{Query: q, Results: ranked}, nil
}

func clamp(v, lo, hi int) int {
	if lo > 0 && v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
