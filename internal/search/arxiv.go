// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-reader/internal/httputil"
	"github.com/pdiddy/paper-reader/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivProvider queries the arXiv Atom API.
type ArxivProvider struct {
	Client    *http.Client
	UserAgent string
	Log       zerolog.Logger
}

// NewArxivProvider returns a provider using cfg's timeout and user agent.
func NewArxivProvider(cfg types.HTTPConfig, log zerolog.Logger) *ArxivProvider {
	return &ArxivProvider{
		Client:    &http.Client{Timeout: cfg.Timeout},
		UserAgent: cfg.UserAgent,
		Log:       log,
	}
}

// Search runs q against the arXiv API.
func (p *ArxivProvider) Search(ctx context.Context, q Query) ([]types.SearchResult, error) {
	expr := q.Expression()
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	order := q.Order
	if order == "" {
		order = OrderDescending
	}

	params := url.Values{}
	params.Set("search_query", expr)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", arxivSortBy(ProviderSort(q.Sort)))
	params.Set("sortOrder", string(order))

	feed, err := p.query(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if r, ok := entry.result(); ok {
			results = append(results, r)
		}
	}
	p.Log.Debug().Str("query", expr).Int("results", len(results)).Msg("arxiv search")
	return results, nil
}

// Lookup fetches metadata for a single identifier. An entry for any other
// identifier is treated as not found.
func (p *ArxivProvider) Lookup(ctx context.Context, id string) (*types.SearchResult, error) {
	params := url.Values{}
	params.Set("id_list", id)
	params.Set("max_results", "1")

	feed, err := p.query(ctx, params)
	if err != nil {
		return nil, err
	}
	for _, entry := range feed.Entries {
		r, ok := entry.result()
		if !ok {
			continue
		}
		if r.Identifier != id {
			p.Log.Warn().Str("requested", id).Str("returned", r.Identifier).Msg("arxiv lookup returned a different paper")
			continue
		}
		return &r, nil
	}
	return nil, nil
}

func (p *ArxivProvider) query(ctx context.Context, params url.Values) (*arxivFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 3)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return &feed, nil
}

func arxivSortBy(p Policy) string {
	switch p {
	case PolicySubmitted:
		return "submittedDate"
	case PolicyUpdated:
		return "lastUpdatedDate"
	default:
		return "relevance"
	}
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Updated    string          `xml:"updated"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
	Links      []arxivLink     `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// result converts an entry. Error entries (no /abs/ id) are rejected.
func (e arxivEntry) result() (types.SearchResult, bool) {
	id := ExtractArxivID(e.ID)
	if id == "" {
		return types.SearchResult{}, false
	}

	r := types.SearchResult{
		Identifier: id,
		Title:      collapseSpace(e.Title),
		Abstract:   collapseSpace(e.Summary),
	}
	for _, a := range e.Authors {
		r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			r.Categories = append(r.Categories, c.Term)
		}
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			r.PDFURL = l.Href
			break
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		r.Published = t
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Updated)); err == nil {
		r.Updated = t
	}
	return r, true
}

// ExtractArxivID pulls the versionless arXiv ID from an entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" becomes "2301.07041").
func ExtractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return StripVersion(strings.TrimSpace(idURL[idx+len(prefix):]))
}

// StripVersion removes a trailing "vN" version suffix.
func StripVersion(id string) string {
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			return id[:vIdx]
		}
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
