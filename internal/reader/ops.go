// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-reader/internal/acquire"
	"github.com/pdiddy/paper-reader/internal/search"
)

const listedContentAuthors = 5

// SearchPapers is the caller-facing search operation. It never fails: every
// outcome, including authorization and validation failures, is rendered
// as text.
func (s *Service) SearchPapers(ctx context.Context, credential string, req SearchRequest) string {
	if err := s.Authorize(credential); err != nil {
		s.metrics.Operation("search", AuthorizationFailure.String())
		return authFailureMessage
	}

	resp, err := s.Search(ctx, req)
	if err != nil {
		s.metrics.Operation("search", KindOf(err).String())
		s.log.Warn().Err(err).Str("query", req.Query).Msg("search failed")
		return fmt.Sprintf("Search failed: %v", describe(err))
	}
	s.metrics.Operation("search", "ok")

	var buf bytes.Buffer
	search.FormatText(&buf, resp.Query, resp.Results)
	return buf.String()
}

// GetPaperContent is the caller-facing content operation. Like
// SearchPapers it always returns text.
func (s *Service) GetPaperContent(ctx context.Context, credential, id string, page, maxChars int) string {
	if err := s.Authorize(credential); err != nil {
		s.metrics.Operation("read", AuthorizationFailure.String())
		return authFailureMessage
	}

	c, err := s.GetContent(ctx, id, page, maxChars)
	if err != nil {
		kind := KindOf(err)
		s.metrics.Operation("read", kind.String())
		s.log.Warn().Err(err).Str("paper_id", id).Str("kind", kind.String()).Msg("read failed")
		return failureMessage(kind, id, err)
	}
	s.metrics.Operation("read", "ok")
	return FormatContent(c)
}

// Authorize checks credential once for an outer invocation.
func (s *Service) Authorize(credential string) error {
	if s.auth.Authorized(credential) {
		return nil
	}
	return &Error{Kind: AuthorizationFailure, Err: errors.New("invalid or missing API token")}
}

const authFailureMessage = "Authorization failed: configure a valid API token for this client."

func failureMessage(kind Kind, id string, err error) string {
	switch kind {
	case NotFound:
		return fmt.Sprintf("Paper not found: %s", id)
	case FetchFailure:
		return fmt.Sprintf("Failed to download PDF: %s\n\n"+
			"Possible causes:\n"+
			"1. Unstable network connection\n"+
			"2. arXiv is temporarily unavailable\n"+
			"3. The PDF for this paper cannot be accessed right now\n\n"+
			"Try again later.\n\nDetails: %v", id, describe(err))
	case ConversionFailure:
		return fmt.Sprintf("Failed to extract text from %s: %v", id, describe(err))
	case ValidationFailure:
		return fmt.Sprintf("Invalid request: %v", describe(err))
	default:
		return fmt.Sprintf("Failed to retrieve paper: %v", describe(err))
	}
}

// describe strips the kind prefix from a *Error so messages read naturally.
func describe(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err
	}
	return err
}

// FormatContent renders one page of a paper for display.
func FormatContent(c *Content) string {
	lines := []string{
		fmt.Sprintf("**%s**\n", c.Title),
		"arXiv ID: " + c.ID,
	}
	if len(c.Authors) > 0 {
		lines = append(lines, "Authors: "+search.FormatAuthors(c.Authors, listedContentAuthors))
	}
	lines = append(lines,
		"Published: "+c.Published,
		"Source: "+c.Source.Label(),
		"",
	)

	if c.Abstract != "" {
		lines = append(lines, "## Abstract", "", c.Abstract, "")
	}

	lines = append(lines, "---",
		fmt.Sprintf("**Pagination**: page %d/%d | total characters: %d | per page: %d characters",
			c.Page, c.TotalPages, c.TotalChars, c.PageChars))
	if c.TotalPages > 1 {
		if c.Truncated {
			lines = append(lines, "Next page: "+pageHint(c.ID, c.Page+1))
		}
		if c.Page > 1 {
			lines = append(lines, "Previous page: "+pageHint(c.ID, c.Page-1))
		}
	}
	lines = append(lines, "---", "", "## Full Text", "", c.Text)

	if c.Truncated {
		lines = append(lines, "", "---",
			"Content truncated. Continue with "+pageHint(c.ID, c.Page+1))
	}
	return strings.Join(lines, "\n")
}

func pageHint(id string, page int) string {
	return fmt.Sprintf("`read %s --page %d`", id, page)
}

// Label is the human-readable source name.
func (s Source) Label() string {
	switch s {
	case SourceCache:
		return "local cache"
	case SourceFresh:
		return "fresh download"
	default:
		return string(s)
	}
}

// PrefetchResult reports the outcome for one identifier.
type PrefetchResult struct {
	ID     string
	Source Source
	Chars  int
	Err    error
}

// Prefetch warms the cache for ids, running at most parallel retrievals at
// once. A failure for one identifier does not stop the others; results are
// returned in input order.
func (s *Service) Prefetch(ctx context.Context, ids []string, parallel int) []PrefetchResult {
	results := make([]PrefetchResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, raw := range ids {
		g.Go(func() error {
			res := PrefetchResult{ID: raw}
			id, err := acquire.Normalize(raw)
			if err != nil {
				res.Err = newError(ValidationFailure, raw, err)
				results[i] = res
				return nil
			}
			res.ID = id
			p, err := s.load(gctx, id)
			if err != nil {
				res.Err = err
			} else {
				res.Source = p.source
				res.Chars = len([]rune(p.text))
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	return results
}
