// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package paginate slices extracted paper text into fixed-size character
// pages. Pages are recomputed from (text, page, limit) on every call; no
// cursor state is kept between calls.
package paginate

import (
	"errors"
	"fmt"
)

// ErrInvalidLimit is returned when the page size is not positive.
var ErrInvalidLimit = errors.New("page character limit must be positive")

// Page is one slice of a text blob.
type Page struct {
	Content    string
	Number     int // clamped to [1, Total]
	Total      int // always >= 1
	TotalChars int // characters in the whole text
}

// IsLast reports whether this is the final page.
func (p Page) IsLast() bool { return p.Number >= p.Total }

// Paginate returns page number page of text split into limit-character
// pages. Characters are Unicode code points, so pages never split a
// multi-byte character. Out-of-range page numbers are clamped; empty text
// is page 1 of 1 with empty content.
func Paginate(text string, page, limit int) (Page, error) {
	if limit <= 0 {
		return Page{}, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	runes := []rune(text)
	n := len(runes)

	total := (n + limit - 1) / limit
	if total < 1 {
		total = 1
	}
	page = max(1, min(page, total))

	start := (page - 1) * limit
	end := min(page*limit, n)

	return Page{
		Content:    string(runes[start:end]),
		Number:     page,
		Total:      total,
		TotalChars: n,
	}, nil
}
