// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-reader/internal/search"
)

// ErrInvalidIdentifier is returned for input that is not an arXiv ID.
var ErrInvalidIdentifier = errors.New("invalid arXiv identifier")

// Base URLs for identifier resolution. Declared as vars so tests can
// substitute httptest servers.
var arxivPDFBase = "https://arxiv.org/pdf/"

var (
	// newStylePattern matches post-2007 IDs: "2301.07041", "0704.0001".
	newStylePattern = regexp.MustCompile(`^\d{4}\.\d{4,5}$`)

	// oldStylePattern matches archive IDs: "hep-th/9901001", "math.GT/0309136".
	oldStylePattern = regexp.MustCompile(`^[a-z]+(?:-[a-z]+)*(?:\.[A-Z]{2})?/\d{7}$`)
)

// Normalize returns the canonical versionless identifier for input. It
// accepts bare IDs, an "arXiv:" prefix, a version suffix, and arxiv.org
// abs or pdf URLs.
func Normalize(input string) (string, error) {
	id := strings.TrimSpace(input)

	if u, err := url.Parse(id); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		path := strings.TrimSuffix(u.Path, ".pdf")
		for _, prefix := range []string{"/abs/", "/pdf/"} {
			if i := strings.Index(path, prefix); i >= 0 {
				id = path[i+len(prefix):]
				break
			}
		}
	}

	if len(id) >= 6 && strings.EqualFold(id[:6], "arxiv:") {
		id = id[6:]
	}
	id = search.StripVersion(id)

	if newStylePattern.MatchString(id) || oldStylePattern.MatchString(id) {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, input)
}

// Slug returns a filesystem-safe filename stem for id. Old-style IDs
// contain a slash.
func Slug(id string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(id)
}

// PDFURL returns the arxiv.org download URL for id.
func PDFURL(id string) string {
	return arxivPDFBase + id
}
