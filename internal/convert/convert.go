// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded PDFs into Markdown text through a
// primary engine with a page-by-page fallback.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-reader/internal/metrics"
)

// Sentinel errors returned by Extract.
var (
	ErrSourceCorrupt    = errors.New("source likely corrupt")
	ErrConversionFailed = errors.New("conversion failed")
)

const (
	minSourceBytes   = 1000
	minPrimaryChars  = 100
	minAcceptedChars = 50
	pageSeparator    = "\n\n---\n\n"
)

// Converter transforms a PDF file into Markdown text. Implementations wrap
// external tools (markitdown, pdftotext).
type Converter interface {
	Name() string
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// PageExtractor returns the plain text of each page of a PDF, in order.
type PageExtractor interface {
	Name() string
	ExtractPages(ctx context.Context, pdfPath string) ([]string, error)
}

// Extractor runs the primary converter and falls back to per-page
// extraction when the primary output is too short.
type Extractor struct {
	Primary  Converter // may be nil
	Fallback PageExtractor
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
}

// Extract returns the text of sourcePath. When outputPath is non-empty the
// text is also written there; parent directories are created and no
// partial file is left behind on failure.
func (e *Extractor) Extract(ctx context.Context, sourcePath, outputPath string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSourceCorrupt, err)
	}
	if info.Size() < minSourceBytes {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrSourceCorrupt, sourcePath, info.Size())
	}

	log := e.Log.With().Str("source", sourcePath).Logger()

	var primaryText string
	var primaryErr error
	if e.Primary != nil {
		primaryText, primaryErr = e.Primary.Convert(ctx, sourcePath)
		primaryText = strings.TrimSpace(primaryText)
		switch {
		case primaryErr != nil:
			e.Metrics.Extraction(e.Primary.Name(), "error")
			log.Warn().Err(primaryErr).Str("engine", e.Primary.Name()).Msg("primary conversion failed")
		case utf8.RuneCountInString(primaryText) > minPrimaryChars:
			e.Metrics.Extraction(e.Primary.Name(), "ok")
			return primaryText, e.write(ctx, outputPath, primaryText)
		default:
			e.Metrics.Extraction(e.Primary.Name(), "short")
			log.Info().Int("chars", utf8.RuneCountInString(primaryText)).Msg("primary output too short, using fallback")
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	text := primaryText
	if e.Fallback != nil {
		fallbackText, err := e.fallback(ctx, sourcePath)
		if err != nil {
			e.Metrics.Extraction(e.Fallback.Name(), "error")
			log.Warn().Err(err).Str("engine", e.Fallback.Name()).Msg("fallback conversion failed")
		} else if fallbackText != "" {
			e.Metrics.Extraction(e.Fallback.Name(), "ok")
			text = fallbackText
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) < minAcceptedChars {
		msg := "extracted text is too short; the PDF may be scanned or image-only, or in an unsupported format"
		if primaryErr != nil {
			return "", fmt.Errorf("%w: %s (primary error: %v)", ErrConversionFailed, msg, primaryErr)
		}
		return "", fmt.Errorf("%w: %s", ErrConversionFailed, msg)
	}
	return text, e.write(ctx, outputPath, text)
}

// fallback formats per-page text as "## Page N" sections, skipping empty
// pages.
func (e *Extractor) fallback(ctx context.Context, sourcePath string) (string, error) {
	pages, err := e.Fallback.ExtractPages(ctx, sourcePath)
	if err != nil {
		return "", err
	}
	var sections []string
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("## Page %d\n\n%s", i+1, page))
	}
	return strings.Join(sections, pageSeparator), nil
}

// write stores text at path via a temp file and rename. A cancelled ctx
// leaves path untouched.
func (e *Extractor) write(ctx context.Context, path, text string) error {
	if path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".convert-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.WriteString(text)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, errors.Join(writeErr, closeErr))
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
