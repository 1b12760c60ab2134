// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads and validates arXiv source PDFs.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-reader/internal/httputil"
	"github.com/pdiddy/paper-reader/internal/metrics"
	"github.com/pdiddy/paper-reader/pkg/types"
)

// ErrFetchFailed wraps every unsuccessful Fetch. It is a reportable outcome,
// not a fault.
var ErrFetchFailed = errors.New("fetch failed")

// ErrInvalidPDF is returned by VerifyPDF.
var ErrInvalidPDF = errors.New("invalid PDF")

// RetryUnit scales the linear backoff between attempts: attempt n (1-based)
// is followed by a wait of n*RetryUnit. Tests override this.
var RetryUnit = 2 * time.Second

const (
	defaultMaxAttempts = 3
	minPDFSize         = 10000
	eofWindow          = 128
)

var (
	pdfMagic  = []byte("%PDF")
	pdfEOFTag = []byte("%%EOF")
)

// Fetcher downloads source PDFs.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
}

// NewFetcher returns a Fetcher using cfg's timeout and user agent.
func NewFetcher(cfg types.HTTPConfig, log zerolog.Logger, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: cfg.Timeout},
		UserAgent: cfg.UserAgent,
		Log:       log,
		Metrics:   m,
	}
}

// Fetch ensures a valid PDF for id exists at destPath. A valid existing file
// is kept; an invalid one is deleted and re-downloaded. Up to maxAttempts
// downloads are tried with a linear backoff between them. The destination
// never holds a partial or invalid file when Fetch returns an error.
func (f *Fetcher) Fetch(ctx context.Context, id, destPath string, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	log := f.Log.With().Str("paper_id", id).Logger()

	if _, err := os.Stat(destPath); err == nil {
		verr := VerifyPDF(destPath)
		if verr == nil {
			log.Debug().Str("path", destPath).Msg("existing PDF is valid")
			return nil
		}
		log.Warn().Err(verr).Msg("removing invalid PDF before download")
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("%w: removing invalid %s: %w", ErrFetchFailed, destPath, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("%w: creating directory: %w", ErrFetchFailed, err)
	}

	url := PDFURL(id)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		log.Info().Int("attempt", attempt).Int("max_attempts", maxAttempts).Msg("downloading PDF")

		err := f.download(ctx, url, destPath)
		if err == nil {
			f.Metrics.FetchAttempt("ok")
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidPDF) {
			f.Metrics.FetchAttempt("invalid")
		} else {
			f.Metrics.FetchAttempt("error")
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("download failed")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrFetchFailed, id, ctx.Err())
		case <-time.After(time.Duration(attempt) * RetryUnit):
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrFetchFailed, id, maxAttempts, lastErr)
}

// download writes url to a temp file beside destPath, verifies it, and
// renames it into place. The temp file is removed on every failure path.
func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 2)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := VerifyPDF(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// VerifyPDF checks that path is a complete PDF: at least 10,000 bytes,
// starting with %PDF and with %%EOF in the last 128 bytes. The returned
// error wraps ErrInvalidPDF and names the failed check.
func VerifyPDF(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}
	size := info.Size()
	if size < minPDFSize {
		return fmt.Errorf("%w: %d bytes, want at least %d", ErrInvalidPDF, size, minPDFSize)
	}

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(fh, header); err != nil || !bytes.Equal(header, pdfMagic) {
		return fmt.Errorf("%w: missing %s header", ErrInvalidPDF, pdfMagic)
	}

	tail := make([]byte, eofWindow)
	if _, err := fh.ReadAt(tail, size-eofWindow); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: reading trailer: %w", ErrInvalidPDF, err)
	}
	if !bytes.Contains(tail, pdfEOFTag) {
		return fmt.Errorf("%w: missing %s marker (truncated download)", ErrInvalidPDF, pdfEOFTag)
	}
	return nil
}
