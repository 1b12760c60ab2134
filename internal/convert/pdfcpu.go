// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PdfcpuPages extracts per-page text by decoding each page's content
// stream with pdfcpu and collecting its text-showing operators.
type PdfcpuPages struct{}

// Name returns the engine name.
func (PdfcpuPages) Name() string { return "pdfcpu" }

// ExtractPages returns the text of every page. A page whose content cannot
// be decoded yields an empty string rather than failing the document.
func (PdfcpuPages) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}

	pages := make([]string, 0, pctx.PageCount)
	for n := 1; n <= pctx.PageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, pageText(pctx, n))
	}
	return pages, nil
}

func pageText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return TextFromContentStream(content)
}
