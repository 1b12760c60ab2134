// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/paper-reader/internal/container"
)

const imageMarkitdown = "markitdown:latest"

// MarkitdownConverter converts PDFs by piping them through the markitdown
// container image.
type MarkitdownConverter struct {
	runtime container.Runtime
}

// NewMarkitdownConverter verifies that the markitdown image exists in rt.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime) (*MarkitdownConverter, error) {
	if err := rt.ImageExists(ctx, imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt}, nil
}

// Name returns the engine name.
func (m *MarkitdownConverter) Name() string { return "markitdown" }

// Convert pipes the PDF at pdfPath through the container.
func (m *MarkitdownConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, imageMarkitdown, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}
	return out.String(), nil
}
