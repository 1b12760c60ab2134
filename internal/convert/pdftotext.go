// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// pdftotextBin is the poppler binary name. Tests point it at a stub.
var pdftotextBin = "pdftotext"

// PdftotextConverter runs poppler's pdftotext on the host.
type PdftotextConverter struct {
	bin string
}

// NewPdftotextConverter returns a converter if pdftotext is on PATH.
func NewPdftotextConverter() (*PdftotextConverter, error) {
	bin, err := exec.LookPath(pdftotextBin)
	if err != nil {
		return nil, fmt.Errorf("pdftotext not found: %w", err)
	}
	return &PdftotextConverter{bin: bin}, nil
}

// Name returns the engine name.
func (p *PdftotextConverter) Name() string { return "pdftotext" }

// Convert extracts text in layout-preserving mode. Form feeds between pages
// become blank lines.
func (p *PdftotextConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, p.bin, "-layout", "-enc", "UTF-8", pdfPath, "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.ReplaceAll(out.String(), "\f", "\n\n"), nil
}
