// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-reader/pkg/types"
)

// Snapshot is the exported view of the cache: its stats and every record.
type Snapshot struct {
	Stats  Stats               `json:"stats" yaml:"stats"`
	Papers []types.PaperRecord `json:"papers" yaml:"papers"`
}

func (s *Store) snapshot(ctx context.Context) (Snapshot, error) {
	st, err := s.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	papers, err := s.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if papers == nil {
		papers = []types.PaperRecord{}
	}
	return Snapshot{Stats: st, Papers: papers}, nil
}

// ExportYAML writes a snapshot of the cache to path.
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeExport(path, data)
}

// ExportJSON writes a snapshot of the cache to path.
func (s *Store) ExportJSON(ctx context.Context, path string) error {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return writeExport(path, append(data, '\n'))
}

func writeExport(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
